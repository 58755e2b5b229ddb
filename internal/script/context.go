// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package script

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/matt-FFFFFF/fanout/internal/proc"
)

// ErrInterrupted is returned when a script observed that its job, or the
// whole run, was interrupted.
var ErrInterrupted = errors.New("interrupted")

// Interrupter reports whether the global interrupt has fired.
type Interrupter interface {
	Interrupted() bool
}

// Context is the execution context handed to a Script. Each worker gets its own.
type Context struct {
	Job    *jobs.Job   // Job owning every process spawned by the script
	Number uint64      // Job number, passed to the script as its argument
	Input  string      // Work item
	Global Interrupter // Global interrupt flag, may be nil
}

// NewContext returns the execution context for job processing input.
func NewContext(job *jobs.Job, input string, global Interrupter) *Context {
	return &Context{
		Job:    job,
		Number: uint64(job.ID()),
		Input:  input,
		Global: global,
	}
}

// IsInterrupted reports whether the job or the global interrupt has fired.
func (c *Context) IsInterrupted() bool {
	if c.Job.IsInterrupted() {
		return true
	}

	return c.Global != nil && c.Global.Interrupted()
}

// Done is closed when the job is killed.
func (c *Context) Done() <-chan struct{} {
	return c.Job.Done()
}

// Start spawns cmd as a process owned by the job.
func (c *Context) Start(ctx context.Context, cmd *exec.Cmd) (*proc.Handle, error) {
	if c.IsInterrupted() {
		return nil, fmt.Errorf("%w: %s", ErrInterrupted, c.Job)
	}

	return proc.Start(ctx, c.Job, cmd)
}

// Run spawns cmd as a process owned by the job and waits for it to exit.
func (c *Context) Run(ctx context.Context, cmd *exec.Cmd) error {
	h, err := c.Start(ctx, cmd)
	if err != nil {
		return err
	}

	return h.Wait()
}

// Sleep pauses for d, returning early with ErrInterrupted if the job is
// killed or with the context error if ctx is done.
func (c *Context) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-c.Done():
		return fmt.Errorf("%w: %s", ErrInterrupted, c.Job)
	case <-ctx.Done():
		return ctx.Err()
	}
}
