// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
)

var (
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrRegistrationRace is returned when a process was spawned for a job that
	// had been interrupted in the meantime. The process has already been killed.
	ErrRegistrationRace = errors.New("job interrupted while process was starting")
)

// Handle is a running process owned by a job.
type Handle struct {
	job *jobs.Job
	cmd *exec.Cmd
	pid int

	once    sync.Once
	waitErr error
}

// Start spawns cmd in a new process group and registers it with job.
func Start(ctx context.Context, job *jobs.Job, cmd *exec.Cmd) (*Handle, error) {
	if job.IsInterrupted() {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobInterrupted, job)
	}

	return start(ctx, job, cmd)
}

func start(ctx context.Context, job *jobs.Job, cmd *exec.Cmd) (*Handle, error) {
	logger := ctxlog.Logger(ctx).With("job", job.ID(), "path", cmd.Path)

	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.Join(ErrCouldNotStartProcess, err)
	}

	pid := cmd.Process.Pid

	if !job.TryAddPid(pid) {
		logger.Info("job interrupted during spawn, killing orphan", "pid", pid)

		if err := jobs.KillFunc(pid); err != nil {
			logger.Error("orphan kill error", "pid", pid, "error", err)
		}

		_ = cmd.Wait()

		return nil, fmt.Errorf("%w: %s pid %d", ErrRegistrationRace, job, pid)
	}

	logger.Debug("process started", "pid", pid)

	return &Handle{job: job, cmd: cmd, pid: pid}, nil
}

// Run starts cmd for job and waits for it to exit.
func Run(ctx context.Context, job *jobs.Job, cmd *exec.Cmd) error {
	h, err := Start(ctx, job, cmd)
	if err != nil {
		return err
	}

	return h.Wait()
}

// Pid returns the OS process ID, which is also the process group ID.
func (h *Handle) Pid() int {
	return h.pid
}

// Job returns the owning job.
func (h *Handle) Job() *jobs.Job {
	return h.job
}

// Wait waits for the process to exit, untracks it from its job and releases
// its resources. It is safe to call more than once.
//
// Where the platform allows it the exit is observed without reaping, so the
// pid cannot be recycled while the job still tracks it.
func (h *Handle) Wait() error {
	h.once.Do(func() {
		if waitExited(h.pid) {
			h.job.RemovePid(h.pid)
			h.waitErr = h.cmd.Wait()

			return
		}

		h.waitErr = h.cmd.Wait()
		h.job.RemovePid(h.pid)
	})

	return h.waitErr
}
