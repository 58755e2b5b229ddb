// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
)

// ErrAlreadyTriggered is returned by Trigger after the first call.
var ErrAlreadyTriggered = errors.New("interrupt already handled")

// State is the state of a Coordinator.
type State int32

const (
	// StateArmed is the initial state, waiting for an interrupt.
	StateArmed State = iota
	// StateTriggered is terminal: teardown has been run.
	StateTriggered
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Coordinator handles at most one interrupt episode for a job registry.
type Coordinator struct {
	registry    *jobs.Registry
	state       atomic.Int32
	interrupted atomic.Bool
	done        chan struct{}
	err         error
}

// NewCoordinator returns an armed coordinator for registry.
func NewCoordinator(registry *jobs.Registry) *Coordinator {
	return &Coordinator{
		registry: registry,
		done:     make(chan struct{}),
	}
}

// Trigger runs the teardown: it sets the global interrupt flag, shuts the
// registry down, killing every job, and then closes Done. Only the first call
// does anything; later calls return ErrAlreadyTriggered. A failed kill is
// logged and returned but never stops the sweep or the notification.
func (c *Coordinator) Trigger(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateArmed), int32(StateTriggered)) {
		return ErrAlreadyTriggered
	}

	logger := ctxlog.Logger(ctx)

	c.interrupted.Store(true)

	logger.Info("interrupt received, killing all jobs", "jobs", c.registry.Len())

	err := c.registry.Shutdown()
	if err != nil {
		logger.Error("teardown error", "error", err)
	}

	c.err = err
	close(c.done)

	return err
}

// Watch triggers on the first signal received on sigCh and ignores the rest.
// It returns when sigCh is closed or ctx is done.
func (c *Coordinator) Watch(ctx context.Context, sigCh <-chan os.Signal) {
	logger := ctxlog.Logger(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if c.State() == StateTriggered {
				logger.Info("watchdog", "detail", "teardown already started, ignoring signal", "signal", sig.String())
				continue
			}

			logger.Info("watchdog", "detail", "received signal", "signal", sig.String())
			_ = c.Trigger(ctx)
		}
	}
}

// Interrupted reports whether the global interrupt flag is set.
func (c *Coordinator) Interrupted() bool {
	return c.interrupted.Load()
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Done is closed once teardown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the teardown error. It is only meaningful after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
