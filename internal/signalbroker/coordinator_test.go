// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func stubKill(t *testing.T, fn func(int) error) {
	t.Helper()

	stubs := gostub.Stub(&jobs.KillFunc, fn)
	t.Cleanup(stubs.Reset)
}

func TestCoordinator_TriggerOnce(t *testing.T) {
	var (
		mu     sync.Mutex
		killed []int
	)

	stubKill(t, func(pid int) error {
		mu.Lock()
		defer mu.Unlock()

		killed = append(killed, pid)

		return nil
	})

	ctx := ctxlog.NewDiscard(context.Background())
	r := jobs.NewRegistry()

	for i := range 3 {
		r.Create("").TryAddPid(10 + i)
	}

	c := NewCoordinator(r)
	assert.Equal(t, StateArmed, c.State())
	assert.False(t, c.Interrupted())
	require.NoError(t, c.Err())

	require.NoError(t, c.Trigger(ctx))
	assert.Equal(t, StateTriggered, c.State())
	assert.True(t, c.Interrupted())
	assert.Equal(t, 0, r.Len())
	assert.ElementsMatch(t, []int{10, 11, 12}, killed)

	select {
	case <-c.Done():
	default:
		t.Fatal("done should be closed after trigger")
	}

	require.ErrorIs(t, c.Trigger(ctx), ErrAlreadyTriggered)
	assert.Len(t, killed, 3, "second trigger must not kill again")
	assert.True(t, r.Create("late").IsInterrupted())
}

func TestCoordinator_TeardownErrorDoesNotBlock(t *testing.T) {
	denied := errors.New("operation not permitted")

	stubKill(t, func(pid int) error {
		if pid == 1 {
			return denied
		}

		return nil
	})

	ctx := ctxlog.NewDiscard(context.Background())
	r := jobs.NewRegistry()
	r.Create("").TryAddPid(1)
	r.Create("").TryAddPid(2)

	c := NewCoordinator(r)

	err := c.Trigger(ctx)
	require.ErrorIs(t, err, jobs.ErrKillFailed)
	require.ErrorIs(t, c.Err(), denied)
	assert.True(t, c.Interrupted())
	assert.Equal(t, 0, r.Len())

	select {
	case <-c.Done():
	default:
		t.Fatal("done should be closed even when teardown fails")
	}
}

func TestCoordinator_WatchFirstSignalTriggers(t *testing.T) {
	defer goleak.VerifyNone(t)

	stubKill(t, func(int) error { return nil })

	ctx, cancel := context.WithCancel(ctxlog.NewDiscard(context.Background()))
	defer cancel()

	c := NewCoordinator(jobs.NewRegistry())
	sigCh := make(chan os.Signal, 3)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		c.Watch(ctx, sigCh)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt
	sigCh <- syscall.SIGTERM

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("coordinator did not trigger on the first signal")
	}

	close(sigCh)
	wg.Wait()

	assert.Equal(t, StateTriggered, c.State())
}

func TestCoordinator_WatchStopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(ctxlog.NewDiscard(context.Background()))
	c := NewCoordinator(jobs.NewRegistry())
	sigCh := make(chan os.Signal)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		c.Watch(ctx, sigCh)
	}()

	cancel()
	wg.Wait()

	assert.Equal(t, StateArmed, c.State(), "cancelling the watcher must not trigger teardown")
}

func TestCoordinator_ConcurrentTriggers(t *testing.T) {
	stubKill(t, func(int) error { return nil })

	ctx := ctxlog.NewDiscard(context.Background())
	c := NewCoordinator(jobs.NewRegistry())

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := c.Trigger(ctx); err == nil {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, fresh, "exactly one trigger performs the teardown")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "armed", StateArmed.String())
	assert.Equal(t, "triggered", StateTriggered.String())
	assert.Equal(t, "unknown", State(9).String())
}
