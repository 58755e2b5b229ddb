// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build unix

package proc

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() context.Context {
	return ctxlog.NewDiscard(context.Background())
}

func signaled(t *testing.T, cmd *exec.Cmd) bool {
	t.Helper()
	require.NotNil(t, cmd.ProcessState, "process should have been reaped")

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	require.True(t, ok)

	return ws.Signaled()
}

func waitWithin(t *testing.T, h *Handle, d time.Duration) error {
	t.Helper()

	errCh := make(chan error, 1)

	go func() { errCh <- h.Wait() }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(d):
		t.Errorf("process %d still running after %s", h.Pid(), d)
		return nil
	}
}

func TestRun_Success(t *testing.T) {
	r := jobs.NewRegistry()
	j := r.Create("ok")

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, Run(testCtx(), j, cmd))
	assert.Empty(t, j.Pids(), "pid is removed once the process exits")
}

func TestRun_ExitError(t *testing.T) {
	j := jobs.NewRegistry().Create("")

	err := Run(testCtx(), j, exec.Command("/bin/sh", "-c", "exit 3"))

	var exitErr *exec.ExitError

	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestStart_NotFound(t *testing.T) {
	j := jobs.NewRegistry().Create("")

	_, err := Start(testCtx(), j, exec.Command("/not/a/real/command"))
	require.ErrorIs(t, err, ErrCouldNotStartProcess)
	assert.Empty(t, j.Pids())
}

func TestStart_TracksPidWhileRunning(t *testing.T) {
	j := jobs.NewRegistry().Create("")

	cmd := exec.Command("/bin/sleep", "0.2")
	h, err := Start(testCtx(), j, cmd)
	require.NoError(t, err)

	assert.Equal(t, []int{h.Pid()}, j.Pids())
	assert.Same(t, j, h.Job())

	pgid, err := syscall.Getpgid(h.Pid())
	require.NoError(t, err)
	assert.Equal(t, h.Pid(), pgid, "process should lead its own group")

	require.NoError(t, h.Wait())
	require.NoError(t, h.Wait(), "wait is idempotent")
	assert.Empty(t, j.Pids())
}

func TestStart_InterruptedJob(t *testing.T) {
	r := jobs.NewRegistry()
	j := r.Create("")
	require.NoError(t, r.KillAndRemove(j.ID()))

	_, err := Start(testCtx(), j, exec.Command("/bin/sleep", "10"))
	require.ErrorIs(t, err, jobs.ErrJobInterrupted)
}

func TestStart_RegistrationRaceKillsOrphan(t *testing.T) {
	r := jobs.NewRegistry()
	j := r.Create("")
	require.NoError(t, j.Kill())

	cmd := exec.Command("/bin/sleep", "10")

	begin := time.Now()
	_, err := start(testCtx(), j, cmd)
	require.ErrorIs(t, err, ErrRegistrationRace)
	assert.Less(t, time.Since(begin), 2*time.Second, "orphan must be killed, not waited for")
	assert.True(t, signaled(t, cmd), "orphan should have been killed by a signal")
}

// A process started by a job is gone once KillAndRemove returns.
func TestKillAndRemove_TerminatesProcess(t *testing.T) {
	r := jobs.NewRegistry()
	j := r.Create("sleeper")

	cmd := exec.Command("/bin/sleep", "10")
	h, err := Start(testCtx(), j, cmd)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, r.KillAndRemove(j.ID()))
	assert.Equal(t, 0, r.Len())

	_ = waitWithin(t, h, time.Second)
	assert.True(t, signaled(t, cmd))
}

// Ten jobs created in a tight loop and torn down with KillAll.
func TestKillAll_TenJobs(t *testing.T) {
	r := jobs.NewRegistry()

	var (
		handles []*Handle
		cmds    []*exec.Cmd
	)

	for range 10 {
		j := r.Create("")
		cmd := exec.Command("/bin/sleep", "10")

		h, err := Start(testCtx(), j, cmd)
		require.NoError(t, err)

		handles = append(handles, h)
		cmds = append(cmds, cmd)
	}

	require.NoError(t, r.KillAll())
	assert.Equal(t, 0, r.Len())

	var wg sync.WaitGroup

	for _, h := range handles {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = waitWithin(t, h, 2*time.Second)
		}()
	}

	wg.Wait()

	for _, cmd := range cmds {
		assert.True(t, signaled(t, cmd))
	}
}

// Spawns racing a kill: every spawned process ends up dead either way.
func TestSpawnRacingKill(t *testing.T) {
	for range 10 {
		r := jobs.NewRegistry()
		j := r.Create("")

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			cmds []*exec.Cmd
		)

		for range 4 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				cmd := exec.Command("/bin/sleep", "10")

				h, err := start(testCtx(), j, cmd)
				if err != nil {
					assert.ErrorIs(t, err, ErrRegistrationRace)
				} else {
					_ = h.Wait()
				}

				mu.Lock()
				cmds = append(cmds, cmd)
				mu.Unlock()
			}()
		}

		time.Sleep(5 * time.Millisecond)
		_ = r.KillAndRemove(j.ID())

		done := make(chan struct{})

		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("a spawned process survived the kill")
		}

		for _, cmd := range cmds {
			if cmd.ProcessState != nil {
				assert.True(t, signaled(t, cmd))
			}
		}
	}
}
