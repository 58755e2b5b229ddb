// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// killRecorder replaces KillFunc and records every pid it is asked to kill.
type killRecorder struct {
	mu     sync.Mutex
	killed []int
	fail   map[int]error
}

func stubKill(t *testing.T) *killRecorder {
	t.Helper()

	kr := &killRecorder{fail: make(map[int]error)}
	stubs := gostub.Stub(&KillFunc, kr.kill)
	t.Cleanup(stubs.Reset)

	return kr
}

func (kr *killRecorder) kill(pid int) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	kr.killed = append(kr.killed, pid)

	return kr.fail[pid]
}

func (kr *killRecorder) pids() []int {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	return append([]int(nil), kr.killed...)
}

func TestJob_TryAddPid(t *testing.T) {
	stubKill(t)

	j := newJob(1, "line")
	assert.True(t, j.TryAddPid(100))
	assert.True(t, j.TryAddPid(101))
	assert.Equal(t, []int{100, 101}, j.Pids())

	j.RemovePid(100)
	assert.Equal(t, []int{101}, j.Pids())

	require.NoError(t, j.Kill())
	assert.False(t, j.TryAddPid(102), "registration must be refused once interrupted")
	assert.Empty(t, j.Pids())
}

func TestJob_Kill(t *testing.T) {
	kr := stubKill(t)

	j := newJob(1, "")
	j.TryAddPid(30)
	j.TryAddPid(10)
	j.TryAddPid(20)

	select {
	case <-j.Done():
		t.Fatal("done channel closed before kill")
	default:
	}

	require.NoError(t, j.Kill())
	assert.Equal(t, []int{10, 20, 30}, kr.pids())
	assert.True(t, j.IsInterrupted())
	assert.Empty(t, j.Pids())

	select {
	case <-j.Done():
	default:
		t.Fatal("done channel should be closed after kill")
	}

	// A second kill must not close the channel twice or signal anything.
	require.NoError(t, j.Kill())
	assert.Len(t, kr.pids(), 3)
}

func TestJob_KillFailureAttemptsEveryPid(t *testing.T) {
	kr := stubKill(t)
	eperm := errors.New("operation not permitted")
	kr.fail[2] = eperm

	j := newJob(7, "tagged")
	j.TryAddPid(1)
	j.TryAddPid(2)
	j.TryAddPid(3)

	err := j.Kill()
	require.ErrorIs(t, err, ErrKillFailed)
	require.ErrorIs(t, err, eperm)
	assert.Contains(t, err.Error(), "job 7 (tagged) pid 2")
	assert.Equal(t, []int{1, 2, 3}, kr.pids())
	assert.Empty(t, j.Pids(), "the tracked set is cleared even when a kill fails")
}

// Either a pid is registered and then killed, or registration is refused.
// No pid may end up registered but unkilled.
func TestJob_RegistrationRace(t *testing.T) {
	for range 50 {
		kr := stubKill(t)
		j := newJob(1, "")

		const spawners = 32

		accepted := make([]bool, spawners)
		start := make(chan struct{})

		var wg sync.WaitGroup

		for i := range spawners {
			wg.Add(1)

			go func() {
				defer wg.Done()
				<-start

				accepted[i] = j.TryAddPid(i + 1)
			}()
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			_ = j.Kill()
		}()

		close(start)
		wg.Wait()

		killed := make(map[int]bool)
		for _, pid := range kr.pids() {
			killed[pid] = true
		}

		for i, ok := range accepted {
			if ok {
				assert.True(t, killed[i+1], "pid %d was registered but never killed", i+1)
			}
		}

		assert.Empty(t, j.Pids())
	}
}

func TestJob_String(t *testing.T) {
	assert.Equal(t, "job 3", newJob(3, "").String())
	assert.Equal(t, "job 4 (abc)", newJob(4, "abc").String())
}
