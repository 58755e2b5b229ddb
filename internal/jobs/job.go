// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	// ErrKillFailed is returned when the operating system refused to terminate a tracked process.
	ErrKillFailed = errors.New("failed to kill process")
	// ErrJobInterrupted is returned when work is attempted on a job that has already been killed.
	ErrJobInterrupted = errors.New("job interrupted")
)

// KillFunc sends a termination request to the process (group) identified by pid.
// It must return nil when the process no longer exists.
// It is a variable so tests can replace it.
var KillFunc = killProcessGroup

// ID identifies a job for the lifetime of its Registry. IDs are never reused.
type ID uint64

// Job is a unit of work that may own external processes.
type Job struct {
	id  ID
	tag string

	mu          sync.Mutex
	interrupted bool
	pids        map[int]struct{}
	done        chan struct{}
}

func newJob(id ID, tag string) *Job {
	return &Job{
		id:   id,
		tag:  tag,
		pids: make(map[int]struct{}),
		done: make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() ID {
	return j.id
}

// Tag returns the optional human readable label of the job.
func (j *Job) Tag() string {
	return j.tag
}

// String implements fmt.Stringer.
func (j *Job) String() string {
	if j.tag == "" {
		return fmt.Sprintf("job %d", j.id)
	}

	return fmt.Sprintf("job %d (%s)", j.id, j.tag)
}

// TryAddPid registers pid as owned by the job.
// It returns false, without registering, if the job has been interrupted.
// In that case nobody else will ever kill the process, so the caller must.
func (j *Job) TryAddPid(pid int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.interrupted {
		return false
	}

	j.pids[pid] = struct{}{}

	return true
}

// RemovePid forgets pid, typically once its process has exited.
func (j *Job) RemovePid(pid int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	delete(j.pids, pid)
}

// Pids returns a sorted snapshot of the tracked process IDs.
func (j *Job) Pids() []int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return slices.Sorted(maps.Keys(j.pids))
}

// IsInterrupted reports whether the job has been killed.
func (j *Job) IsInterrupted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.interrupted
}

// Done returns a channel that is closed when the job is killed.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Kill interrupts the job and terminates every process it owns.
// The interrupted flag is latched before any signal is sent so a concurrent
// TryAddPid cannot succeed afterwards. Every tracked process is attempted;
// the first failure is returned wrapped in ErrKillFailed. The tracked set is
// empty when Kill returns.
func (j *Job) Kill() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.interrupted {
		j.interrupted = true
		close(j.done)
	}

	var first error

	for _, pid := range slices.Sorted(maps.Keys(j.pids)) {
		if err := KillFunc(pid); err != nil && first == nil {
			first = fmt.Errorf("%w: %s pid %d: %w", ErrKillFailed, j, pid, err)
		}
	}

	clear(j.pids)

	return first
}
