// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"cmp"
	"maps"
	"slices"
	"sync"
)

// Registry is the table of live jobs.
type Registry struct {
	mu       sync.Mutex
	nextID   ID
	jobs     map[ID]*Job
	shutdown bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[ID]*Job),
	}
}

// Create allocates the next ID and registers a fresh job under it.
// After Shutdown the returned job is already interrupted and is not tracked,
// so nothing it spawns can outlive the teardown.
func (r *Registry) Create(tag string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := newJob(r.nextID, tag)
	r.nextID++

	if r.shutdown {
		j.interrupted = true
		close(j.done)

		return j
	}

	r.jobs[j.id] = j

	return j
}

// CreateJob is Create returning only the ID.
func (r *Registry) CreateJob(tag string) ID {
	return r.Create(tag).ID()
}

// Get returns the job registered under id.
func (r *Registry) Get(id ID) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]

	return j, ok
}

// Remove forgets the job. Removing an unknown or already removed ID is a no-op.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs)
}

// IDs returns a sorted snapshot of the registered job IDs.
func (r *Registry) IDs() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Sorted(maps.Keys(r.jobs))
}

// KillAndRemove kills the job and removes it, even if the kill failed.
// The kill error is returned. An unknown ID is a no-op.
func (r *Registry) KillAndRemove(id ID) error {
	j, ok := r.Get(id)
	if !ok {
		return nil
	}

	err := j.Kill()
	r.Remove(id)

	return err
}

// KillAll kills and removes every job registered at the time of the call.
// Every job is attempted; the first error is returned.
func (r *Registry) KillAll() error {
	r.mu.Lock()
	snapshot := slices.Collect(maps.Values(r.jobs))
	r.mu.Unlock()

	slices.SortFunc(snapshot, func(a, b *Job) int {
		return cmp.Compare(a.id, b.id)
	})

	var first error

	for _, j := range snapshot {
		if err := j.Kill(); err != nil && first == nil {
			first = err
		}

		r.Remove(j.id)
	}

	return first
}

// Shutdown stops the registry from tracking new jobs and then kills all of
// the existing ones. It is the teardown sweep run on interrupt.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()

	return r.KillAll()
}

// IsShutdown reports whether Shutdown has been called.
func (r *Registry) IsShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.shutdown
}
