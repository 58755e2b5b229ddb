// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/matt-FFFFFF/fanout/internal/script"
)

// Exit codes returned by Results.ExitCode.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// Status is the outcome of one work item.
type Status int

const (
	// StatusSuccess means the script returned without error.
	StatusSuccess Status = iota
	// StatusError means the script returned an error or panicked.
	StatusError
	// StatusKilled means the job was interrupted or timed out.
	StatusKilled
	// StatusAbandoned means the worker was still running when the grace period ran out.
	StatusAbandoned
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusKilled:
		return "killed"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Result is the outcome of running the script for one work item.
type Result struct {
	JobID    jobs.ID       // Job the item ran in, also its job number
	Input    string        // Work item
	Output   script.Output // Lines produced by the script
	Err      error         // Error returned by the script, if any
	Status   Status        // Outcome
	Duration time.Duration // Wall time from job creation to completion
}

// Results is the outcome of a whole run.
type Results struct {
	RunID       string    // Unique identifier of the run, attached to log lines
	Items       []*Result // One entry per work item, ordered by job ID
	Interrupted bool      // The global interrupt fired during the run
	TeardownErr error     // First error from the interrupt sweep, if any
}

// HasError reports whether any item failed or teardown reported an error.
func (r *Results) HasError() bool {
	return r.Err() != nil
}

// Err combines every item error and the teardown error, or returns nil.
func (r *Results) Err() error {
	var merr *multierror.Error

	for _, item := range r.Items {
		if item.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("job %d (%s): %w", item.JobID, item.Input, item.Err))
		}
	}

	if r.TeardownErr != nil {
		merr = multierror.Append(merr, fmt.Errorf("teardown: %w", r.TeardownErr))
	}

	return merr.ErrorOrNil()
}

// ExitCode is 1 if the interrupt sweep failed to kill a process, 130 if the
// run was otherwise interrupted, 1 if any item failed and 0 otherwise.
func (r *Results) ExitCode() int {
	switch {
	case r.TeardownErr != nil:
		return ExitFailure
	case r.Interrupted:
		return ExitInterrupted
	case r.HasError():
		return ExitFailure
	default:
		return ExitSuccess
	}
}

// Count returns the number of items with status s.
func (r *Results) Count(s Status) int {
	n := 0

	for _, item := range r.Items {
		if item.Status == s {
			n++
		}
	}

	return n
}
