// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"time"

	"github.com/matt-FFFFFF/fanout/internal/metrics"
	"github.com/matt-FFFFFF/fanout/internal/progress"
)

// DefaultGracePeriod is how long Run waits for workers after an interrupt.
const DefaultGracePeriod = 5 * time.Second

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithParallelism bounds the number of jobs running at once. Zero or less is unbounded.
func WithParallelism(n int) Option {
	return func(d *Dispatcher) {
		d.parallelism = n
	}
}

// WithGracePeriod sets how long Run waits for in-flight workers once it has
// stopped because of an interrupt. Zero or less waits for every worker.
func WithGracePeriod(p time.Duration) Option {
	return func(d *Dispatcher) {
		d.gracePeriod = p
	}
}

// WithJobTimeout kills a single job once it has run for longer than t.
// Other jobs are unaffected. Zero disables the timeout.
func WithJobTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.jobTimeout = t
	}
}

// WithReporter sends job lifecycle events to r.
func WithReporter(r progress.Reporter) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithMetrics records job metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}
