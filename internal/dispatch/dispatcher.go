// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/matt-FFFFFF/fanout/internal/metrics"
	"github.com/matt-FFFFFF/fanout/internal/progress"
	"github.com/matt-FFFFFF/fanout/internal/script"
	"github.com/matt-FFFFFF/fanout/internal/signalbroker"
	"golang.org/x/sync/semaphore"
)

const maxTagLength = 40

var (
	// ErrWorkerPanic is recorded on the result of a worker whose script panicked.
	ErrWorkerPanic = errors.New("worker panic")
	// ErrAbandoned is recorded on the result of a worker still running when the grace period ran out.
	ErrAbandoned = errors.New("worker abandoned after grace period")
	// ErrJobTimeout is recorded on the result of a job killed by the per-job timeout.
	ErrJobTimeout = errors.New("job timeout exceeded")
)

// Dispatcher runs a script once per work item, each in its own job.
type Dispatcher struct {
	registry    *jobs.Registry
	coord       *signalbroker.Coordinator
	script      script.Script
	parallelism int
	gracePeriod time.Duration
	jobTimeout  time.Duration
	reporter    progress.Reporter
	metrics     *metrics.Metrics
}

// New returns a dispatcher creating jobs in registry and stopping when coord triggers.
func New(registry *jobs.Registry, coord *signalbroker.Coordinator, s script.Script, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		coord:       coord,
		script:      s,
		gracePeriod: DefaultGracePeriod,
		reporter:    progress.NewNullReporter(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

type pending struct {
	res   *Result
	start time.Time
}

// Run consumes items in order, running the script for each one in a new job.
//
// It stops accepting items when the channel is closed, the coordinator
// triggers or ctx is done. Cancelling ctx triggers the coordinator. Run
// returns once every started worker has finished or, after an interrupt,
// once the grace period has elapsed.
func (d *Dispatcher) Run(ctx context.Context, items <-chan string) *Results {
	runID := uuid.NewString()
	ctx = ctxlog.With(ctx, "run", runID)
	logger := ctxlog.Logger(ctx)

	stopCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	watchDone := make(chan struct{})

	go func() {
		defer close(watchDone)
		defer stop()

		select {
		case <-ctx.Done():
			logger.Info("context done, interrupting run", "error", ctx.Err())
			_ = d.coord.Trigger(context.WithoutCancel(ctx))
		case <-d.coord.Done():
		case <-stopCtx.Done():
		}
	}()

	defer func() {
		stop()
		<-watchDone
	}()

	var sem *semaphore.Weighted
	if d.parallelism > 0 {
		sem = semaphore.NewWeighted(int64(d.parallelism))
	}

	started := make(chan pending)
	finished := make(chan *Result)
	abandon := make(chan struct{})
	feederDone := make(chan bool, 1)

	go func() {
		feederDone <- d.feed(ctx, stopCtx, items, sem, started, finished, abandon)
	}()

	results := &Results{RunID: runID}
	inFlight := make(map[jobs.ID]pending)
	feeding := true
	stopC := stopCtx.Done()

	var graceC <-chan time.Time

collect:
	for feeding || len(inFlight) > 0 {
		select {
		case p := <-started:
			inFlight[p.res.JobID] = p
			d.sampleProcesses()

		case r := <-finished:
			delete(inFlight, r.JobID)
			results.Items = append(results.Items, r)
			d.sampleProcesses()

		case interrupted := <-feederDone:
			feeding = false
			logger.Debug("input stopped", "interrupted", interrupted, "inFlight", len(inFlight))
			d.reporter.Report(progress.Event{
				Type:      progress.EventStopping,
				Message:   "waiting for all tasks to complete",
				Timestamp: time.Now(),
				Data:      progress.EventData{Interrupted: interrupted},
			})

		case <-stopC:
			stopC = nil

			if d.coord.Interrupted() {
				d.metrics.Interrupted()
			}

			if d.gracePeriod > 0 {
				t := time.NewTimer(d.gracePeriod)
				defer t.Stop()

				graceC = t.C
			}

		case <-graceC:
			logger.Warn("grace period elapsed, abandoning workers", "workers", len(inFlight))

			for id, p := range inFlight {
				p.res.Err = ErrAbandoned
				p.res.Status = StatusAbandoned
				p.res.Duration = time.Since(p.start)
				results.Items = append(results.Items, p.res)

				delete(inFlight, id)
			}

			break collect
		}
	}

	close(abandon)

	if feeding {
		<-feederDone
	}

	slices.SortFunc(results.Items, func(a, b *Result) int {
		return cmp.Compare(a.JobID, b.JobID)
	})

	results.Interrupted = d.coord.Interrupted()

	select {
	case <-d.coord.Done():
		results.TeardownErr = d.coord.Err()
	default:
	}

	logger.Debug("run complete",
		"items", len(results.Items),
		"interrupted", results.Interrupted,
		"exitCode", results.ExitCode())

	return results
}

// feed reads items and starts a worker for each until items is closed or
// stopCtx is done. It reports whether it stopped because of an interrupt.
func (d *Dispatcher) feed(
	ctx, stopCtx context.Context,
	items <-chan string,
	sem *semaphore.Weighted,
	started chan<- pending,
	finished chan<- *Result,
	abandon <-chan struct{},
) bool {
	for {
		var item string

		select {
		case <-stopCtx.Done():
			return true
		case i, ok := <-items:
			if !ok {
				return false
			}

			item = i
		}

		if sem != nil {
			if err := sem.Acquire(stopCtx, 1); err != nil {
				return true
			}
		}

		job := d.registry.Create(tagFor(item))
		if job.IsInterrupted() {
			// The registry has shut down and the job is not tracked.
			release(sem)
			return true
		}

		p := pending{
			res:   &Result{JobID: job.ID(), Input: item},
			start: time.Now(),
		}

		select {
		case started <- p:
		case <-abandon:
			d.registry.Remove(job.ID())
			release(sem)

			return true
		}

		go d.work(ctx, job, p, sem, finished, abandon)
	}
}

func (d *Dispatcher) work(
	ctx context.Context,
	job *jobs.Job,
	p pending,
	sem *semaphore.Weighted,
	finished chan<- *Result,
	abandon <-chan struct{},
) {
	res := d.execute(ctx, job, p.res.Input)
	res.Duration = time.Since(p.start)

	d.registry.Remove(job.ID())
	d.complete(res)
	release(sem)

	select {
	case finished <- res:
	case <-abandon:
	}
}

// execute runs the script for one item, converting panics into errors.
func (d *Dispatcher) execute(ctx context.Context, job *jobs.Job, input string) (res *Result) {
	res = &Result{JobID: job.ID(), Input: input}
	logger := ctxlog.Logger(ctx).With("job", uint64(job.ID()))

	var timedOut atomic.Bool

	if d.jobTimeout > 0 {
		t := time.AfterFunc(d.jobTimeout, func() {
			timedOut.Store(true)
			logger.Info("job timeout exceeded, killing job", "timeout", d.jobTimeout)

			if err := d.registry.KillAndRemove(job.ID()); err != nil {
				logger.Error("job timeout kill error", "error", err)
			}
		})
		defer t.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked", "panic", r)
			res.Err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}

		if timedOut.Load() && res.Err != nil {
			res.Err = errors.Join(ErrJobTimeout, res.Err)
		}

		res.Status = classify(job, res.Err)
	}()

	d.metrics.JobStarted()
	d.reporter.Report(progress.Event{
		JobID:     uint64(job.ID()),
		Input:     input,
		Type:      progress.EventStarted,
		Message:   "job started",
		Timestamp: time.Now(),
	})

	res.Output, res.Err = d.script.Run(ctx, script.NewContext(job, input, d.coord))

	return res
}

// complete reports the outcome of a finished worker.
func (d *Dispatcher) complete(res *Result) {
	id := uint64(res.JobID)

	for _, line := range res.Output {
		d.reporter.Report(progress.Event{
			JobID:     id,
			Input:     res.Input,
			Type:      progress.EventOutput,
			Timestamp: time.Now(),
			Data:      progress.EventData{OutputLine: line},
		})
	}

	e := progress.Event{
		JobID:     id,
		Input:     res.Input,
		Timestamp: time.Now(),
		Data:      progress.EventData{Error: res.Err, Duration: res.Duration},
	}

	switch res.Status {
	case StatusSuccess:
		e.Type, e.Message = progress.EventCompleted, "job completed"
		d.metrics.JobCompleted(res.Duration)
	case StatusKilled:
		e.Type, e.Message = progress.EventKilled, "job killed"
		d.metrics.JobKilled(res.Duration)
	default:
		e.Type, e.Message = progress.EventFailed, "job failed"
		d.metrics.JobFailed(res.Duration)
	}

	d.reporter.Report(e)
}

func (d *Dispatcher) sampleProcesses() {
	if d.metrics == nil {
		return
	}

	n := 0

	for _, id := range d.registry.IDs() {
		if j, ok := d.registry.Get(id); ok {
			n += len(j.Pids())
		}
	}

	d.metrics.SetTrackedProcesses(n)
}

func classify(job *jobs.Job, err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrWorkerPanic):
		return StatusError
	case errors.Is(err, script.ErrInterrupted), errors.Is(err, ErrJobTimeout), job.IsInterrupted():
		return StatusKilled
	default:
		return StatusError
	}
}

func release(sem *semaphore.Weighted) {
	if sem != nil {
		sem.Release(1)
	}
}

func tagFor(item string) string {
	r := []rune(item)
	if len(r) > maxTagLength {
		return string(r[:maxTagLength-3]) + "..."
	}

	return item
}
