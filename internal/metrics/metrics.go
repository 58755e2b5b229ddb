// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus metrics for job execution.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matt-FFFFFF/fanout"
	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fanout"

const shutdownTimeout = 5 * time.Second

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsKilled    prometheus.Counter
	jobsInFlight  prometheus.Gauge
	processes     prometheus.Gauge
	jobDuration   prometheus.Histogram
	interrupts    prometheus.Counter
	buildInfo     *prometheus.GaugeVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Total number of jobs started.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs completed successfully.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that returned an error.",
		}),
		jobsKilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_killed_total",
			Help:      "Total number of jobs interrupted before completion.",
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Current number of running jobs.",
		}),
		processes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_processes",
			Help:      "Number of OS processes tracked by live jobs at the last sample.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Number of global interrupts delivered.",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build metadata for the running binary.",
		}, []string{"version", "commit"}),
	}

	m.registry.MustRegister(
		m.jobsStarted,
		m.jobsCompleted,
		m.jobsFailed,
		m.jobsKilled,
		m.jobsInFlight,
		m.processes,
		m.jobDuration,
		m.interrupts,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.buildInfo.WithLabelValues(fanout.Version, fanout.Commit).Set(1)

	return m
}

// Registry returns the Prometheus registry containing all metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// JobStarted records a job starting.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}

	m.jobsStarted.Inc()
	m.jobsInFlight.Inc()
}

// JobCompleted records a successful job.
func (m *Metrics) JobCompleted(d time.Duration) {
	if m == nil {
		return
	}

	m.jobsCompleted.Inc()
	m.finish(d)
}

// JobFailed records a job that returned an error.
func (m *Metrics) JobFailed(d time.Duration) {
	if m == nil {
		return
	}

	m.jobsFailed.Inc()
	m.finish(d)
}

// JobKilled records a job that was interrupted.
func (m *Metrics) JobKilled(d time.Duration) {
	if m == nil {
		return
	}

	m.jobsKilled.Inc()
	m.finish(d)
}

// Interrupted records a global interrupt.
func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}

	m.interrupts.Inc()
}

// SetTrackedProcesses records the number of processes owned by live jobs.
func (m *Metrics) SetTrackedProcesses(n int) {
	if m == nil {
		return
	}

	m.processes.Set(float64(n))
}

func (m *Metrics) finish(d time.Duration) {
	m.jobsInFlight.Dec()
	m.jobDuration.Observe(d.Seconds())
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
// ready, if non-nil, is called with the bound address once the listener is open.
func (m *Metrics) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if ready != nil {
		ready(ln.Addr())
	}

	ctxlog.Debug(ctx, "metrics server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
