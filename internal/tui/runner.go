// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/fanout/internal/dispatch"
	"github.com/matt-FFFFFF/fanout/internal/progress"
)

// Reporter implements progress.Reporter and forwards events to the TUI.
// Report blocks until the program takes the event, or the program has exited.
type Reporter struct {
	program *tea.Program
	closed  bool
	mu      sync.RWMutex
}

var _ progress.Reporter = (*Reporter)(nil)

// NewReporter creates a reporter sending to program.
func NewReporter(program *tea.Program) *Reporter {
	return &Reporter{
		program: program,
	}
}

// Report implements progress.Reporter.Report.
func (r *Reporter) Report(event progress.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.program == nil {
		return
	}

	r.program.Send(EventMsg{Event: event})
}

// Close implements progress.Reporter.Close. Later reports are dropped.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
}

// Runner owns the bubbletea program for one run.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
}

// NewRunner creates a runner. interrupt is called when the user stops the
// run from the TUI. Signals are left to the caller: the program installs no
// handler of its own.
func NewRunner(ctx context.Context, interrupt func(), opts ...tea.ProgramOption) *Runner {
	model := NewModel(interrupt)

	opts = append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	}, opts...)

	program := tea.NewProgram(model, opts...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewReporter(program),
	}
}

// Reporter returns the progress reporter feeding the TUI.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run starts the TUI, calls run with the TUI's reporter and, once run has
// returned, waits for the user to quit. If the program exits first, run is
// still waited for and its results returned along with the program's error.
func (r *Runner) Run(run func(progress.Reporter) *dispatch.Results) (*dispatch.Results, error) {
	resultCh := make(chan *dispatch.Results, 1)

	go func() {
		resultCh <- run(r.reporter)
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	select {
	case res := <-resultCh:
		r.reporter.Close()
		r.program.Send(RunCompletedMsg{Results: res})

		return res, <-tuiDone

	case err := <-tuiDone:
		r.reporter.Close()

		return <-resultCh, err
	}
}
