// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/fanout/internal/dispatch"
	"github.com/matt-FFFFFF/fanout/internal/progress"
)

// JobStatus is the state of a job row.
type JobStatus int

const (
	StatusRunning JobStatus = iota
	StatusSuccess
	StatusFailed
	StatusKilled
)

// String returns a string representation of the job status.
func (s JobStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// JobRow is one job in the table.
type JobRow struct {
	ID         uint64        // Job number
	Input      string        // Work item
	Status     JobStatus     // Current status
	StartTime  time.Time     // When the job started
	Duration   time.Duration // Set once the job has finished
	LastOutput string        // Last line of output
	ErrorMsg   string        // Error for failed or killed jobs
	started    bool
}

// Elapsed is the job's run time so far, or its final duration.
func (r *JobRow) Elapsed(now time.Time) time.Duration {
	if r.Status != StatusRunning {
		return r.Duration
	}

	if r.StartTime.IsZero() {
		return 0
	}

	return now.Sub(r.StartTime)
}

// Model is the TUI application state. It is only touched from the bubbletea
// event loop, or directly by tests.
type Model struct {
	rows     map[uint64]*JobRow
	order    []uint64 // Job numbers, ascending
	inFlight int
	stopping string // Message of the stopping event, once the run stops taking input

	interrupt   func()
	interrupted bool
	completed   bool
	results     *dispatch.Results

	viewport viewport.Model
	width    int
	height   int
	quitting bool
	now      func() time.Time

	styles *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Killed  lipgloss.Style
	Output  lipgloss.Style
	Error   lipgloss.Style
	Status  lipgloss.Style
	Help    lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Killed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// NewModel creates a model. interrupt is called, at most once, when the user
// asks to stop a run that is still going. It may be nil.
func NewModel(interrupt func()) *Model {
	return &Model{
		rows:      make(map[uint64]*JobRow),
		interrupt: interrupt,
		viewport:  viewport.New(defaultWidth, defaultHeight),
		now:       time.Now,
		styles:    NewStyles(),
	}
}

// InFlight is the number of jobs started but not yet finished.
func (m *Model) InFlight() int {
	return m.inFlight
}

// Rows returns the job rows in job number order.
func (m *Model) Rows() []*JobRow {
	rows := make([]*JobRow, 0, len(m.order))
	for _, id := range m.order {
		rows = append(rows, m.rows[id])
	}

	return rows
}

// Count returns the number of rows with status s.
func (m *Model) Count(s JobStatus) int {
	n := 0

	for _, r := range m.rows {
		if r.Status == s {
			n++
		}
	}

	return n
}

// row returns the row for the event's job, creating it if needed.
func (m *Model) row(e progress.Event) *JobRow {
	if r, ok := m.rows[e.JobID]; ok {
		return r
	}

	r := &JobRow{
		ID:     e.JobID,
		Input:  e.Input,
		Status: StatusRunning,
	}
	m.rows[e.JobID] = r

	i, _ := slices.BinarySearch(m.order, e.JobID)
	m.order = slices.Insert(m.order, i, e.JobID)

	return r
}

// processEvent applies one progress event.
func (m *Model) processEvent(e progress.Event) {
	switch e.Type {
	case progress.EventStarted:
		r := m.row(e)
		r.StartTime = e.Timestamp

		if !r.started {
			r.started = true
			m.inFlight++
		}

	case progress.EventOutput:
		m.row(e).LastOutput = lastLine(e.Data.OutputLine)

	case progress.EventCompleted:
		m.finish(m.row(e), StatusSuccess, e)

	case progress.EventFailed:
		m.finish(m.row(e), StatusFailed, e)

	case progress.EventKilled:
		m.finish(m.row(e), StatusKilled, e)

	case progress.EventStopping:
		m.stopping = e.Message
	}
}

func (m *Model) finish(r *JobRow, s JobStatus, e progress.Event) {
	if r.started && r.Status == StatusRunning {
		m.inFlight--
	}

	r.Status = s
	r.Duration = e.Data.Duration

	if e.Data.Error != nil {
		r.ErrorMsg = lastLine(e.Data.Error.Error())
	}
}

// lastLine keeps the last non-empty line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
