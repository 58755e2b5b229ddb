// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/fanout/internal/dispatch"
	"github.com/matt-FFFFFF/fanout/internal/progress"
)

const (
	defaultWidth      = 80
	defaultHeight     = 20
	reservedLines     = 6 // title, border, status bar and help
	borderWidth       = 2
	minViewportWidth  = 20
	durationRounding  = 100 * time.Millisecond
	ellipsis          = "..."
	helpRunning       = "Ctrl+C or q to interrupt, ↑/↓ or j/k to scroll"
	helpInterrupting  = "Interrupting, waiting for jobs to finish"
	helpCompleted     = "q to quit, ↑/↓ or j/k to scroll"
	completedMessage  = "All tasks completed."
	interruptedStatus = "interrupted"
)

// EventMsg wraps a progress event for the tea framework.
type EventMsg struct {
	Event progress.Event
}

// RunCompletedMsg indicates that the run has returned.
type RunCompletedMsg struct {
	Results *dispatch.Results
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, cmd

	case EventMsg:
		m.processEvent(msg.Event)
		return m, cmd

	case RunCompletedMsg:
		m.completed = true
		m.results = msg.Results

		return m, cmd
	}

	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-borderWidth, minViewportWidth)
	m.viewport.Height = max(height-reservedLines, 1)
}

// handleKeyPress processes keyboard input. Scrolling is left to the viewport.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.completed {
			m.quitting = true
			return m, tea.Quit
		}

		if !m.interrupted {
			m.interrupted = true

			if m.interrupt != nil {
				m.interrupt()
			}
		}
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var content strings.Builder

	now := m.now()
	for _, r := range m.Rows() {
		m.renderRow(&content, r, now)
	}

	if m.completed {
		content.WriteString("\n")
		content.WriteString(m.renderCompletion())
	}

	m.viewport.SetContent(content.String())

	var view strings.Builder

	view.WriteString(m.styles.Title.Render(fmt.Sprintf("fanout: %d jobs", len(m.rows))))
	view.WriteString("\n")
	view.WriteString(m.styles.Border.Render(m.viewport.View()))
	view.WriteString("\n")
	view.WriteString(m.renderStatusBar())
	view.WriteString("\n")
	view.WriteString(m.styles.Help.Render(m.helpText()))

	return view.String()
}

func (m *Model) helpText() string {
	switch {
	case m.completed:
		return helpCompleted
	case m.interrupted:
		return helpInterrupting
	default:
		return helpRunning
	}
}

func (m *Model) renderCompletion() string {
	if m.results == nil {
		return m.styles.Success.Render(completedMessage)
	}

	msg := fmt.Sprintf("%s Exit code %d.", completedMessage, m.results.ExitCode())

	switch {
	case m.results.HasError():
		return m.styles.Failed.Render(msg)
	case m.results.Interrupted:
		return m.styles.Killed.Render(msg)
	default:
		return m.styles.Success.Render(msg)
	}
}

func (m *Model) renderStatusBar() string {
	parts := []string{
		fmt.Sprintf("in flight: %d", m.inFlight),
		fmt.Sprintf("ok: %d", m.Count(StatusSuccess)),
		fmt.Sprintf("failed: %d", m.Count(StatusFailed)),
		fmt.Sprintf("killed: %d", m.Count(StatusKilled)),
	}

	if m.interrupted {
		parts = append(parts, interruptedStatus)
	}

	if m.stopping != "" {
		parts = append(parts, m.stopping)
	}

	return m.styles.Status.Render(strings.Join(parts, "  "))
}

// renderRow renders one job with its last output or error on the right.
func (m *Model) renderRow(b *strings.Builder, r *JobRow, now time.Time) {
	var (
		icon  string
		style lipgloss.Style
	)

	switch r.Status {
	case StatusRunning:
		icon, style = "⚡", m.styles.Running
	case StatusSuccess:
		icon, style = "✅", m.styles.Success
	case StatusFailed:
		icon, style = "❌", m.styles.Failed
	case StatusKilled:
		icon, style = "💀", m.styles.Killed
	}

	available := max(m.viewport.Width-borderWidth, minViewportWidth)
	leftWidth := available / 2 //nolint:mnd
	rightWidth := available - leftWidth

	left := truncate(fmt.Sprintf("#%d %s (%v)", r.ID, r.Input, r.Elapsed(now).Round(durationRounding)), leftWidth-lipgloss.Width(icon)-1)

	var right string

	switch {
	case r.ErrorMsg != "" && r.Status != StatusRunning && r.Status != StatusSuccess:
		right = m.styles.Error.Render(truncate(r.ErrorMsg, rightWidth))
	case r.LastOutput != "":
		right = m.styles.Output.Render(truncate(r.LastOutput, rightWidth))
	}

	line := icon + " " + style.Render(left)
	if pad := leftWidth - lipgloss.Width(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}

	b.WriteString(line)
	b.WriteString(right)
	b.WriteString("\n")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 {
		return ""
	}

	if len(runes) <= n {
		return s
	}

	if n <= len(ellipsis) {
		return string(runes[:n])
	}

	return string(runes[:n-len(ellipsis)]) + ellipsis
}
