// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time Terminal User Interface (TUI) for watching
// a fanout run. It shows one row per job with its status, elapsed time and the
// last line of output, plus a status bar with the number of jobs in flight.
//
// The TUI is driven by the same progress events as the line printer. While
// jobs are running, Ctrl+C or 'q' interrupts the run through the supplied
// callback rather than leaving the TUI; once the run is over the same keys quit.
package tui
