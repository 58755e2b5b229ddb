// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"fmt"
	"io"
	"sync"
)

// Printer writes events as plain text lines, one per event:
//
//	Thread 0 starting execution
//	Thread 0: <output line>
//	Thread 0: Error: <error>
//
// followed by the shutdown messages once input stops.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewPrinter returns a printer writing output to out and errors to errOut.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, err: errOut}
}

// OnEvent implements Listener.
func (p *Printer) OnEvent(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case EventStarted:
		fmt.Fprintf(p.out, "Thread %d starting execution\n", e.JobID) //nolint:errcheck
	case EventOutput:
		fmt.Fprintf(p.out, "Thread %d: %s\n", e.JobID, e.Data.OutputLine) //nolint:errcheck
	case EventFailed:
		fmt.Fprintf(p.err, "Thread %d: Error: %v\n", e.JobID, e.Data.Error) //nolint:errcheck
	case EventKilled:
		fmt.Fprintf(p.err, "Thread %d: killed: %v\n", e.JobID, e.Data.Error) //nolint:errcheck
	case EventStopping:
		if e.Data.Interrupted {
			fmt.Fprintln(p.out, "Received interrupt signal. Shutting down...") //nolint:errcheck
		} else {
			fmt.Fprintln(p.out, "Reached end of input. Shutting down...") //nolint:errcheck
		}

		fmt.Fprintln(p.out, "Waiting for all tasks to complete...") //nolint:errcheck
	case EventCompleted:
	}
}

// Println writes a status line to the output writer, serialised with events.
func (p *Printer) Println(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, msg) //nolint:errcheck
}
