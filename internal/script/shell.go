// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package script

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
)

const (
	// EnvInput holds the work item in the environment of shell scripts.
	EnvInput = "FANOUT_INPUT"
	// EnvJob holds the job number in the environment of shell scripts.
	EnvJob = "FANOUT_JOB"

	commandSwitch = "-c"
	binSh         = "/bin/sh"
	maxStdout     = 8 * 1024 * 1024
	stderrTail    = 4 * 1024
	pipeWaitDelay = 2 * time.Second
)

var (
	// ErrCommandFailed is returned when the shell exits unsuccessfully.
	ErrCommandFailed = errors.New("command failed")
	// ErrEmptyCommand is returned when no command was configured.
	ErrEmptyCommand = errors.New("empty command")
	// ErrOutputTooLarge is returned when stdout exceeds the capture limit.
	ErrOutputTooLarge = fmt.Errorf("output exceeds max size of %d bytes", maxStdout)
)

var _ Script = (*Shell)(nil)

// Shell runs a command line through a shell once per work item as
//
//	<shell> -c <command> <shell> <number> <input>
//
// so the command sees the job number as $1 and the input as $2.
// Each line written to stdout is one line of output.
type Shell struct {
	Shell   string            // Shell executable, defaults to $SHELL then /bin/sh
	Command string            // Command line passed to the shell
	Env     map[string]string // Extra environment variables
	Dir     string            // Working directory, defaults to the current one
}

// Run implements Script.
func (s *Shell) Run(ctx context.Context, ec *Context) (Output, error) {
	if s.Command == "" {
		return nil, ErrEmptyCommand
	}

	shell := s.Shell
	if shell == "" {
		shell = DefaultShell(ctx)
	}

	number := strconv.FormatUint(ec.Number, 10)

	cmd := exec.Command(shell, commandSwitch, s.Command, shell, number, ec.Input) //nolint:gosec
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), EnvInput+"="+ec.Input, EnvJob+"="+number)

	for _, k := range slices.Sorted(maps.Keys(s.Env)) {
		cmd.Env = append(cmd.Env, k+"="+s.Env[k])
	}

	stdout := &limitedBuffer{max: maxStdout}
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = pipeWaitDelay

	ctxlog.Debug(ctx, "running shell script", "job", ec.Number, "shell", shell)

	err := ec.Run(ctx, cmd)
	out := splitLines(stdout.Bytes())

	switch {
	case ec.IsInterrupted():
		return out, errors.Join(fmt.Errorf("%w: %s", ErrInterrupted, ec.Job), err)
	case err != nil:
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return out, fmt.Errorf("%w: %w: %s", ErrCommandFailed, err, tail)
		}

		return out, fmt.Errorf("%w: %w", ErrCommandFailed, err)
	case stdout.overflow:
		return out, ErrOutputTooLarge
	}

	return out, nil
}

// DefaultShell returns $SHELL, or /bin/sh when it is unset.
func DefaultShell(ctx context.Context) string {
	if shell := os.Getenv("SHELL"); shell != "" {
		ctxlog.Debug(ctx, "using SHELL environment variable", "shell", shell)
		return shell
	}

	return binSh
}

func splitLines(b []byte) Output {
	if len(b) == 0 {
		return nil
	}

	var out Output

	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), maxStdout)

	for sc.Scan() {
		out = append(out, strings.TrimSuffix(sc.Text(), "\r"))
	}

	return out
}

// limitedBuffer keeps the first max bytes written to it and discards the rest.
type limitedBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	room := l.max - l.buf.Len()
	if room < len(p) {
		l.overflow = true

		if room > 0 {
			l.buf.Write(p[:room])
		}

		return len(p), nil
	}

	return l.buf.Write(p)
}

func (l *limitedBuffer) Bytes() []byte {
	return l.buf.Bytes()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
