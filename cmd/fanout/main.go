// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the fanout command-line interface (CLI).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/fanout"
	"github.com/matt-FFFFFF/fanout/cmd/fanout/cmdstate"
	"github.com/matt-FFFFFF/fanout/cmd/fanout/config"
	"github.com/matt-FFFFFF/fanout/cmd/fanout/run"
	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/dispatch"
	"github.com/matt-FFFFFF/fanout/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

const (
	logLevelFlag  = "log-level"
	logFormatFlag = "log-format"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		config.ConfigCmd,
		run.RunCmd,
	},
	Reader:    os.Stdin,
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "fanout",
	Description: `fanout runs a shell command once for every line read from standard input,
each in its own job. Jobs run concurrently and every process a job starts is tracked,
so a single Ctrl+C kills every running process, including grandchildren, and exits cleanly.`,
	Usage:     "seq 10 | fanout run 'echo \"job $1 got $2\"'",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
	Flags:                 logFlags(),
	Before:                configureLogging,
	// Exit codes are decided in main, after the interrupt state is known.
	ExitErrHandler: func(context.Context, *cli.Command, error) {},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	state := cmdstate.New()
	ctx = cmdstate.With(ctx, state)

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go state.Coordinator.Watch(ctx, sigCh)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", fanout.Version, fanout.Commit)

	err := rootCmd.Run(ctx, os.Args)

	code := exitCode(err, state.Coordinator)

	switch {
	case code == dispatch.ExitInterrupted:
		ctxlog.Logger(ctx).Error("command terminated by interrupt")
	case code != dispatch.ExitSuccess:
		ctxlog.Logger(ctx).Error("command execution failed", "error", errors.Join(err, state.Coordinator.Err()), "exitCode", code)
	default:
		ctxlog.Logger(ctx).Info("command completed successfully")
	}

	os.Exit(code)
}

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "Log level: debug, info, warn or error",
			Sources: cli.EnvVars(ctxlog.LogLevelEnvVar),
		},
		&cli.StringFlag{
			Name:  logFormatFlag,
			Usage: "Log format: pretty or json",
			Value: ctxlog.FormatPretty,
		},
	}
}

// configureLogging applies the log flags to the shared level and to the
// logger carried by ctx.
func configureLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet(logLevelFlag) {
		level, ok := ctxlog.ParseLevel(cmd.String(logLevelFlag))
		if !ok {
			return ctx, cli.Exit(fmt.Sprintf("invalid log level %q", cmd.String(logLevelFlag)), 1)
		}

		ctxlog.LevelVar.Set(level)
	}

	logger, err := ctxlog.ForFormat(cmd.String(logFormatFlag))
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}

	return ctxlog.New(ctx, logger), nil
}

// exitCode maps the outcome of the root command to the process exit status.
// An exit code carried by err wins. Otherwise an interrupt whose teardown
// failed to kill a process is a failure, not a clean 130.
func exitCode(err error, coord *signalbroker.Coordinator) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}

	if coord.Interrupted() {
		if coord.Err() != nil {
			return dispatch.ExitFailure
		}

		return dispatch.ExitInterrupted
	}

	if err != nil {
		return dispatch.ExitFailure
	}

	return dispatch.ExitSuccess
}
