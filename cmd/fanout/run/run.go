// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the `run` subcommand.
package run

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/fanout/cmd/fanout/cmdstate"
	"github.com/matt-FFFFFF/fanout/internal/config"
	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/matt-FFFFFF/fanout/internal/dispatch"
	"github.com/matt-FFFFFF/fanout/internal/metrics"
	"github.com/matt-FFFFFF/fanout/internal/progress"
	"github.com/matt-FFFFFF/fanout/internal/script"
	"github.com/matt-FFFFFF/fanout/internal/signalbroker"
	"github.com/matt-FFFFFF/fanout/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	configFlag         = "config"
	parallelismFlag    = "parallelism"
	gracePeriodFlag    = "grace-period"
	jobTimeoutFlag     = "job-timeout"
	shellFlag          = "shell"
	metricsAddressFlag = "metrics-address"
	tuiFlag            = "tui"
	reporterBuffer     = 64
	cliExitStr         = ""
	completedMessage   = "All tasks completed. Exiting."
)

var (
	// ErrGetConfigFile is returned when the file cannot be read.
	ErrGetConfigFile = errors.New("failed to get config file")
	// ErrBuildConfig is returned when the configuration cannot be built from the YAML file.
	ErrBuildConfig = errors.New("failed to build config")
	// ErrNoCommand is returned when neither the arguments nor the config file give a command.
	ErrNoCommand = errors.New("no command specified")
)

// RunCmd runs a shell command once per line of standard input.
var RunCmd = NewCommand()

// NewCommand returns a fresh `run` command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a command once for every line read from standard input",
		Description: `Run a shell command once for every line read from standard input.
Each line gets its own job. The command sees the job number as $1 and the line as $2,
and also as the FANOUT_JOB and FANOUT_INPUT environment variables.
Every line the command writes to stdout is printed as "Thread N: <line>".

Settings may be read from a YAML file with --config, which uses Hashicorp's go-getter
syntax to fetch files from various sources. See https://github.com/hashicorp/go-getter.
Flags override values from the file.

On Ctrl+C every running job, and every process it started, is killed.
`,
		ArgsUsage: "<command>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     configFlag,
				Aliases:  []string{"c"},
				Usage:    "URL of a YAML configuration file, in go-getter syntax",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:    parallelismFlag,
				Aliases: []string{"p"},
				Usage:   "Maximum number of jobs to run at once, 0 is unbounded",
				Value:   config.DefaultParallelism,
			},
			&cli.DurationFlag{
				Name:  gracePeriodFlag,
				Usage: "How long to wait for jobs to finish after an interrupt, 0 waits forever",
				Value: config.DefaultGracePeriod,
			},
			&cli.DurationFlag{
				Name:  jobTimeoutFlag,
				Usage: "Kill a job that runs for longer than this, 0 disables the timeout",
			},
			&cli.StringFlag{
				Name:  shellFlag,
				Usage: "Shell used to run the command, defaults to $SHELL or /bin/sh",
			},
			&cli.StringFlag{
				Name:  metricsAddressFlag,
				Usage: "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464",
			},
			&cli.BoolFlag{
				Name:    tuiFlag,
				Aliases: []string{"t", "interactive"},
				Usage:   "Show live job progress in an interactive Terminal User Interface (TUI)",
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("running run command")

	cfg, err := buildConfig(ctx, cmd)
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	state, err := cmdstate.From(ctx)
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	root := cmd.Root()

	opts := []dispatch.Option{
		dispatch.WithParallelism(cfg.Parallelism),
		dispatch.WithGracePeriod(cfg.GracePeriod),
		dispatch.WithJobTimeout(cfg.JobTimeout),
	}

	if cfg.MetricsAddress != "" {
		m := metrics.New()
		opts = append(opts, dispatch.WithMetrics(m))

		mctx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			if err := m.Serve(mctx, cfg.MetricsAddress, nil); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	s := &script.Shell{
		Shell:   cfg.Shell,
		Command: cfg.Command,
		Env:     cfg.Env,
	}

	stop := make(chan struct{})
	defer close(stop)

	out := writerOr(root.Writer, os.Stdout)
	errOut := writerOr(root.ErrWriter, os.Stderr)
	items := readLines(ctx, readerOr(root.Reader, os.Stdin), stop)

	run := func(ctx context.Context, reporter progress.Reporter) *dispatch.Results {
		d := dispatch.New(state.Registry, state.Coordinator, s, append(opts, dispatch.WithReporter(reporter))...)
		return d.Run(ctx, items)
	}

	var res *dispatch.Results

	if cmd.Bool(tuiFlag) {
		logger.Debug("starting interactive TUI mode")

		res = runWithTUI(ctx, state.Coordinator, out, errOut, run)
	} else {
		printer := progress.NewPrinter(out, errOut)
		reporter := progress.NewChannelReporter(ctx, reporterBuffer)
		reporter.Listen(printer)

		res = run(ctx, reporter)

		reporter.Close()
		printer.Println(completedMessage)
	}

	if err := res.Err(); err != nil {
		logger.Debug("run finished with errors", "run", res.RunID, "error", err)
	}

	if code := res.ExitCode(); code != dispatch.ExitSuccess {
		return cli.Exit(cliExitStr, code)
	}

	return nil
}

// runWithTUI runs under the TUI. Interrupting from the TUI triggers coord.
// Log output is held back until the TUI has given the terminal back.
func runWithTUI(
	ctx context.Context,
	coord *signalbroker.Coordinator,
	out, errOut io.Writer,
	run func(context.Context, progress.Reporter) *dispatch.Results,
) *dispatch.Results {
	var buf bytes.Buffer

	tuiCtx := ctxlog.NewBuffered(ctx, &buf)

	interrupt := func() {
		go func() {
			_ = coord.Trigger(tuiCtx)
		}()
	}

	runner := tui.NewRunner(tuiCtx, interrupt, tea.WithInputTTY(), tea.WithOutput(out))

	res, err := runner.Run(func(reporter progress.Reporter) *dispatch.Results {
		return run(tuiCtx, reporter)
	})

	buf.WriteTo(errOut) //nolint:errcheck

	if err != nil {
		ctxlog.Error(ctx, "TUI execution error", "error", err)
	}

	fmt.Fprintln(out, completedMessage) //nolint:errcheck

	return res
}

// buildConfig layers the config file and then the flags over the defaults.
func buildConfig(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()

	if src := cmd.String(configFlag); src != "" {
		var err error

		cfg, err = loadConfig(ctx, src)
		if err != nil {
			return nil, err
		}
	}

	if cmd.IsSet(parallelismFlag) {
		cfg.Parallelism = cmd.Int(parallelismFlag)
	}

	if cmd.IsSet(gracePeriodFlag) {
		cfg.GracePeriod = cmd.Duration(gracePeriodFlag)
	}

	if cmd.IsSet(jobTimeoutFlag) {
		cfg.JobTimeout = cmd.Duration(jobTimeoutFlag)
	}

	if cmd.IsSet(shellFlag) {
		cfg.Shell = cmd.String(shellFlag)
	}

	if cmd.IsSet(metricsAddressFlag) {
		cfg.MetricsAddress = cmd.String(metricsAddressFlag)
	}

	if cmd.Args().Present() {
		cfg.Command = strings.Join(cmd.Args().Slice(), " ")
	}

	if cfg.Command == "" {
		return nil, ErrNoCommand
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrBuildConfig, err)
	}

	return cfg, nil
}

// readLines sends each line of r on the returned channel, closing it at EOF.
// It gives up when stop is closed.
func readLines(ctx context.Context, r io.Reader, stop <-chan struct{}) <-chan string {
	ch := make(chan string)

	go func() {
		defer close(ch)

		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-stop:
				return
			}
		}

		if err := sc.Err(); err != nil {
			ctxlog.Error(ctx, "failed to read input", "error", err)
		}
	}()

	return ch
}

func readerOr(r io.Reader, def io.Reader) io.Reader {
	if r == nil {
		return def
	}

	return r
}

func writerOr(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}

	return w
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	fileScheme            = "file://"
	minimumGetterParts    = 3 // scheme, host and path
)

// loadConfig reads the configuration file at src. A local path is read
// straight through config.Load. Anything else is a go-getter URL: the
// directory holding the file is fetched into a temporary directory, the file
// is loaded from there and the directory is removed.
func loadConfig(ctx context.Context, src string) (*config.Config, error) {
	if src == "" {
		return nil, ErrGetConfigFile
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	req := &getter.Request{
		Src:     src,
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	local, err := getter.Detect(req, &getter.FileGetter{})
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	if local {
		return readConfig(strings.TrimPrefix(req.Src, fileScheme))
	}

	// Remote sources can only be fetched as a directory.
	// https://github.com/hashicorp/go-getter/issues/98
	dir, fileName, err := splitGetterURL(src)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "fanout-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	req.Src = dir
	req.Dst = filepath.Join(tmpDir, "g")

	client := getter.Client{
		DisableSymlinks: true,
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	ctxlog.Debug(ctx, "fetched configuration", "src", dir, "file", fileName)

	return readConfig(filepath.Join(res.Dst, fileName))
}

// readConfig loads path, telling a file that cannot be read apart from one
// that does not hold a valid configuration.
func readConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)

	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, config.ErrReadConfig):
		return nil, errors.Join(ErrGetConfigFile, err)
	default:
		return nil, errors.Join(ErrBuildConfig, err)
	}
}

// splitGetterURL splits a go-getter URL whose last `//` segment names a
// file into the URL of the directory holding it and the file name. A ref
// query stays on the directory URL.
func splitGetterURL(src string) (string, string, error) {
	parts := strings.Split(src, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", "", fmt.Errorf("%w: %s has no //path to a file", ErrGetConfigFile, src)
	}

	last, ref, _ := strings.Cut(parts[len(parts)-1], goGetterRefSeparator)

	fileName := filepath.Base(last)
	if strings.HasSuffix(last, "/") || fileName == "." || fileName == "/" {
		return "", "", fmt.Errorf("%w: %s does not name a file", ErrGetConfigFile, src)
	}

	if dir := filepath.Dir(last); dir != "." {
		parts[len(parts)-1] = dir
	} else {
		parts = parts[:len(parts)-1]
	}

	dirURL := strings.Join(parts, goGetterPathSeparator)
	if ref != "" {
		dirURL += goGetterRefSeparator + ref
	}

	return dirURL, fileName, nil
}
