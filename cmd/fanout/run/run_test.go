// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/cmd/fanout/cmdstate"
	"github.com/matt-FFFFFF/fanout/internal/config"
	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func Test_loadConfig(t *testing.T) {
	const path = "/etc/fanout/fanout.yaml"

	testCases := []struct {
		name    string
		src     string
		content string
		wantErr []error
		want    *config.Config
	}{
		{
			name:    "empty src returns error",
			src:     "",
			wantErr: []error{ErrGetConfigFile},
		},
		{
			name:    "getter fails",
			src:     "git::http://notexist//file.yaml",
			wantErr: []error{ErrGetConfigFile},
		},
		{
			name:    "remote src without a file",
			src:     "https://example.com/fanout.yaml",
			wantErr: []error{ErrGetConfigFile},
		},
		{
			name:    "missing local file",
			src:     "/etc/fanout/missing.yaml",
			wantErr: []error{ErrGetConfigFile, config.ErrReadConfig},
		},
		{
			name:    "invalid local file",
			src:     path,
			content: "parallelism: [",
			wantErr: []error{ErrBuildConfig, config.ErrInvalidYaml},
		},
		{
			name:    "out of range value",
			src:     "file://" + path,
			content: "parallelism: -2\n",
			wantErr: []error{ErrBuildConfig, config.ErrInvalidConfig},
		},
		{
			name:    "local file is read through the config filesystem",
			src:     path,
			content: "parallelism: 3\njob_timeout: 2s\ncommand: echo $2\n",
			want: &config.Config{
				Parallelism: 3,
				GracePeriod: config.DefaultGracePeriod,
				JobTimeout:  2 * time.Second,
				Command:     "echo $2",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tc.content != "" {
				require.NoError(t, afero.WriteFile(fs, path, []byte(tc.content), 0o644))
			}

			stubs := gostub.Stub(&config.FsFactory, func() afero.Fs { return fs })
			defer stubs.Reset()

			cfg, err := loadConfig(context.Background(), tc.src)
			if tc.wantErr != nil {
				for _, want := range tc.wantErr {
					require.ErrorIs(t, err, want)
				}

				assert.Nil(t, cfg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func Test_splitGetterURL(t *testing.T) {
	testCases := []struct {
		url      string
		wantURL  string
		wantFile string
		wantErr  bool
	}{
		{
			url:      "git::https://github.com/org/repo//dir/fanout.yaml?ref=v1",
			wantURL:  "git::https://github.com/org/repo//dir?ref=v1",
			wantFile: "fanout.yaml",
		},
		{
			url:      "git::https://github.com/org/repo//fanout.yaml",
			wantURL:  "git::https://github.com/org/repo",
			wantFile: "fanout.yaml",
		},
		{
			url:     "https://example.com/fanout.yaml",
			wantErr: true,
		},
		{
			url:     "git::https://github.com/org/repo//dir/",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			u, f, err := splitGetterURL(tc.url)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrGetConfigFile)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantURL, u)
			assert.Equal(t, tc.wantFile, f)
		})
	}
}

type exitRecorder struct {
	code int
}

func runFanout(t *testing.T, input string, args ...string) (string, string, *exitRecorder) {
	t.Helper()

	var out, errOut bytes.Buffer

	rec := &exitRecorder{}
	root := &cli.Command{
		Name:      "fanout",
		Commands:  []*cli.Command{NewCommand()},
		Reader:    strings.NewReader(input),
		Writer:    &out,
		ErrWriter: &errOut,
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if ec, ok := err.(cli.ExitCoder); ok {
				rec.code = ec.ExitCode()
			}
		},
	}

	ctx := cmdstate.With(ctxlog.NewDiscard(context.Background()), cmdstate.New())
	_ = root.Run(ctx, append([]string{"fanout", "run"}, args...))

	return out.String(), errOut.String(), rec
}

func TestRun_PrintsThreadOutput(t *testing.T) {
	out, _, rec := runFanout(t, "a\nb\n", "--parallelism", "1", "--shell", "/bin/sh", `echo "$1 got $2"`)

	assert.Zero(t, rec.code)
	assert.Contains(t, out, "Thread 0 starting execution\n")
	assert.Contains(t, out, "Thread 0: 0 got a\n")
	assert.Contains(t, out, "Thread 1: 1 got b\n")
	assert.Contains(t, out, "Reached end of input. Shutting down...\n")
	assert.Contains(t, out, "Waiting for all tasks to complete...\n")
	assert.True(t, strings.HasSuffix(out, "All tasks completed. Exiting.\n"))
}

func TestRun_FailureSetsExitCode(t *testing.T) {
	out, errOut, rec := runFanout(t, "x\n", "--shell", "/bin/sh", `echo oops >&2; exit 3`)

	assert.Equal(t, 1, rec.code)
	assert.Contains(t, errOut, "Thread 0: Error:")
	assert.Contains(t, errOut, "oops")
	assert.Contains(t, out, "All tasks completed. Exiting.")
}

func TestRun_ConfigFile(t *testing.T) {
	out, _, rec := runFanout(t, "z\n", "--config", "./testdata/fanout.yaml")

	assert.Zero(t, rec.code)
	assert.Contains(t, out, "Thread 0: from config z\n")
}

func TestRun_NoCommand(t *testing.T) {
	_, _, rec := runFanout(t, "z\n")

	assert.Equal(t, 1, rec.code)
}

func TestRun_BadConfig(t *testing.T) {
	_, _, rec := runFanout(t, "z\n", "--config", "./testdata/missing.yaml", "true")

	assert.Equal(t, 1, rec.code)
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	cmd := NewCommand()

	var gotParallelism int

	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		cfg, err := buildConfig(ctx, c)
		require.NoError(t, err)

		gotParallelism = cfg.Parallelism
		assert.Equal(t, "/bin/sh", cfg.Shell)
		assert.Equal(t, "echo override", cfg.Command)

		return nil
	}

	root := &cli.Command{Name: "fanout", Commands: []*cli.Command{cmd}}
	err := root.Run(context.Background(), []string{"fanout", "run", "--config", "./testdata/fanout.yaml", "-p", "7", "echo", "override"})
	require.NoError(t, err)
	assert.Equal(t, 7, gotParallelism)
}

func TestRun_NoStateInContext(t *testing.T) {
	var code int

	root := &cli.Command{
		Name:      "fanout",
		Commands:  []*cli.Command{NewCommand()},
		Reader:    strings.NewReader("a\n"),
		Writer:    &bytes.Buffer{},
		ErrWriter: &bytes.Buffer{},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if ec, ok := err.(cli.ExitCoder); ok {
				code = ec.ExitCode()
			}
		},
	}

	_ = root.Run(ctxlog.NewDiscard(context.Background()), []string{"fanout", "run", "--shell", "/bin/sh", "true"})

	assert.Equal(t, 1, code)
}
