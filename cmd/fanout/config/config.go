// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config implements the `config` subcommand, which prints an example
// configuration file.
package config

import (
	"context"
	"fmt"

	"github.com/matt-FFFFFF/fanout/internal/config"
	"github.com/urfave/cli/v3"
)

const exampleCommand = `echo "job $1: $2"`

// ConfigCmd prints an example configuration file.
var ConfigCmd = &cli.Command{
	Name:   "config",
	Usage:  "Print an example configuration file for `fanout run --config`",
	Action: actionFunc,
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	cfg.Command = exampleCommand

	data, err := cfg.Marshal()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to encode configuration: %s", err), 1)
	}

	_, err = cmd.Root().Writer.Write(data)

	return err
}
