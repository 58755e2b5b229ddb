// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !unix

package jobs

import (
	"errors"
	"os"
)

// killProcessGroup kills the process. Process groups are not available here.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return nil //nolint:nilerr // not running
	}

	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err //nolint:wrapcheck
	}

	return nil
}
