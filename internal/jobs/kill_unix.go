// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build unix

package jobs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// killProcessGroup sends SIGKILL to the process group led by pid, which
// reaches grandchildren too. If pid does not lead a group the process itself
// is signalled.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}

	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, unix.SIGKILL)
	}

	if errors.Is(err, unix.ESRCH) {
		return nil
	}

	return err //nolint:wrapcheck
}
