// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !unix

package proc

import "os/exec"

func setSysProcAttr(_ *exec.Cmd) {}
