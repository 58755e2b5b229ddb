// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build linux

package proc

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gone reports whether pid no longer runs. A zombie waiting for its new
// parent to reap it counts as gone.
func gone(pid int) bool {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}

	s := string(b)
	if i := strings.LastIndexByte(s, ')'); i >= 0 && i+2 < len(s) {
		return s[i+2] == 'Z'
	}

	return false
}

func TestKill_ReachesGrandchildren(t *testing.T) {
	r := jobs.NewRegistry()
	j := r.Create("")

	cmd := exec.Command("/bin/sh", "-c", "sleep 10 & echo $!; wait")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)

	h, err := Start(testCtx(), j, cmd)
	require.NoError(t, err)

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)

	grandchild, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	require.False(t, gone(grandchild))

	require.NoError(t, r.KillAndRemove(j.ID()))
	_ = waitWithin(t, h, time.Second)

	assert.Eventually(t, func() bool { return gone(grandchild) }, time.Second, 10*time.Millisecond,
		"grandchild %d should be killed with its process group", grandchild)
}
