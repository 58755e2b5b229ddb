// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build unix

package signalbroker

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DeliversSignal(t *testing.T) {
	ctx := ctxlog.NewDiscard(context.Background())

	ch := New(ctx, syscall.SIGUSR1)
	defer Stop(ch)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case sig := <-ch:
		assert.Equal(t, syscall.SIGUSR1, sig)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
}
