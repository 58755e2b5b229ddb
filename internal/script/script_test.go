// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package script

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flag struct {
	atomic.Bool
}

func (f *flag) Interrupted() bool {
	return f.Load()
}

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Output
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "hello", want: Output{"hello"}},
		{name: "strings", in: []string{"a", "b"}, want: Output{"a", "b"}},
		{name: "list", in: []any{1, "two", 3.5}, want: Output{"1", "two", "3.5"}},
		{name: "int", in: 42, want: Output{"42"}},
		{name: "output", in: Output{"x"}, want: Output{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestContext_IsInterrupted(t *testing.T) {
	r := jobs.NewRegistry()
	job := r.Create("")
	global := &flag{}

	ec := NewContext(job, "in", global)
	assert.Equal(t, uint64(job.ID()), ec.Number)
	assert.False(t, ec.IsInterrupted())

	global.Store(true)
	assert.True(t, ec.IsInterrupted(), "global flag should interrupt every context")

	ec2 := NewContext(r.Create(""), "in", nil)
	assert.False(t, ec2.IsInterrupted())
	require.NoError(t, ec2.Job.Kill())
	assert.True(t, ec2.IsInterrupted())

	select {
	case <-ec2.Done():
	default:
		t.Fatal("done channel should be closed after kill")
	}
}

func TestContext_Sleep(t *testing.T) {
	r := jobs.NewRegistry()
	ec := NewContext(r.Create(""), "", nil)

	require.NoError(t, ec.Sleep(context.Background(), time.Millisecond))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = ec.Job.Kill()
	}()

	start := time.Now()
	err := ec.Sleep(context.Background(), 10*time.Second)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec3 := NewContext(r.Create(""), "", nil)
	assert.ErrorIs(t, ec3.Sleep(ctx, 10*time.Second), context.Canceled)
}

func TestFunc(t *testing.T) {
	r := jobs.NewRegistry()
	ec := NewContext(r.Create(""), "item", nil)
	boom := errors.New("boom")

	var s Script = Func(func(_ context.Context, ec *Context) (Output, error) {
		return Value(ec.Input), boom
	})

	out, err := s.Run(context.Background(), ec)
	assert.Equal(t, Output{"item"}, out)
	assert.ErrorIs(t, err, boom)
}
