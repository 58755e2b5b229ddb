// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate carries the process-wide job registry and signal
// coordinator from main to the subcommands through the context.
package cmdstate

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/fanout/internal/jobs"
	"github.com/matt-FFFFFF/fanout/internal/signalbroker"
)

// ErrNoState is returned by From when the context carries no state. Jobs
// created without one would be invisible to the signal watcher.
var ErrNoState = errors.New("no command state in context")

type stateKey struct{}

// State is shared by every subcommand of one process.
type State struct {
	Registry    *jobs.Registry
	Coordinator *signalbroker.Coordinator
}

// New returns a state with a fresh registry and an armed coordinator.
func New() *State {
	r := jobs.NewRegistry()

	return &State{
		Registry:    r,
		Coordinator: signalbroker.NewCoordinator(r),
	}
}

// With stores s in ctx.
func With(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// From returns the state stored in ctx.
func From(ctx context.Context) (*State, error) {
	if s, ok := ctx.Value(stateKey{}).(*State); ok && s != nil {
		return s, nil
	}

	return nil, ErrNoState
}
