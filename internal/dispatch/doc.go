// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package dispatch runs a script once per work item, each in its own job,
// and stops cleanly when input ends or the global interrupt fires.
package dispatch
