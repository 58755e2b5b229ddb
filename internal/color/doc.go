// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color wraps strings in ANSI escape codes for the log handler.
// Color is disabled when NO_COLOR is set, forced when FORCE_COLOR is set,
// and otherwise enabled only when stderr is a terminal.
package color
