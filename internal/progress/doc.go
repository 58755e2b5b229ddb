// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries job lifecycle events from the dispatcher's workers
// to a single listener, such as the console printer.
package progress
