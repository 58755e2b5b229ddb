// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package script defines the per-job execution context and the Script
// boundary that the dispatcher runs once per work item.
//
// A Script observes cancellation cooperatively through Context.IsInterrupted
// and Context.Done, and spawns OS processes through Context.Start or
// Context.Run so that they are tracked by, and killed with, the owning job.
package script
