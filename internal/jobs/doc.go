// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package jobs tracks concurrently running jobs and the OS processes each of them owns.
//
// A Job is interrupted at most once. Interruption and process registration are
// serialised by the job's own mutex: TryAddPid takes the lock and only then
// checks the interrupted flag, and Kill sets the flag before signalling the
// tracked processes under that same lock. A process is therefore either
// registered and later killed by Kill, or refused, in which case the caller
// that spawned it must kill it.
//
// The Registry maps job IDs to jobs behind a single mutex. The registry lock is
// never held while a job lock is taken.
package jobs
