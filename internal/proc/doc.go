// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package proc starts external processes on behalf of a job.
//
// Every process is started in its own process group and registered with its
// job before Start returns. If the job was interrupted between the spawn and
// the registration, the process group is killed and reaped here and
// ErrRegistrationRace is returned.
package proc
