// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads run settings from a YAML file.
//
// Example:
//
//	parallelism: 4
//	grace_period: 5s
//	job_timeout: 1m
//	shell: /bin/bash
//	metrics_address: 127.0.0.1:9464
//	command: 'echo "job $1: $2"'
//	env:
//	  LANG: C
package config
