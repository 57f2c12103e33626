// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emulator implements an asynchronous, GPU-backed render command
// submission engine sitting on top of an explicit, Vulkan-style graphics
// API: explicit queues, a single GPU timeline semaphore, command buffers,
// image layouts, and pipeline barriers over suballocated device memory.
//
// Callers submit work from any goroutine; one worker goroutine owns the
// command-buffer recording, barrier synthesis, and submission to the
// GPU queue, handing back a monotonically increasing timeline value for
// every unit of work so callers can wait for exactly the work they care
// about without blocking the worker.
package emulator
