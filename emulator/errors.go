// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import "errors"

// Recoverable errors returned from the public API. Programmer-error and
// lost-device conditions are never represented this way — they panic,
// and the worker goroutine logs and exits the process instead of trying
// to continue with Vulkan state it can no longer trust.
var (
	// ErrTimeout is returned when a timeline wait exceeds its deadline
	// without the requested value becoming signaled. The requested work
	// is still in flight; no state is rolled back.
	ErrTimeout = errors.New("emulator: timed out waiting for timeline value")

	// ErrOutOfMemory names an out-of-memory condition. No function in
	// this package returns it: failed staging or device allocations are
	// returned as the underlying vkgpu error, unwrapped.
	ErrOutOfMemory = errors.New("emulator: out of memory")

	// ErrMarkedForDestroy is returned by operations that would resurrect
	// a global mesh or image already scheduled for destruction.
	ErrMarkedForDestroy = errors.New("emulator: object already marked for destruction")

	// ErrUnknownID is returned when a mesh or image ID has no matching
	// entry in the global-objects tables.
	ErrUnknownID = errors.New("emulator: unknown object id")

	// ErrShutdown is returned by operations attempted after ShutdownWait
	// has been called; callers should treat it as a silent no-op signal
	// rather than a failure worth surfacing to a user.
	ErrShutdown = errors.New("emulator: engine already shut down")
)
