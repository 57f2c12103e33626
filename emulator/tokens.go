// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// ReadToken represents a pending host-visible readback of a persistent
// buffer's contents. The copy has already been enqueued by the time a
// ReadToken is returned; Await blocks until the GPU has completed it and
// the destination slice has been filled, then releases the staging
// allocation used to stage the copy.
//
// Go has no deterministic destructors, so a ReadToken that is never
// awaited or explicitly closed still gets reclaimed eventually via a
// finalizer — the idiomatic approximation of "never silently discards
// pending work" — but callers should still call Await or Close
// explicitly rather than relying on it.
type ReadToken struct {
	engine  *Engine
	value   uint64
	staging *StagingAllocation
	dst     []byte

	once sync.Once
	err  error
}

func newReadToken(e *Engine, value uint64, staging *StagingAllocation, dst []byte) *ReadToken {
	t := &ReadToken{engine: e, value: value, staging: staging, dst: dst}
	runtime.SetFinalizer(t, func(t *ReadToken) { _ = t.Await(context.Background()) })
	return t
}

// Await requests a flush, blocks until the timeline reaches the token's
// value, copies the
// staged bytes into the caller's destination slice, frees the staging
// allocation, and returns any error encountered. It is safe to call
// more than once; only the first call does any work.
func (t *ReadToken) Await(ctx context.Context) error {
	t.once.Do(func() {
		t.err = t.awaitOnce(ctx)
	})
	return t.err
}

func (t *ReadToken) awaitOnce(ctx context.Context) error {
	runtime.SetFinalizer(t, nil)

	// Request a flush so the set holding this read is submitted and its
	// value gets signaled. After shutdown the enqueue fails harmlessly,
	// since shutdown already flushed everything.
	_, _ = t.engine.Flush()

	done := make(chan error, 1)
	go func() {
		done <- t.engine.timeline.Wait(t.value, 0)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	copy(t.dst, unsafeBytes(t.staging.Ptr, len(t.dst)))
	t.engine.stagingPool.Free(t.staging)
	return nil
}

// Close is an alias for calling Await with a background context and
// discarding the destination copy's error, for callers that only want
// to release staging memory without waiting to inspect the data.
func (t *ReadToken) Close() {
	_ = t.Await(context.Background())
}

// AwaitTimeout is a convenience wrapper around Await using a plain
// timeout instead of a context.
func (t *ReadToken) AwaitTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.Await(ctx)
}
