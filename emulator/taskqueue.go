// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"sync/atomic"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/vkgpu"
)

// taskKind identifies the variant of work stored in a taskEnvelope.
type taskKind int

const (
	taskCopyStagingToBuffer taskKind = iota
	taskCopyBufferToStaging
	taskCreateMesh
	taskCreateImage
	taskFlush
	taskShutdown
)

// copyStagingToBuffer moves data already written into a staging
// allocation into a device-local buffer.
type copyStagingToBuffer struct {
	staging     *StagingAllocation
	srcOffset   int
	dst         vk.Buffer
	dstOffset   int
	size        int
}

// copyBufferToStaging moves data from a device-local buffer into a
// staging allocation the caller will read back from host memory. The
// caller learns of completion by waiting on the timeline value the
// enclosing taskEnvelope was stamped with, via ReadToken.Await.
type copyBufferToStaging struct {
	src       vk.Buffer
	srcOffset int
	staging   *StagingAllocation
	dstOffset int
	size      int
}

// createMesh uploads a freshly allocated mesh's vertex and index data.
// The mesh is registered with the global-objects manager by
// Engine.CreateMesh when the task is enqueued, not by the task itself.
type createMesh struct {
	id          ID
	vertexBuf   vk.Buffer
	indexBuf    vk.Buffer
	vertexAlloc *StagingAllocation
	indexAlloc  *StagingAllocation // nil if IndexData is empty
}

// createImage uploads a freshly allocated image's base mip level and, if
// it has more than one mip level, generates the remaining levels via
// blits. The image is registered by Engine.CreateImage when the task is
// enqueued.
type createImage struct {
	id        ID
	image     *vkgpu.Image
	alloc     *StagingAllocation
	mipLevels int
}

// taskEnvelope is one unit of work handed to the worker, stamped with
// the timeline value the caller will wait on for it to complete.
type taskEnvelope struct {
	kind  taskKind
	value uint64

	copyToBuffer  *copyStagingToBuffer
	copyToStaging *copyBufferToStaging
	createMesh    *createMesh
	createImage   *createImage
}

// TaskQueue is the bounded, thread-safe channel of work handed from
// client goroutines to the single worker goroutine. Engine.enqueue
// stamps the timeline value synchronously in the caller's goroutine and
// pushes the task under one lock, before the task becomes visible to the
// worker, so every caller is guaranteed a value that orders correctly
// relative to concurrent enqueues.
type TaskQueue struct {
	ch     chan taskEnvelope
	closed atomic.Bool
}

// NewTaskQueue creates a queue with the given channel capacity.
func NewTaskQueue(capacity int) *TaskQueue {
	return &TaskQueue{ch: make(chan taskEnvelope, capacity)}
}

// push enqueues env, returning false if the queue has been closed.
func (q *TaskQueue) push(env taskEnvelope) bool {
	if q.closed.Load() {
		return false
	}
	q.ch <- env
	return true
}

// Pop waits up to timeout for a task, returning (task, true) if one
// arrived or (zero, false) on timeout. The worker calls this in a tight
// loop so it can interleave periodic bookkeeping with dispatch.
func (q *TaskQueue) Pop(timeout time.Duration) (taskEnvelope, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case env := <-q.ch:
		return env, true
	case <-timer.C:
		return taskEnvelope{}, false
	}
}

// Close marks the queue closed; subsequent pushes fail. Does not drain
// or close the underlying channel, since a shutdown task is always
// pushed immediately before Close and must still be observed by Pop.
func (q *TaskQueue) Close() {
	q.closed.Store(true)
}
