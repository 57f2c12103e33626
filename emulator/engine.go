// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/base/logx"
	"github.com/coregpu/emureno/vkgpu"
)

// Engine is the client-facing render command submission engine: the
// top-level type wiring together the timeline, staging pool,
// command-buffer pool, resource-state tracker, global-objects manager,
// task queue, record state machine, and the single worker goroutine
// that owns all of them.
type Engine struct {
	dev *vkgpu.Device
	cfg config

	timeline    *Timeline
	stagingPool *StagingPool
	cmdPool     *CmdBufferPool
	globals     *GlobalObjects
	queue       *TaskQueue

	record   *recordState
	pending  pendingArtifacts
	pendingMu sync.Mutex

	// enqueueMu serializes stamping and pushing so queue order matches
	// timeline value order.
	enqueueMu sync.Mutex

	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates an Engine backed by dev, starting its worker goroutine
// immediately.
func New(dev *vkgpu.Device, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	timeline, err := NewTimeline(dev)
	if err != nil {
		return nil, fmt.Errorf("emulator: creating timeline: %w", err)
	}
	cmdPool, err := NewCmdBufferPool(dev)
	if err != nil {
		timeline.Destroy()
		return nil, fmt.Errorf("emulator: creating command pool: %w", err)
	}

	e := &Engine{
		dev:         dev,
		cfg:         cfg,
		timeline:    timeline,
		stagingPool: NewStagingPool(dev, cfg.stagingBlockSize),
		cmdPool:     cmdPool,
		globals:     NewGlobalObjects(),
		queue:       NewTaskQueue(cfg.taskQueueCapacity),
		done:        make(chan struct{}),
	}
	e.record = newRecordState(dev, cmdPool, timeline)

	go e.run()
	return e, nil
}

// run is the worker loop: pop a task with a bounded timeout, dispatch
// it if one arrived, reclaim anything the timeline has caught up to,
// and periodically tick the global-objects manager — grounded on the
// teacher's own poll/dispatch/reclaim/tick worker structure.
func (e *Engine) run() {
	defer close(e.done)
	defer e.recoverPanic()

	lastTick := time.Now()
	for {
		env, ok := e.queue.Pop(e.cfg.popTimeout)
		if ok {
			e.dispatch(env)
		}
		e.reclaimPending()

		if time.Since(lastTick) >= e.cfg.tickInterval {
			e.globals.Tick(e.timeline.CurrentSignaled())
			lastTick = time.Now()
		}

		if ok && env.kind == taskShutdown {
			e.drainShutdown()
			return
		}
	}
}

func (e *Engine) recoverPanic() {
	if r := recover(); r != nil {
		logx.PrintlnError("emulator: worker panicked, GPU state can no longer be trusted", r)
		panic(r)
	}
}

func (e *Engine) dispatch(env taskEnvelope) {
	if env.value > e.record.signalValue {
		e.record.signalValue = env.value
	}

	switch env.kind {
	case taskCopyStagingToBuffer:
		e.dispatchCopyStagingToBuffer(env.copyToBuffer)
	case taskCopyBufferToStaging:
		e.dispatchCopyBufferToStaging(env.copyToStaging)
	case taskCreateMesh:
		e.dispatchCreateMesh(env.createMesh)
	case taskCreateImage:
		e.dispatchCreateImage(env.createImage)
	case taskFlush:
		e.flushSet()
	case taskShutdown:
		e.flushSet()
	}
}

func (e *Engine) dispatchCopyStagingToBuffer(t *copyStagingToBuffer) {
	cmd, err := e.record.syncBufferPre(e, t.dst, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	if err != nil {
		logx.PrintlnError("emulator: recording staging->buffer copy:", err)
		return
	}
	hostBuf := e.stagingPool.DeviceBuffer(t.staging)
	vk.CmdCopyBuffer(cmd, hostBuf.Host, t.dst, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(t.staging.Offset + t.srcOffset),
		DstOffset: vk.DeviceSize(t.dstOffset),
		Size:      vk.DeviceSize(t.size),
	}})
	e.record.usedStaging = append(e.record.usedStaging, t.staging)
}

func (e *Engine) dispatchCopyBufferToStaging(t *copyBufferToStaging) {
	cmd, err := e.record.syncBufferDraw(t.src, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit))
	if err != nil {
		logx.PrintlnError("emulator: recording buffer->staging copy:", err)
		return
	}
	hostBuf := e.stagingPool.DeviceBuffer(t.staging)
	vk.CmdCopyBuffer(cmd, t.src, hostBuf.Host, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(t.srcOffset),
		DstOffset: vk.DeviceSize(t.staging.Offset + t.dstOffset),
		Size:      vk.DeviceSize(t.size),
	}})
	e.record.usedStaging = append(e.record.usedStaging, t.staging)
}

// flushSet ends and submits whatever command set is currently open,
// even if empty, so its signal value becomes reachable.
func (e *Engine) flushSet() {
	artifact, err := e.record.endCmdSet(e)
	if err != nil {
		logx.PrintlnError("emulator: submitting command set:", err)
		return
	}
	e.pendingMu.Lock()
	e.pending.push(artifact)
	e.pendingMu.Unlock()
}

func (e *Engine) reclaimPending() {
	signaled := e.timeline.CurrentSignaled()
	e.pendingMu.Lock()
	ready := e.pending.reclaimReady(signaled)
	e.pendingMu.Unlock()

	for _, a := range ready {
		e.cmdPool.ReleaseMany(a.usedCommandBufs)
		for _, s := range a.usedStaging {
			e.stagingPool.Free(s)
		}
	}
}

func (e *Engine) drainShutdown() {
	// Block until every outstanding submission has been reclaimed, then
	// tear down GPU objects in dependency order: command pool, staging
	// pool, timeline.
	for {
		e.pendingMu.Lock()
		remaining := len(e.pending.items)
		e.pendingMu.Unlock()
		if remaining == 0 {
			break
		}
		e.reclaimPending()
		time.Sleep(time.Millisecond)
	}
	e.globals.Tick(e.timeline.CurrentSignaled())
	e.cmdPool.Destroy()
	e.stagingPool.Destroy()
	e.timeline.Destroy()
}

// enqueue stamps a fresh timeline value on env and hands it to the
// worker, returning the stamped value.
func (e *Engine) enqueue(env taskEnvelope) (uint64, error) {
	e.enqueueMu.Lock()
	defer e.enqueueMu.Unlock()
	value := e.timeline.Next()
	env.value = value
	if !e.queue.push(env) {
		return 0, ErrShutdown
	}
	return value, nil
}

// CmdWriteBuffer stages data and enqueues a copy into buf at offset,
// returning the timeline value the write will be complete at.
func (e *Engine) CmdWriteBuffer(buf *PersistentBuffer, offset uint64, data []byte) (uint64, error) {
	alloc, err := e.stagingPool.Allocate(len(data), 1)
	if err != nil {
		return 0, err
	}
	copy(unsafeBytes(alloc.Ptr, len(data)), data)

	return e.enqueue(taskEnvelope{
		kind: taskCopyStagingToBuffer,
		copyToBuffer: &copyStagingToBuffer{
			staging:   alloc,
			dst:       buf.Buffer,
			dstOffset: int(offset),
			size:      len(data),
		},
	})
}

// CmdReadBuffer stages a readback of len(dst) bytes from buf at offset
// into dst, returning a ReadToken the caller must Await to observe the data.
func (e *Engine) CmdReadBuffer(buf *PersistentBuffer, offset uint64, dst []byte) (*ReadToken, error) {
	alloc, err := e.stagingPool.Allocate(len(dst), 1)
	if err != nil {
		return nil, err
	}
	value, err := e.enqueue(taskEnvelope{
		kind: taskCopyBufferToStaging,
		copyToStaging: &copyBufferToStaging{
			src:       buf.Buffer,
			srcOffset: int(offset),
			staging:   alloc,
			size:      len(dst),
		},
	})
	if err != nil {
		e.stagingPool.Free(alloc)
		return nil, err
	}
	return newReadToken(e, value, alloc, dst), nil
}

// CreatePersistentBuffer allocates a device-local buffer of size bytes
// that CmdWriteBuffer/CmdReadBuffer can target.
func (e *Engine) CreatePersistentBuffer(size uint64) (*PersistentBuffer, error) {
	return newPersistentBuffer(e, size)
}

// CreatePersistentColorImage allocates a device-local, sampleable color
// image of the given format and size.
func (e *Engine) CreatePersistentColorImage(format vk.Format, size ImageSize) (*PersistentImage, error) {
	return newPersistentImage(e, format, size)
}

// Flush enqueues a flush task and returns the timeline value every task
// enqueued before this call is guaranteed to have completed by.
func (e *Engine) Flush() (uint64, error) {
	return e.enqueue(taskEnvelope{kind: taskFlush})
}

// ShutdownWait enqueues a shutdown task and blocks until the worker
// goroutine has drained every pending submission and released every GPU
// object it owns. Calling it more than once panics — that is a
// programmer error, not a recoverable condition.
func (e *Engine) ShutdownWait() {
	first := false
	e.shutdownOnce.Do(func() {
		first = true
		e.queue.push(taskEnvelope{kind: taskShutdown})
		e.queue.Close()
	})
	if !first {
		panic("emulator: ShutdownWait called more than once")
	}
	<-e.done
}
