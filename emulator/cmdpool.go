// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/vkgpu"
)

// cmdBatchSize is the number of command buffers allocated at once when
// a pool runs out of free ones.
const cmdBatchSize = 8

// CmdBufferPool hands out and reclaims primary command buffers from a
// single Vulkan command pool. It is owned exclusively by the worker
// goroutine — never call Acquire or ReleaseMany from a client goroutine.
type CmdBufferPool struct {
	dev  *vkgpu.Device
	pool vk.CommandPool
	free []vk.CommandBuffer
}

// NewCmdBufferPool creates a command pool on dev's queue family.
func NewCmdBufferPool(dev *vkgpu.Device) (*CmdBufferPool, error) {
	pool, err := vkgpu.NewCommandPool(dev.Device, dev.QueueFamily)
	if err != nil {
		return nil, err
	}
	return &CmdBufferPool{dev: dev, pool: pool}, nil
}

// Acquire returns a free command buffer, allocating a fresh batch if the
// free list is empty. The buffer is not begun; the caller begins it
// before recording.
func (cp *CmdBufferPool) Acquire() (vk.CommandBuffer, error) {
	if len(cp.free) == 0 {
		bufs, err := vkgpu.AllocCommandBuffers(cp.dev.Device, cp.pool, cmdBatchSize)
		if err != nil {
			return nil, err
		}
		cp.free = append(cp.free, bufs...)
	}
	n := len(cp.free)
	buf := cp.free[n-1]
	cp.free = cp.free[:n-1]
	return buf, nil
}

// ReleaseMany resets each buffer in bufs and returns it to the free
// list. Called once a submission artifact referencing them has been
// confirmed complete by the timeline.
func (cp *CmdBufferPool) ReleaseMany(bufs []vk.CommandBuffer) {
	for _, b := range bufs {
		vk.ResetCommandBuffer(b, vk.CommandBufferResetFlags(0))
	}
	cp.free = append(cp.free, bufs...)
}

// Destroy destroys the underlying command pool (and, with it, every
// command buffer ever allocated from it).
func (cp *CmdBufferPool) Destroy() {
	if cp.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(cp.dev.Device, cp.pool, nil)
		cp.pool = vk.NullCommandPool
	}
}
