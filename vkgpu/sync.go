// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// NewTimelineSemaphore creates a Vulkan 1.2 core timeline semaphore with
// the given initial value. goki/vulkan v1.0.8 does not expose the
// VK_KHR_synchronization2 entry points (vkQueueSubmit2), so submission
// and barrier recording in this package use the core-1.2 timeline
// semaphore path (vk.QueueSubmit plus a chained
// vk.TimelineSemaphoreSubmitInfo) and vk.CmdPipelineBarrier rather than
// their sync2 counterparts.
func NewTimelineSemaphore(dev vk.Device, initial uint64) (vk.Semaphore, error) {
	typeInfo := &vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  initial,
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(dev, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(typeInfo),
	}, nil, &sem)
	if err := NewError("CreateSemaphore", ret); err != nil {
		return vk.NullSemaphore, err
	}
	return sem, nil
}

// SemaphoreCounterValue returns the current value signaled on sem.
func SemaphoreCounterValue(dev vk.Device, sem vk.Semaphore) uint64 {
	var value uint64
	vk.GetSemaphoreCounterValue(dev, sem, &value)
	return value
}

// WaitSemaphoreValue blocks until sem reaches at least value, or
// timeoutNanos elapses. Returns vk.Timeout on expiry.
func WaitSemaphoreValue(dev vk.Device, sem vk.Semaphore, value uint64, timeoutNanos uint64) vk.Result {
	values := []uint64{value}
	return vk.WaitSemaphores(dev, &vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{sem},
		PValues:        values,
	}, timeoutNanos)
}

// SubmitTimeline submits cmdBufs on queue, waiting on the timeline
// semaphore sem at waitValue (if waitValue > 0) and signaling sem at
// signalValue, using the core-1.2 timeline submit-info chain described
// on [NewTimelineSemaphore]. An empty cmdBufs slice is a valid "signal
// only" submission.
func SubmitTimeline(queue vk.Queue, sem vk.Semaphore, waitValue, signalValue uint64, cmdBufs []vk.CommandBuffer) error {
	waitValues := []uint64{}
	waitSems := []vk.Semaphore{}
	waitStages := []vk.PipelineStageFlags{}
	if waitValue > 0 {
		waitValues = []uint64{waitValue}
		waitSems = []vk.Semaphore{sem}
		waitStages = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)}
	}
	signalValues := []uint64{signalValue}
	signalSems := []vk.Semaphore{sem}

	timelineInfo := &vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount:   uint32(len(waitValues)),
		PWaitSemaphoreValues:      waitValues,
		SignalSemaphoreValueCount: uint32(len(signalValues)),
		PSignalSemaphoreValues:    signalValues,
	}

	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(timelineInfo),
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(cmdBufs)),
		PCommandBuffers:      cmdBufs,
		SignalSemaphoreCount: uint32(len(signalSems)),
		PSignalSemaphores:    signalSems,
	}

	ret := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, vk.NullFence)
	return NewError("QueueSubmit", ret)
}

// NewCommandPool creates a reset-friendly command pool for queueFamily.
func NewCommandPool(dev vk.Device, queueFamily uint32) (vk.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dev, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}, nil, &pool)
	if err := NewError("CreateCommandPool", ret); err != nil {
		return vk.NullCommandPool, err
	}
	return pool, nil
}

// AllocCommandBuffers allocates count primary command buffers from pool.
func AllocCommandBuffers(dev vk.Device, pool vk.CommandPool, count int) ([]vk.CommandBuffer, error) {
	bufs := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, bufs)
	if err := NewError("AllocateCommandBuffers", ret); err != nil {
		return nil, err
	}
	return bufs, nil
}

// BeginOneTimeSubmit begins cmd for a single recording/submission cycle.
func BeginOneTimeSubmit(cmd vk.CommandBuffer) error {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return NewError("BeginCommandBuffer", ret)
}

// EndCommandBuffer ends recording on cmd.
func EndCommandBuffer(cmd vk.CommandBuffer) error {
	return NewError("EndCommandBuffer", vk.EndCommandBuffer(cmd))
}
