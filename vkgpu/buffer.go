// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// NewBuffer creates a vk.Buffer of the given size and usage. Size zero
// returns vk.NullBuffer.
func NewBuffer(dev vk.Device, size int, usage vk.BufferUsageFlagBits) (vk.Buffer, error) {
	if size == 0 {
		return vk.NullBuffer, nil
	}
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := NewError("CreateBuffer", ret); err != nil {
		return vk.NullBuffer, err
	}
	return buffer, nil
}

// AllocBufferMemory allocates and binds memory for buffer, with the given
// required property flags (e.g. DeviceLocal, or HostVisible|HostCoherent).
func AllocBufferMemory(dev *Device, buffer vk.Buffer, properties vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev.Device, buffer, &reqs)
	reqs.Deref()

	memType, ok := FindMemoryType(dev.GPU.MemoryProperties, reqs.MemoryTypeBits, properties)
	if !ok {
		return vk.NullDeviceMemory, fmt.Errorf("vkgpu: no memory type satisfies required properties %v", properties)
	}

	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(dev.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &mem)
	if err := NewError("AllocateMemory", ret); err != nil {
		return vk.NullDeviceMemory, err
	}
	if ret := vk.BindBufferMemory(dev.Device, buffer, mem, 0); IsError(ret) {
		vk.FreeMemory(dev.Device, mem, nil)
		return vk.NullDeviceMemory, NewError("BindBufferMemory", ret)
	}
	return mem, nil
}

// FindMemoryType scans props for a memory type whose bit is set in
// typeBits and whose property flags satisfy required.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, required vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(required) == vk.MemoryPropertyFlags(required) {
			return i, true
		}
	}
	return 0, false
}

// MapMemory maps size bytes of mem starting at offset 0.
func MapMemory(dev vk.Device, mem vk.DeviceMemory, size int) (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(dev, mem, 0, vk.DeviceSize(size), 0, &ptr)
	if err := NewError("MapMemory", ret); err != nil {
		return nil, err
	}
	return ptr, nil
}

// FreeMemory frees *mem and zeroes it, ignoring a nil handle.
func FreeMemory(dev vk.Device, mem *vk.DeviceMemory) {
	if *mem == vk.NullDeviceMemory {
		return
	}
	vk.FreeMemory(dev, *mem, nil)
	*mem = vk.NullDeviceMemory
}

// DestroyBuffer destroys *buf and zeroes it, ignoring a nil handle.
func DestroyBuffer(dev vk.Device, buf *vk.Buffer) {
	if *buf == vk.NullBuffer {
		return
	}
	vk.DestroyBuffer(dev, *buf, nil)
	*buf = vk.NullBuffer
}

// HostBuffer is a mapped, host-visible and host-coherent buffer paired
// with a device-local buffer of the same size, used as one block of a
// staging pool. Grounded on the teacher's MemBuff host/dev pairing, with
// the per-semantic BuffTypes distinction collapsed since the staging
// pool moves raw bytes only, never typed vertex/uniform/storage data.
type HostBuffer struct {
	Size int

	Host    vk.Buffer
	HostMem vk.DeviceMemory
	Ptr     unsafe.Pointer

	Dev    vk.Buffer
	DevMem vk.DeviceMemory
}

// NewHostBuffer allocates a paired host-visible/device-local buffer of
// size bytes, both usable as transfer source and destination, and maps
// the host side for the lifetime of the block.
func NewHostBuffer(dev *Device, size int) (*HostBuffer, error) {
	const usage = vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit

	hb := &HostBuffer{Size: size}

	host, err := NewBuffer(dev.Device, size, usage)
	if err != nil {
		return nil, err
	}
	hb.Host = host
	hb.HostMem, err = AllocBufferMemory(dev, host, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		DestroyBuffer(dev.Device, &hb.Host)
		return nil, err
	}
	hb.Ptr, err = MapMemory(dev.Device, hb.HostMem, size)
	if err != nil {
		hb.Free(dev)
		return nil, err
	}

	dv, err := NewBuffer(dev.Device, size, usage|vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit|vk.BufferUsageStorageBufferBit|vk.BufferUsageUniformBufferBit)
	if err != nil {
		hb.Free(dev)
		return nil, err
	}
	hb.Dev = dv
	hb.DevMem, err = AllocBufferMemory(dev, dv, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		hb.Free(dev)
		return nil, err
	}
	return hb, nil
}

// Free releases every Vulkan object owned by hb.
func (hb *HostBuffer) Free(dev *Device) {
	if hb.HostMem != vk.NullDeviceMemory && hb.Ptr != nil {
		vk.UnmapMemory(dev.Device, hb.HostMem)
		hb.Ptr = nil
	}
	FreeMemory(dev.Device, &hb.HostMem)
	DestroyBuffer(dev.Device, &hb.Host)
	FreeMemory(dev.Device, &hb.DevMem)
	DestroyBuffer(dev.Device, &hb.Dev)
	hb.Size = 0
}
