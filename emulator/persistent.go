// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/vkgpu"
)

// PersistentBuffer is a device-local buffer whose lifetime is owned by
// the caller, outside of the refcounted global-object tables — its GPU
// resources are released only by an explicit call to Destroy; neither
// dropping it nor Engine.ShutdownWait releases them. It exists so repeated CmdWriteBuffer/CmdReadBuffer calls have a
// stable device-local target to record copies against.
type PersistentBuffer struct {
	engine *Engine
	Buffer vk.Buffer
	Mem    vk.DeviceMemory
	Size   uint64
}

// PersistentImage is the image analogue of PersistentBuffer, always
// created with a single mip level and TransferDst|TransferSrc|Sampled
// usage, ready
// to receive writes and be sampled once transitioned to Ready.
type PersistentImage struct {
	engine *Engine
	Image  *vkgpu.Image
}

const persistentBufferUsage = vk.BufferUsageTransferSrcBit |
	vk.BufferUsageTransferDstBit |
	vk.BufferUsageStorageBufferBit |
	vk.BufferUsageUniformBufferBit |
	vk.BufferUsageVertexBufferBit |
	vk.BufferUsageIndexBufferBit

func newPersistentBuffer(e *Engine, size uint64) (*PersistentBuffer, error) {
	buf, err := vkgpu.NewBuffer(e.dev.Device, int(size), persistentBufferUsage)
	if err != nil {
		return nil, err
	}
	mem, err := vkgpu.AllocBufferMemory(e.dev, buf, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vkgpu.DestroyBuffer(e.dev.Device, &buf)
		return nil, err
	}
	return &PersistentBuffer{engine: e, Buffer: buf, Mem: mem, Size: size}, nil
}

// Destroy releases the buffer's GPU resources. The caller must ensure
// no outstanding write or read references it (e.g. by calling
// Engine.Flush and waiting on the returned value first).
func (pb *PersistentBuffer) Destroy() {
	vkgpu.DestroyBuffer(pb.engine.dev.Device, &pb.Buffer)
	vkgpu.FreeMemory(pb.engine.dev.Device, &pb.Mem)
}

func newPersistentImage(e *Engine, format vk.Format, size ImageSize) (*PersistentImage, error) {
	const usage = vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit
	img, err := vkgpu.NewImage(e.dev, format, size.Width, size.Height, 1, usage, vk.ImageAspectColorBit)
	if err != nil {
		return nil, err
	}
	return &PersistentImage{engine: e, Image: img}, nil
}

// Destroy releases the image's GPU resources.
func (pi *PersistentImage) Destroy() {
	pi.Image.Destroy(pi.engine.dev)
}
