// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/base/logx"
	"github.com/coregpu/emureno/vkgpu"
)

// CreateMesh allocates device-local vertex and index buffers, uploads
// desc's data into them, and registers the result as a global mesh.
// The mesh is not safe to draw from until the returned ID's creation
// has completed on the timeline value Flush later returns.
func (e *Engine) CreateMesh(desc MeshDescription) (ID, error) {
	vertexBuf, err := vkgpu.NewBuffer(e.dev.Device, len(desc.VertexData),
		vk.BufferUsageTransferDstBit|vk.BufferUsageVertexBufferBit)
	if err != nil {
		return ID{}, err
	}
	vertexMem, err := vkgpu.AllocBufferMemory(e.dev, vertexBuf, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vkgpu.DestroyBuffer(e.dev.Device, &vertexBuf)
		return ID{}, err
	}

	var indexBuf vk.Buffer
	var indexMem vk.DeviceMemory
	if len(desc.IndexData) > 0 {
		indexBuf, err = vkgpu.NewBuffer(e.dev.Device, len(desc.IndexData),
			vk.BufferUsageTransferDstBit|vk.BufferUsageIndexBufferBit)
		if err != nil {
			vkgpu.DestroyBuffer(e.dev.Device, &vertexBuf)
			vkgpu.FreeMemory(e.dev.Device, &vertexMem)
			return ID{}, err
		}
		indexMem, err = vkgpu.AllocBufferMemory(e.dev, indexBuf, vk.MemoryPropertyDeviceLocalBit)
		if err != nil {
			vkgpu.DestroyBuffer(e.dev.Device, &vertexBuf)
			vkgpu.FreeMemory(e.dev.Device, &vertexMem)
			vkgpu.DestroyBuffer(e.dev.Device, &indexBuf)
			return ID{}, err
		}
	}

	vertexAlloc, err := e.stagingPool.Allocate(len(desc.VertexData), 1)
	if err != nil {
		return ID{}, err
	}
	copy(unsafeBytes(vertexAlloc.Ptr, len(desc.VertexData)), desc.VertexData)

	var indexAlloc *StagingAllocation
	if len(desc.IndexData) > 0 {
		indexAlloc, err = e.stagingPool.Allocate(len(desc.IndexData), 1)
		if err != nil {
			e.stagingPool.Free(vertexAlloc)
			return ID{}, err
		}
		copy(unsafeBytes(indexAlloc.Ptr, len(desc.IndexData)), desc.IndexData)
	}

	id := NewID()
	if _, err := e.enqueue(taskEnvelope{
		kind: taskCreateMesh,
		createMesh: &createMesh{
			id:          id,
			vertexBuf:   vertexBuf,
			indexBuf:    indexBuf,
			vertexAlloc: vertexAlloc,
			indexAlloc:  indexAlloc,
		},
	}); err != nil {
		e.stagingPool.Free(vertexAlloc)
		if indexAlloc != nil {
			e.stagingPool.Free(indexAlloc)
		}
		return ID{}, err
	}

	e.globals.RegisterMesh(id, func() {
		vkgpu.DestroyBuffer(e.dev.Device, &vertexBuf)
		vkgpu.FreeMemory(e.dev.Device, &vertexMem)
		if indexBuf != vk.NullBuffer {
			vkgpu.DestroyBuffer(e.dev.Device, &indexBuf)
			vkgpu.FreeMemory(e.dev.Device, &indexMem)
		}
	})
	return id, nil
}

func (e *Engine) dispatchCreateMesh(t *createMesh) {
	cmd, err := e.record.getOrBeginPreCmd()
	if err != nil {
		logx.PrintlnError("emulator: recording mesh creation:", err)
		return
	}

	if b := MeshTransitionBarrier(t.vertexBuf, MeshUninitialized, MeshTransferWrite); b != nil {
		cmdPipelineBarrierBuffer(cmd, b)
	}
	vertexHost := e.stagingPool.DeviceBuffer(t.vertexAlloc)
	vk.CmdCopyBuffer(cmd, vertexHost.Host, t.vertexBuf, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(t.vertexAlloc.Offset),
		Size:      vk.DeviceSize(t.vertexAlloc.Size),
	}})
	if b := MeshTransitionBarrier(t.vertexBuf, MeshTransferWrite, MeshReady); b != nil {
		cmdPipelineBarrierBuffer(cmd, b)
	}
	e.record.usedStaging = append(e.record.usedStaging, t.vertexAlloc)

	if t.indexAlloc != nil {
		if b := MeshTransitionBarrier(t.indexBuf, MeshUninitialized, MeshTransferWrite); b != nil {
			cmdPipelineBarrierBuffer(cmd, b)
		}
		indexHost := e.stagingPool.DeviceBuffer(t.indexAlloc)
		vk.CmdCopyBuffer(cmd, indexHost.Host, t.indexBuf, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(t.indexAlloc.Offset),
			Size:      vk.DeviceSize(t.indexAlloc.Size),
		}})
		if b := MeshTransitionBarrier(t.indexBuf, MeshTransferWrite, MeshReady); b != nil {
			cmdPipelineBarrierBuffer(cmd, b)
		}
		e.record.usedStaging = append(e.record.usedStaging, t.indexAlloc)
	}

	e.globals.TouchMesh(t.id, e.record.signalValue)
}

// CreateImage allocates a device-local image, uploads desc's base mip
// level, generates any further mip levels via blits, and registers the
// result as a global image.
func (e *Engine) CreateImage(desc ImageDescription) (ID, error) {
	mipLevels := desc.MipLevels
	if mipLevels < 1 {
		mipLevels = 1
	}
	const usage = vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit
	img, err := vkgpu.NewImage(e.dev, desc.Format, desc.Width, desc.Height, uint32(mipLevels), usage, vk.ImageAspectColorBit)
	if err != nil {
		return ID{}, err
	}

	alloc, err := e.stagingPool.Allocate(len(desc.Data), 1)
	if err != nil {
		img.Destroy(e.dev)
		return ID{}, err
	}
	copy(unsafeBytes(alloc.Ptr, len(desc.Data)), desc.Data)

	id := NewID()
	if _, err := e.enqueue(taskEnvelope{
		kind: taskCreateImage,
		createImage: &createImage{
			id:        id,
			image:     img,
			alloc:     alloc,
			mipLevels: mipLevels,
		},
	}); err != nil {
		e.stagingPool.Free(alloc)
		img.Destroy(e.dev)
		return ID{}, err
	}

	e.globals.RegisterImage(id, func() { img.Destroy(e.dev) })
	return id, nil
}

func (e *Engine) dispatchCreateImage(t *createImage) {
	cmd, err := e.record.getOrBeginPreCmd()
	if err != nil {
		logx.PrintlnError("emulator: recording image creation:", err)
		return
	}
	aspect := vk.ImageAspectFlags(t.image.AspectMask)

	if b := ImageTransitionBarrier(t.image.Image, aspect, ImageUninitialized, ImageTransferWrite); b != nil {
		cmdPipelineBarrierImage(cmd, b)
	}
	hostBuf := e.stagingPool.DeviceBuffer(t.alloc)
	vk.CmdCopyBufferToImage(cmd, hostBuf.Host, t.image.Image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset: vk.DeviceSize(t.alloc.Offset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: t.image.Extent,
	}})
	e.record.usedStaging = append(e.record.usedStaging, t.alloc)

	if t.mipLevels <= 1 {
		if b := ImageTransitionBarrier(t.image.Image, aspect, ImageTransferWrite, ImageReady); b != nil {
			cmdPipelineBarrierImage(cmd, b)
		}
		e.globals.TouchImage(t.id, e.record.signalValue)
		return
	}

	for _, b := range imageMipGenerateBarriers(t.image.Image, aspect, t.mipLevels) {
		cmdPipelineBarrierImage(cmd, b)
	}
	blits := GenerateMipChain(t.image.Image, aspect, t.mipLevels, int(t.image.Extent.Width), int(t.image.Extent.Height))
	for _, blit := range blits {
		if blit.PreBarrier != nil {
			cmdPipelineBarrierImage(cmd, blit.PreBarrier)
		}
		vk.CmdBlitImage(cmd,
			t.image.Image, vk.ImageLayoutTransferSrcOptimal,
			t.image.Image, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{{
				SrcSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: blit.SrcLevel, LayerCount: 1},
				SrcOffsets:     [2]vk.Offset3D{{}, {X: blit.SrcExtent[0], Y: blit.SrcExtent[1], Z: blit.SrcExtent[2]}},
				DstSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: blit.DstLevel, LayerCount: 1},
				DstOffsets:     [2]vk.Offset3D{{}, {X: blit.DstExtent[0], Y: blit.DstExtent[1], Z: blit.DstExtent[2]}},
			}}, vk.FilterLinear)
	}
	for _, b := range imageMipReadyBarriers(t.image.Image, aspect, t.mipLevels) {
		cmdPipelineBarrierImage(cmd, b)
	}
	e.globals.TouchImage(t.id, e.record.signalValue)
}

// MarkDestroyMesh schedules a global mesh for destruction once every
// outstanding reference has been released and the GPU is done with it.
func (e *Engine) MarkDestroyMesh(id ID) { e.globals.MarkDestroyMesh(id) }

// MarkDestroyImage schedules a global image for destruction, as
// [Engine.MarkDestroyMesh].
func (e *Engine) MarkDestroyImage(id ID) { e.globals.MarkDestroyImage(id) }
