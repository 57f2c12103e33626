// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	vk "github.com/goki/vulkan"
)

// Image wraps a device-local vk.Image, its backing memory, and a
// full-range view, used by the global-objects manager for persistent
// color images and for global images (meshes' textures).
type Image struct {
	Extent     vk.Extent3D
	Format     vk.Format
	MipLevels  uint32
	AspectMask vk.ImageAspectFlagBits

	Image vk.Image
	Mem   vk.DeviceMemory
	View  vk.ImageView
}

// NewImage creates a 2D image with mipLevels mip levels, device-local
// memory, and a full-range view covering every mip level.
func NewImage(dev *Device, format vk.Format, w, h uint32, mipLevels uint32, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*Image, error) {
	im := &Image{
		Extent:     vk.Extent3D{Width: w, Height: h, Depth: 1},
		Format:     format,
		MipLevels:  mipLevels,
		AspectMask: aspect,
	}

	var img vk.Image
	ret := vk.CreateImage(dev.Device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent:    im.Extent,
		MipLevels: mipLevels,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := NewError("CreateImage", ret); err != nil {
		return nil, err
	}
	im.Image = img

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev.Device, img, &reqs)
	reqs.Deref()
	memType, ok := FindMemoryType(dev.GPU.MemoryProperties, reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(dev.Device, img, nil)
		return nil, NewError("GetImageMemoryRequirements", vk.ErrorOutOfDeviceMemory)
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(dev.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &mem)
	if err := NewError("AllocateMemory", ret); err != nil {
		vk.DestroyImage(dev.Device, img, nil)
		return nil, err
	}
	im.Mem = mem
	if ret := vk.BindImageMemory(dev.Device, img, mem, 0); IsError(ret) {
		im.Destroy(dev)
		return nil, NewError("BindImageMemory", ret)
	}

	var view vk.ImageView
	ret = vk.CreateImageView(dev.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}, nil, &view)
	if err := NewError("CreateImageView", ret); err != nil {
		im.Destroy(dev)
		return nil, err
	}
	im.View = view

	return im, nil
}

// Destroy releases every Vulkan object owned by im.
func (im *Image) Destroy(dev *Device) {
	if im.View != vk.NullImageView {
		vk.DestroyImageView(dev.Device, im.View, nil)
		im.View = vk.NullImageView
	}
	if im.Image != vk.NullImage {
		vk.DestroyImage(dev.Device, im.Image, nil)
		im.Image = vk.NullImage
	}
	FreeMemory(dev.Device, &im.Mem)
}

// Sampler wraps a vk.Sampler configured for linear filtering with
// repeat addressing, the common case for the images this renderer
// creates from emulator-side mesh textures.
type Sampler struct {
	VkSampler vk.Sampler
}

// NewSampler creates a linear-filtering, repeat-addressing sampler.
func NewSampler(dev *Device) (*Sampler, error) {
	var samp vk.Sampler
	ret := vk.CreateSampler(dev.Device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}, nil, &samp)
	if err := NewError("CreateSampler", ret); err != nil {
		return nil, err
	}
	return &Sampler{VkSampler: samp}, nil
}

// Destroy destroys the sampler.
func (sm *Sampler) Destroy(dev *Device) {
	if sm.VkSampler != vk.NullSampler {
		vk.DestroySampler(dev.Device, sm.VkSampler, nil)
		sm.VkSampler = vk.NullSampler
	}
}
