// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"

	vk "github.com/goki/vulkan"
)

// Device holds a logical device and the single queue the emulator
// submits all work to. Only one queue family is used — spec.md's worker
// never needs separate graphics/transfer/compute submission queues.
type Device struct {
	GPU *GPU

	// Device is the logical device.
	Device vk.Device

	// QueueFamily is the index of the selected queue family.
	QueueFamily uint32

	// Queue is the single queue used for all submissions.
	Queue vk.Queue
}

// NewDevice finds a queue family supporting flags on gp and creates a
// logical device and queue from it.
func NewDevice(gp *GPU, flags vk.QueueFlagBits) (*Device, error) {
	dv := &Device{GPU: gp}
	if err := dv.findQueueFamily(flags); err != nil {
		return nil, err
	}
	if err := dv.create(); err != nil {
		return nil, err
	}
	return dv, nil
}

func (dv *Device) findQueueFamily(flags vk.QueueFlagBits) error {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dv.GPU.PhysicalDevice, &count, nil)
	if count == 0 {
		return errors.New("vkgpu: no queue families on physical device")
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dv.GPU.PhysicalDevice, &count, props)

	required := vk.QueueFlags(flags)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueFlags&required == required {
			dv.QueueFamily = i
			return nil
		}
	}
	return errors.New("vkgpu: no queue family supports the requested flags")
}

func (dv *Device) create() error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dv.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	feats := vk.PhysicalDeviceFeatures{}

	var device vk.Device
	ret := vk.CreateDevice(dv.GPU.PhysicalDevice, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
		EnabledLayerCount:    uint32(len(dv.GPU.ValidationLayers)),
		PpEnabledLayerNames:  dv.GPU.ValidationLayers,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{feats},
	}, nil, &device)
	if err := NewError("CreateDevice", ret); err != nil {
		return err
	}
	dv.Device = device
	vk.InitDevice(device)

	var queue vk.Queue
	vk.GetDeviceQueue(dv.Device, dv.QueueFamily, 0, &queue)
	dv.Queue = queue
	return nil
}

// WaitIdle blocks until every submission on Queue has completed.
func (dv *Device) WaitIdle() {
	vk.DeviceWaitIdle(dv.Device)
}

// Destroy waits for idle and destroys the logical device.
func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}

// NewHeadlessDevice creates a GPU instance named appName and a logical
// device with a graphics-and-transfer-capable queue, with no surface or
// swapchain extensions — the concrete Device context collaborator from
// spec.md's external-interfaces section.
func NewHeadlessDevice(appName string) (*GPU, *Device, error) {
	gp, err := NewGPU(appName)
	if err != nil {
		return nil, nil, err
	}
	dev, err := NewDevice(gp, vk.QueueGraphicsBit|vk.QueueTransferBit)
	if err != nil {
		gp.Release()
		return nil, nil, err
	}
	return gp, dev, nil
}
