// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"
	"os"

	vk "github.com/goki/vulkan"
)

// GPU holds the Vulkan instance and a selected physical device, with no
// surface or swapchain extensions enabled — suitable only for headless
// rendering and compute.
type GPU struct {
	// AppName is passed to vk.ApplicationInfo.
	AppName string

	// Instance is the Vulkan instance.
	Instance vk.Instance

	// PhysicalDevice is the selected physical device.
	PhysicalDevice vk.PhysicalDevice

	// Properties are the selected physical device's properties.
	Properties vk.PhysicalDeviceProperties

	// MemoryProperties describes the memory heaps and types available
	// on the selected physical device.
	MemoryProperties vk.PhysicalDeviceMemoryProperties

	// ValidationLayers are the instance/device layers to enable, if any.
	ValidationLayers []string
}

// NewGPU creates a Vulkan instance (with no window-system extensions)
// and selects the first enumerated physical device, naming the
// application appName for diagnostic purposes. Its queue families are
// not checked here; NewDevice fails if none supports the requested flags.
func NewGPU(appName string) (*GPU, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, err
	}
	if err := vk.Init(); err != nil {
		return nil, err
	}

	gp := &GPU{AppName: appName}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   appName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "emureno\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion12,
	}

	var layers []string
	if os.Getenv("EMURENO_VALIDATION") != "" {
		layers = []string{"VK_LAYER_KHRONOS_validation\x00"}
	}
	gp.ValidationLayers = layers

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		EnabledExtensionCount:   0,
		PpEnabledExtensionNames: nil,
	}, nil, &instance)
	if err := NewError("CreateInstance", ret); err != nil {
		return nil, err
	}
	gp.Instance = instance
	vk.InitInstance(instance)

	var devCount uint32
	vk.EnumeratePhysicalDevices(instance, &devCount, nil)
	if devCount == 0 {
		return nil, errors.New("vkgpu: no Vulkan physical devices found")
	}
	devices := make([]vk.PhysicalDevice, devCount)
	vk.EnumeratePhysicalDevices(instance, &devCount, devices)

	gp.PhysicalDevice = devices[0]
	vk.GetPhysicalDeviceProperties(gp.PhysicalDevice, &gp.Properties)
	gp.Properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(gp.PhysicalDevice, &gp.MemoryProperties)
	gp.MemoryProperties.Deref()

	return gp, nil
}

// Release destroys the Vulkan instance. Call only after every Device
// created from this GPU has been destroyed.
func (gp *GPU) Release() {
	if gp.Instance != nil {
		vk.DestroyInstance(gp.Instance, nil)
		gp.Instance = nil
	}
}
