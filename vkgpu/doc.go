// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkgpu provides the headless Vulkan bootstrap and low-level
// buffer, image, and synchronization primitives that the emulator
// package records commands against, using the pure-Go
// https://github.com/goki/vulkan bindings.
package vkgpu
