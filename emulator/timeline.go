// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"sync/atomic"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/vkgpu"
)

// Timeline is the single monotonic counter that every unit of submitted
// work is stamped with, backed by a Vulkan timeline semaphore. Reserving
// a value (Next) never touches the GPU; only Wait and CurrentSignaled do.
type Timeline struct {
	dev *vkgpu.Device
	sem vk.Semaphore

	next atomic.Uint64
}

// NewTimeline creates a Timeline backed by a fresh timeline semaphore on
// dev, initialized to zero.
func NewTimeline(dev *vkgpu.Device) (*Timeline, error) {
	sem, err := vkgpu.NewTimelineSemaphore(dev.Device, 0)
	if err != nil {
		return nil, err
	}
	return &Timeline{dev: dev, sem: sem}, nil
}

// Semaphore returns the underlying Vulkan timeline semaphore, for use in
// submit infos.
func (tl *Timeline) Semaphore() vk.Semaphore {
	return tl.sem
}

// Next reserves and returns the next timeline value. The value is
// reserved before any corresponding work is recorded or submitted, so
// that callers always receive a value they can wait on even if the
// actual submission happens later.
func (tl *Timeline) Next() uint64 {
	return tl.next.Add(1)
}

// CurrentSignaled returns the most recent value the GPU has signaled on
// the timeline semaphore.
func (tl *Timeline) CurrentSignaled() uint64 {
	return vkgpu.SemaphoreCounterValue(tl.dev.Device, tl.sem)
}

// Wait blocks until the timeline reaches at least value, or timeout
// elapses, returning ErrTimeout in the latter case. A zero timeout
// means wait forever.
func (tl *Timeline) Wait(value uint64, timeout time.Duration) error {
	nanos := uint64(vk.MaxUint64)
	if timeout > 0 {
		nanos = uint64(timeout.Nanoseconds())
	}
	ret := vkgpu.WaitSemaphoreValue(tl.dev.Device, tl.sem, value, nanos)
	if ret == vk.Timeout {
		return ErrTimeout
	}
	return vkgpu.NewError("WaitSemaphores", ret)
}

// Destroy destroys the underlying semaphore. Call only once nothing is
// waiting on or submitting against it.
func (tl *Timeline) Destroy() {
	if tl.sem != vk.NullSemaphore {
		vk.DestroySemaphore(tl.dev.Device, tl.sem, nil)
		tl.sem = vk.NullSemaphore
	}
}
