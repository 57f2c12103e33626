// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Error wraps a non-success vk.Result returned from a Vulkan call,
// together with the name of the call that produced it.
type Error struct {
	Op     string
	Result vk.Result
}

func (e *Error) Error() string {
	return fmt.Sprintf("vulkan: %s: %s", e.Op, vk.Error(e.Result).Error())
}

// NewError returns nil if ret is vk.Success, else an *Error for op.
func NewError(op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &Error{Op: op, Result: ret}
}

// IsError reports whether ret indicates a non-success result.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// IfPanic panics if err is non-nil. Used at call sites where a Vulkan
// failure indicates a programmer error or lost device, neither of which
// this package can recover from.
func IfPanic(err error) {
	if err != nil {
		panic(err)
	}
}
