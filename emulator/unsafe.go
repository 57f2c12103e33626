// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import "unsafe"

// unsafeBytes views n bytes starting at ptr as a []byte, without
// copying. The caller must not retain the result past the lifetime of
// the memory ptr points into.
func unsafeBytes(ptr unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}
