// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import vk "github.com/goki/vulkan"

// MeshDescription is the host-side data needed to create a global mesh:
// an interleaved vertex buffer and an index buffer, uploaded once and
// then read-only for the mesh's lifetime.
type MeshDescription struct {
	VertexData        []byte
	IndexData         []byte
	VertexStride       int
	IndexCount         int
	IndexType          vk.IndexType
	PrimitiveTopology  vk.PrimitiveTopology
}

// IndexSize returns the byte size of one index, derived from IndexType.
func (m MeshDescription) IndexSize() int {
	if m.IndexType == vk.IndexTypeUint16 {
		return 2
	}
	return 4
}

// ImageDescription is the host-side data needed to create a global
// image: pixel data for mip level 0, plus the total number of mip
// levels (level 0 included) the image gets, the levels above 0 being
// generated from it.
type ImageDescription struct {
	Width, Height uint32
	Format        vk.Format
	Data          []byte
	MipLevels     int // 1 (or 0) means no mipmap chain is generated
}

// ImageSize is a plain width/height pair used by
// Engine.CreatePersistentColorImage.
type ImageSize struct {
	Width, Height uint32
}
