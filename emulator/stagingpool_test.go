// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregpu/emureno/vkgpu"
)

// fakeStagingBackend backs a StagingPool with plain heap memory instead
// of real Vulkan buffers, so the suballocation bookkeeping can be
// exercised without a GPU.
type fakeStagingBackend struct {
	allocs int
	frees  int
}

func (f *fakeStagingBackend) NewHostBuffer(size int) (*vkgpu.HostBuffer, error) {
	f.allocs++
	buf := make([]byte, size)
	return &vkgpu.HostBuffer{Size: size, Ptr: unsafe.Pointer(&buf[0])}, nil
}

func (f *fakeStagingBackend) FreeHostBuffer(hb *vkgpu.HostBuffer) {
	f.frees++
}

func newTestStagingPool(blockSize int) (*StagingPool, *fakeStagingBackend) {
	backend := &fakeStagingBackend{}
	sp := &StagingPool{
		backend:   backend,
		blockSize: blockSize,
		live:      make(map[uint64]*StagingAllocation),
	}
	return sp, backend
}

func TestStagingPoolAllocateWithinBlock(t *testing.T) {
	sp, backend := newTestStagingPool(1024)

	a1, err := sp.Allocate(100, 16)
	require.NoError(t, err)
	a2, err := sp.Allocate(200, 16)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.allocs, "both allocations should fit in one block")
	assert.NotEqual(t, a1.Offset, a2.Offset)
	assert.Equal(t, 0, a1.Offset%16)
	assert.Equal(t, 0, a2.Offset%16)
}

func TestStagingPoolGrowsNewBlockWhenFull(t *testing.T) {
	sp, backend := newTestStagingPool(128)

	_, err := sp.Allocate(100, 1)
	require.NoError(t, err)
	_, err = sp.Allocate(100, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.allocs)
}

func TestStagingPoolOversizeRequestGetsDedicatedBlock(t *testing.T) {
	sp, _ := newTestStagingPool(128)

	a, err := sp.Allocate(1000, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000, a.Size)
}

func TestStagingPoolFreeAndReuse(t *testing.T) {
	sp, backend := newTestStagingPool(256)

	a1, err := sp.Allocate(100, 1)
	require.NoError(t, err)
	sp.Free(a1)

	a2, err := sp.Allocate(100, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.allocs, "freed space should be reused rather than growing a new block")
	assert.Equal(t, a1.Offset, a2.Offset)
}

func TestStagingPoolCoalescesAdjacentFreeRanges(t *testing.T) {
	sp, _ := newTestStagingPool(300)

	a1, err := sp.Allocate(100, 1)
	require.NoError(t, err)
	a2, err := sp.Allocate(100, 1)
	require.NoError(t, err)
	a3, err := sp.Allocate(100, 1)
	require.NoError(t, err)

	sp.Free(a1)
	sp.Free(a2)
	sp.Free(a3)

	b := sp.blocks[0]
	require.Len(t, b.free, 1, "freeing the whole block should coalesce into a single range")
	assert.Equal(t, freeRange{0, 300}, b.free[0])
}

func TestStagingPoolDestroyFreesAllBlocks(t *testing.T) {
	sp, backend := newTestStagingPool(64)
	_, err := sp.Allocate(10, 1)
	require.NoError(t, err)
	_, err = sp.Allocate(1000, 1)
	require.NoError(t, err)

	sp.Destroy()
	assert.Equal(t, backend.allocs, backend.frees)
	assert.Empty(t, sp.blocks)
}
