// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"sync"
	"unsafe"

	"github.com/coregpu/emureno/vkgpu"
)

// DefaultStagingBlockSize is the size of a staging block allocated when
// no existing block has room for a request, unless the request itself
// is larger.
const DefaultStagingBlockSize = 4 << 20 // 4 MiB

// StagingAllocation is a suballocated range of a staging pool block,
// returned to callers so they can copy into it and later free it.
type StagingAllocation struct {
	id     uint64
	block  int
	Offset int
	Size   int
	Ptr    unsafe.Pointer
}

// stagingBackend is the narrow surface StagingPool needs from vkgpu,
// pulled out as an interface so the suballocation bookkeeping can be
// exercised without a real device.
type stagingBackend interface {
	NewHostBuffer(size int) (*vkgpu.HostBuffer, error)
	FreeHostBuffer(hb *vkgpu.HostBuffer)
}

type deviceStagingBackend struct {
	dev *vkgpu.Device
}

func (b *deviceStagingBackend) NewHostBuffer(size int) (*vkgpu.HostBuffer, error) {
	return vkgpu.NewHostBuffer(b.dev, size)
}

func (b *deviceStagingBackend) FreeHostBuffer(hb *vkgpu.HostBuffer) {
	hb.Free(b.dev)
}

type freeRange struct {
	offset, size int
}

type stagingBlock struct {
	buf  *vkgpu.HostBuffer
	size int
	free []freeRange // sorted ascending by offset, never touching/overlapping
}

// StagingPool suballocates from a growable set of host-visible,
// host-coherent buffer blocks. Allocate never blocks on the GPU — it is
// pure bookkeeping plus, occasionally, a new block creation.
type StagingPool struct {
	backend   stagingBackend
	blockSize int

	mu     sync.Mutex
	blocks []*stagingBlock
	nextID uint64
	live   map[uint64]*StagingAllocation
}

// NewStagingPool creates an empty pool that grows blocks of blockSize
// bytes (or larger, if a single request exceeds it) from dev.
func NewStagingPool(dev *vkgpu.Device, blockSize int) *StagingPool {
	if blockSize <= 0 {
		blockSize = DefaultStagingBlockSize
	}
	return &StagingPool{
		backend:   &deviceStagingBackend{dev: dev},
		blockSize: blockSize,
		live:      make(map[uint64]*StagingAllocation),
	}
}

// Allocate returns a range of at least size bytes, aligned to alignment,
// creating a new backing block if no existing block has room.
func (sp *StagingPool) Allocate(size, alignment int) (*StagingAllocation, error) {
	if alignment <= 0 {
		alignment = 1
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()

	for bi, b := range sp.blocks {
		if off, ok := fitFreeRange(b.free, size, alignment); ok {
			b.free = consumeFreeRange(b.free, off, size)
			return sp.record(bi, off, size, b), nil
		}
	}

	blockSize := sp.blockSize
	if size > blockSize {
		blockSize = size
	}
	hb, err := sp.backend.NewHostBuffer(blockSize)
	if err != nil {
		return nil, err
	}
	b := &stagingBlock{buf: hb, size: blockSize, free: []freeRange{{0, blockSize}}}
	sp.blocks = append(sp.blocks, b)
	bi := len(sp.blocks) - 1

	off, ok := fitFreeRange(b.free, size, alignment)
	if !ok {
		// A freshly created block sized to at least `size` always fits
		// an unaligned request; this can only fail if alignment pushes
		// the allocation past the block, which blockSize accounts for
		// by construction when size dominates. Treat as a bug, not a
		// recoverable condition.
		panic("emulator: staging block sized for request does not fit it")
	}
	b.free = consumeFreeRange(b.free, off, size)
	return sp.record(bi, off, size, b), nil
}

func (sp *StagingPool) record(blockIdx, offset, size int, b *stagingBlock) *StagingAllocation {
	sp.nextID++
	a := &StagingAllocation{
		id:     sp.nextID,
		block:  blockIdx,
		Offset: offset,
		Size:   size,
		Ptr:    unsafe.Add(b.buf.Ptr, offset),
	}
	sp.live[a.id] = a
	return a
}

// Free returns a's range to its block's free list, coalescing with
// adjacent free ranges.
func (sp *StagingPool) Free(a *StagingAllocation) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if _, ok := sp.live[a.id]; !ok {
		return
	}
	delete(sp.live, a.id)

	b := sp.blocks[a.block]
	b.free = insertFreeRange(b.free, freeRange{a.offset(), a.Size})
}

func (a *StagingAllocation) offset() int { return a.Offset }

// DeviceBuffer returns the host buffer pair backing a's block. Copies
// into and out of staging are recorded against its host-visible Host
// buffer, at a.Offset.
func (sp *StagingPool) DeviceBuffer(a *StagingAllocation) *vkgpu.HostBuffer {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.blocks[a.block].buf
}

// Destroy frees every backing block. Call only once every allocation
// has been freed and no work referencing them is in flight.
func (sp *StagingPool) Destroy() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for _, b := range sp.blocks {
		sp.backend.FreeHostBuffer(b.buf)
	}
	sp.blocks = nil
	sp.live = make(map[uint64]*StagingAllocation)
}

// fitFreeRange finds the first free range in free (sorted by offset)
// that can hold size bytes at an alignment-satisfying offset, returning
// that offset.
func fitFreeRange(free []freeRange, size, alignment int) (int, bool) {
	for _, r := range free {
		aligned := alignUp(r.offset, alignment)
		pad := aligned - r.offset
		if r.size-pad >= size {
			return aligned, true
		}
	}
	return 0, false
}

// consumeFreeRange removes [offset, offset+size) from free, splitting
// the containing range into up to two leftover ranges.
func consumeFreeRange(free []freeRange, offset, size int) []freeRange {
	out := make([]freeRange, 0, len(free)+1)
	for _, r := range free {
		if offset < r.offset || offset+size > r.offset+r.size {
			out = append(out, r)
			continue
		}
		if offset > r.offset {
			out = append(out, freeRange{r.offset, offset - r.offset})
		}
		end := offset + size
		if end < r.offset+r.size {
			out = append(out, freeRange{end, r.offset + r.size - end})
		}
	}
	return out
}

// insertFreeRange inserts r into free (sorted by offset), coalescing
// with any directly adjacent neighbors.
func insertFreeRange(free []freeRange, r freeRange) []freeRange {
	i := 0
	for i < len(free) && free[i].offset < r.offset {
		i++
	}
	out := make([]freeRange, 0, len(free)+1)
	out = append(out, free[:i]...)
	out = append(out, r)
	out = append(out, free[i:]...)

	// coalesce left-to-right in a single pass
	merged := out[:1]
	for _, cur := range out[1:] {
		last := &merged[len(merged)-1]
		if last.offset+last.size == cur.offset {
			last.size += cur.size
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

func alignUp(v, alignment int) int {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) / alignment * alignment
}
