// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/goki/vulkan"
)

func TestUpdateBufferAccessFirstAccessNoBarrier(t *testing.T) {
	rt := NewResourceStateTracker()
	barrier, had := rt.UpdateBufferAccess(vk.Buffer(1), vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	assert.False(t, had)
	assert.Nil(t, barrier)
}

func TestUpdateBufferAccessSecondAccessBarriers(t *testing.T) {
	rt := NewResourceStateTracker()
	rt.UpdateBufferAccess(vk.Buffer(1), vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))

	barrier, had := rt.UpdateBufferAccess(vk.Buffer(1), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit))
	require.True(t, had)
	require.NotNil(t, barrier)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), barrier.SrcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), barrier.DstStage)
}

func TestUpdateImageAccessReadThenReadNoSecondBarrier(t *testing.T) {
	rt := NewResourceStateTracker()
	img := vk.Image(1)

	b1 := rt.UpdateImageAccessRead(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	require.NotNil(t, b1, "first read from Undefined layout must barrier")

	b2 := rt.UpdateImageAccessRead(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	assert.Nil(t, b2, "second consecutive read needs no barrier")
}

func TestUpdateImageAccessWriteAfterReadBarriers(t *testing.T) {
	rt := NewResourceStateTracker()
	img := vk.Image(1)

	rt.UpdateImageAccessRead(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	barrier := rt.UpdateImageAccessWrite(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	require.NotNil(t, barrier, "write following a read must barrier")
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, barrier.OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, barrier.NewLayout)
}

func TestUpdateImageAccessWriteAfterWriteAlwaysBarriers(t *testing.T) {
	rt := NewResourceStateTracker()
	img := vk.Image(1)

	rt.UpdateImageAccessWrite(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	barrier := rt.UpdateImageAccessWrite(img, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined)
	assert.NotNil(t, barrier, "write-after-write must still order the two writes")
}

func TestMeshTransitionBarrierPanicsIntoUninitialized(t *testing.T) {
	assert.Panics(t, func() {
		MeshTransitionBarrier(vk.Buffer(1), MeshReady, MeshUninitialized)
	})
}

func TestMeshTransitionBarrierSameStateNoBarrier(t *testing.T) {
	b := MeshTransitionBarrier(vk.Buffer(1), MeshReady, MeshReady)
	assert.Nil(t, b)
}

func TestMeshTransitionUninitializedToTransferWrite(t *testing.T) {
	b := MeshTransitionBarrier(vk.Buffer(1), MeshUninitialized, MeshTransferWrite)
	require.NotNil(t, b)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), b.DstAccess)
}

func TestImageTransitionBarrierPanicsIntoUninitialized(t *testing.T) {
	assert.Panics(t, func() {
		ImageTransitionBarrier(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), ImageReady, ImageUninitialized)
	})
}

func TestImageTransitionTransferWriteToReady(t *testing.T) {
	b := ImageTransitionBarrier(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), ImageTransferWrite, ImageReady)
	require.NotNil(t, b)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, b.OldLayout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, b.NewLayout)
}

func TestGenerateMipChainLevelsAndExtents(t *testing.T) {
	blits := GenerateMipChain(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 4, 8, 8)
	require.Len(t, blits, 3)

	assert.Equal(t, uint32(0), blits[0].SrcLevel)
	assert.Equal(t, uint32(1), blits[0].DstLevel)
	assert.Equal(t, [3]int32{8, 8, 1}, blits[0].SrcExtent)
	assert.Equal(t, [3]int32{4, 4, 1}, blits[0].DstExtent)
	assert.Nil(t, blits[0].PreBarrier, "first blit needs no barrier; level 0 is already TransferSrcOptimal")

	assert.Equal(t, [3]int32{2, 2, 1}, blits[1].DstExtent)
	require.NotNil(t, blits[1].PreBarrier)

	assert.Equal(t, [3]int32{1, 1, 1}, blits[2].DstExtent, "extent must clamp to 1, never reach 0")
}

func TestGenerateMipChainSingleLevelIsNoop(t *testing.T) {
	blits := GenerateMipChain(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 8, 8)
	assert.Empty(t, blits)
}

func TestGenerateMipChainPreBarrierScopedToSingleLevel(t *testing.T) {
	blits := GenerateMipChain(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 4, 8, 8)
	require.NotNil(t, blits[1].PreBarrier)
	assert.Equal(t, uint32(1), blits[1].PreBarrier.BaseMipLevel, "barrier before blit into level 2 only concerns level 1, the level it reads from")
	assert.Equal(t, uint32(1), blits[1].PreBarrier.LevelCount)

	require.NotNil(t, blits[2].PreBarrier)
	assert.Equal(t, uint32(2), blits[2].PreBarrier.BaseMipLevel)
}

func TestImageMipGenerateBarriersSplitsFirstMipFromRest(t *testing.T) {
	barriers := imageMipGenerateBarriers(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 4)
	require.Len(t, barriers, 2)

	assert.Equal(t, uint32(0), barriers[0].BaseMipLevel)
	assert.Equal(t, uint32(1), barriers[0].LevelCount)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, barriers[0].OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, barriers[0].NewLayout, "level 0 becomes the first blit's source")

	assert.Equal(t, uint32(1), barriers[1].BaseMipLevel)
	assert.Equal(t, uint32(3), barriers[1].LevelCount, "levels 1..3 never held data yet")
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, barriers[1].OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, barriers[1].NewLayout, "layout unchanged, awaiting their own blit")
}

func TestImageMipGenerateBarriersSingleLevelOnlyFirstRange(t *testing.T) {
	barriers := imageMipGenerateBarriers(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1)
	require.Len(t, barriers, 1)
	assert.Equal(t, uint32(0), barriers[0].BaseMipLevel)
}

func TestImageMipReadyBarriersLastLevelFromTransferDst(t *testing.T) {
	barriers := imageMipReadyBarriers(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 4)
	require.Len(t, barriers, 2)

	assert.Equal(t, uint32(0), barriers[0].BaseMipLevel)
	assert.Equal(t, uint32(3), barriers[0].LevelCount)
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, barriers[0].OldLayout, "levels 0..2 were each a blit source")

	assert.Equal(t, uint32(3), barriers[1].BaseMipLevel)
	assert.Equal(t, uint32(1), barriers[1].LevelCount)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, barriers[1].OldLayout, "the last level was only ever a blit destination")
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, barriers[1].NewLayout)
}
