// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeBufferBarriersOnlyBuffersInBothTrackers(t *testing.T) {
	pre := NewResourceStateTracker()
	draw := NewResourceStateTracker()

	written := vk.Buffer(1)
	preOnly := vk.Buffer(2)
	readOnly := vk.Buffer(3)

	pre.UpdateBufferAccess(written, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	pre.UpdateBufferAccess(preOnly, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	draw.UpdateBufferAccess(written, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit))
	draw.UpdateBufferAccess(readOnly, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit))

	barriers := bridgeBufferBarriers(pre, draw)
	require.Len(t, barriers, 1, "only the buffer touched by both phases needs a bridging barrier")
	assert.Equal(t, written, barriers[0].Buffer)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), barriers[0].SrcAccess)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferReadBit), barriers[0].DstAccess)
}

func TestBridgeBufferBarriersEmptyWhenNoOverlap(t *testing.T) {
	pre := NewResourceStateTracker()
	draw := NewResourceStateTracker()
	pre.UpdateBufferAccess(vk.Buffer(1), vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))

	assert.Empty(t, bridgeBufferBarriers(pre, draw))
}

func TestMergeBufferStateDrawWinsOnOverlap(t *testing.T) {
	pre := NewResourceStateTracker()
	draw := NewResourceStateTracker()

	buf := vk.Buffer(1)
	pre.UpdateBufferAccess(buf, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	draw.UpdateBufferAccess(buf, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit))

	other := vk.Buffer(2)
	pre.UpdateBufferAccess(other, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit))

	merged := mergeBufferState(pre, draw)
	require.Contains(t, merged, buf)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), merged[buf].Stage, "draw's access is the true state after submission completes")
	require.Contains(t, merged, other, "buffers touched only in pre still carry forward")
}
