// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	vk "github.com/goki/vulkan"

	"github.com/coregpu/emureno/vkgpu"
)

// recordState is the worker's in-progress command-buffer set: a "pre"
// command buffer for uploads and global-object maintenance, and a
// "draw" command buffer for reads and anything that must see every pre
// write — recorded and submitted together so pre's writes are
// guaranteed complete, in submission order, before draw's reads run.
//
// A buffer that needs a new pre-phase access after it has already been
// touched in the draw phase of the same set cannot simply append a
// barrier — draw always executes after pre within one submission, so
// ordering a new write "before" an already-recorded draw read would
// require reordering already-recorded commands. Instead the set is cut:
// submitted as-is, and the new access starts a fresh set. This is the
// only case that forces a cut; every other conflicting access is
// resolved by synthesizing a barrier within the open set.
type recordState struct {
	dev      *vkgpu.Device
	cmdPool  *CmdBufferPool
	timeline *Timeline

	preCmd  vk.CommandBuffer
	drawCmd vk.CommandBuffer

	preTracker  *ResourceStateTracker
	drawTracker *ResourceStateTracker

	usedCmdBufs []vk.CommandBuffer
	usedStaging []*StagingAllocation

	// signalValue is the highest timeline value stamped on any task
	// folded into the currently open set; it is what the set's
	// submission will signal.
	signalValue uint64
}

func newRecordState(dev *vkgpu.Device, cmdPool *CmdBufferPool, timeline *Timeline) *recordState {
	return &recordState{
		dev:         dev,
		cmdPool:     cmdPool,
		timeline:    timeline,
		preTracker:  NewResourceStateTracker(),
		drawTracker: NewResourceStateTracker(),
	}
}

func (rs *recordState) getOrBeginPreCmd() (vk.CommandBuffer, error) {
	if rs.preCmd != nil {
		return rs.preCmd, nil
	}
	cmd, err := rs.cmdPool.Acquire()
	if err != nil {
		return nil, err
	}
	if err := vkgpu.BeginOneTimeSubmit(cmd); err != nil {
		return nil, err
	}
	rs.preCmd = cmd
	rs.usedCmdBufs = append(rs.usedCmdBufs, cmd)
	return cmd, nil
}

func (rs *recordState) getOrBeginDrawCmd() (vk.CommandBuffer, error) {
	if rs.drawCmd != nil {
		return rs.drawCmd, nil
	}
	cmd, err := rs.cmdPool.Acquire()
	if err != nil {
		return nil, err
	}
	if err := vkgpu.BeginOneTimeSubmit(cmd); err != nil {
		return nil, err
	}
	rs.drawCmd = cmd
	rs.usedCmdBufs = append(rs.usedCmdBufs, cmd)
	return cmd, nil
}

// syncBufferPre records an access to buf that must happen in the pre
// phase, cutting the current set first if buf was already accessed in
// the draw phase.
func (rs *recordState) syncBufferPre(e *Engine, buf vk.Buffer, stage vk.PipelineStageFlags, access vk.AccessFlags) (vk.CommandBuffer, error) {
	if _, inDraw := rs.drawTracker.buffers[buf]; inDraw {
		artifact, err := rs.endCmdSet(e)
		if err != nil {
			return nil, err
		}
		e.pendingMu.Lock()
		e.pending.push(artifact)
		e.pendingMu.Unlock()
	}
	cmd, err := rs.getOrBeginPreCmd()
	if err != nil {
		return nil, err
	}
	if barrier, had := rs.preTracker.UpdateBufferAccess(buf, stage, access); had {
		cmdPipelineBarrierBuffer(cmd, barrier)
	}
	return cmd, nil
}

// syncBufferDraw records an access to buf in the draw phase. No cut is
// ever needed here: pre always precedes draw within a set, so a draw
// access can always be ordered after any pre access with a barrier.
func (rs *recordState) syncBufferDraw(buf vk.Buffer, stage vk.PipelineStageFlags, access vk.AccessFlags) (vk.CommandBuffer, error) {
	cmd, err := rs.getOrBeginDrawCmd()
	if err != nil {
		return nil, err
	}
	if barrier, had := rs.drawTracker.UpdateBufferAccess(buf, stage, access); had {
		cmdPipelineBarrierBuffer(cmd, barrier)
	}
	return cmd, nil
}

func cmdPipelineBarrierBuffer(cmd vk.CommandBuffer, b *BufferBarrier) {
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              b.Buffer,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	vk.CmdPipelineBarrier(cmd, b.SrcStage, b.DstStage, vk.DependencyFlags(0),
		0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
}

func cmdPipelineBarrierImage(cmd vk.CommandBuffer, b *ImageBarrier) {
	levelCount := b.LevelCount
	if levelCount == 0 {
		levelCount = vk.RemainingMipLevels
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               b.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     b.AspectMask,
			BaseMipLevel:   b.BaseMipLevel,
			LevelCount:     levelCount,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
	vk.CmdPipelineBarrier(cmd, b.SrcStage, b.DstStage, vk.DependencyFlags(0),
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// bridgeBufferBarriers returns the barriers needed to order every
// pre-phase access of a buffer before that same buffer's draw-phase
// access within one command-buffer set. Vulkan treats the command
// buffers of a single submission as executing in list order for
// synchronization purposes, so a barrier recorded at the end of the pre
// command buffer — after its last write, before the submission's draw
// command buffer runs — is sufficient to order the two; no barrier
// needs to be recorded into drawCmd itself. Grounded on the teacher's
// worker.rs::end_cmd_set, which pushes exactly this barrier onto the
// pre command buffer for every buffer present in both phase states.
func bridgeBufferBarriers(pre, draw *ResourceStateTracker) []*BufferBarrier {
	var barriers []*BufferBarrier
	for buf, preAccess := range pre.buffers {
		drawAccess, ok := draw.buffers[buf]
		if !ok {
			continue
		}
		barriers = append(barriers, &BufferBarrier{
			Buffer:    buf,
			SrcStage:  preAccess.Stage,
			DstStage:  drawAccess.Stage,
			SrcAccess: preAccess.Access,
			DstAccess: drawAccess.Access,
		})
	}
	return barriers
}

// mergeBufferState returns the buffer access map a fresh set's pre-phase
// tracker should start from: draw always executes after pre within a
// set, so where both phases touched a buffer, draw's access is the
// GPU's actual last-known state once the submission completes.
func mergeBufferState(pre, draw *ResourceStateTracker) map[vk.Buffer]BufferAccess {
	merged := make(map[vk.Buffer]BufferAccess, len(pre.buffers)+len(draw.buffers))
	for buf, acc := range pre.buffers {
		merged[buf] = acc
	}
	for buf, acc := range draw.buffers {
		merged[buf] = acc
	}
	return merged
}

// endCmdSet ends whatever command buffers are open, submits them in a
// single batch signaling rs.signalValue (the submission does not wait on
// the timeline; it relies on queue submission order alone), and returns the submission artifact retaining everything that must
// stay alive until the GPU reaches that value. Resets recordState for
// the next set, seeding its pre-phase tracker from this set's final
// buffer state so a later set sees the buffer's true last access rather
// than treating it as untouched.
func (rs *recordState) endCmdSet(e *Engine) (*submissionArtifact, error) {
	if rs.preCmd != nil {
		for _, b := range bridgeBufferBarriers(rs.preTracker, rs.drawTracker) {
			cmdPipelineBarrierBuffer(rs.preCmd, b)
		}
	}

	var cmdBufs []vk.CommandBuffer
	if rs.preCmd != nil {
		if err := vkgpu.EndCommandBuffer(rs.preCmd); err != nil {
			return nil, err
		}
		cmdBufs = append(cmdBufs, rs.preCmd)
	}
	if rs.drawCmd != nil {
		if err := vkgpu.EndCommandBuffer(rs.drawCmd); err != nil {
			return nil, err
		}
		cmdBufs = append(cmdBufs, rs.drawCmd)
	}

	signalValue := rs.signalValue
	if len(cmdBufs) == 0 && signalValue == 0 {
		// nothing recorded and nothing to signal: not a real submission
		return nil, nil
	}

	if err := vkgpu.SubmitTimeline(rs.dev.Queue, rs.timeline.Semaphore(), 0, signalValue, cmdBufs); err != nil {
		return nil, err
	}

	artifact := &submissionArtifact{
		waitValue:       signalValue,
		usedCommandBufs: rs.usedCmdBufs,
		usedStaging:     rs.usedStaging,
	}

	seed := mergeBufferState(rs.preTracker, rs.drawTracker)

	rs.preCmd = nil
	rs.drawCmd = nil
	rs.usedCmdBufs = nil
	rs.usedStaging = nil
	rs.signalValue = 0
	rs.preTracker = NewResourceStateTracker()
	rs.preTracker.buffers = seed
	rs.drawTracker.Reset()

	return artifact, nil
}
