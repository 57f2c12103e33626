// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import vk "github.com/goki/vulkan"

// submissionArtifact retains everything a single GPU submission needs
// kept alive until the timeline signals waitValue: the command buffers
// it used (so they can be reset and returned to the pool) and the
// staging allocations it read from or wrote into (so they can be freed
// back to the staging pool). It is reclaimed exactly once, by the
// worker, once the timeline has passed waitValue.
type submissionArtifact struct {
	waitValue       uint64
	usedCommandBufs []vk.CommandBuffer
	usedStaging     []*StagingAllocation
}

// pendingArtifacts is the FIFO of submitted-but-not-yet-reclaimed
// artifacts, ordered by increasing waitValue (submissions are always
// appended in timeline order, since signalValue only ever increases).
type pendingArtifacts struct {
	items []*submissionArtifact
}

func (p *pendingArtifacts) push(a *submissionArtifact) {
	if a == nil {
		return
	}
	p.items = append(p.items, a)
}

// reclaimReady pops and returns every artifact whose waitValue has been
// reached by signaled, in FIFO order, stopping at the first one that
// has not — the queue is ordered so nothing behind it can be ready
// either.
func (p *pendingArtifacts) reclaimReady(signaled uint64) []*submissionArtifact {
	i := 0
	for ; i < len(p.items); i++ {
		if p.items[i].waitValue > signaled {
			break
		}
	}
	ready := p.items[:i]
	p.items = p.items[i:]
	return ready
}
