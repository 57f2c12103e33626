// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingArtifactsReclaimReadyInOrder(t *testing.T) {
	p := &pendingArtifacts{}
	p.push(&submissionArtifact{waitValue: 1})
	p.push(&submissionArtifact{waitValue: 2})
	p.push(&submissionArtifact{waitValue: 3})

	ready := p.reclaimReady(2)
	assert.Len(t, ready, 2)
	assert.Equal(t, uint64(1), ready[0].waitValue)
	assert.Equal(t, uint64(2), ready[1].waitValue)
	assert.Len(t, p.items, 1)
	assert.Equal(t, uint64(3), p.items[0].waitValue)
}

func TestPendingArtifactsReclaimNoneReady(t *testing.T) {
	p := &pendingArtifacts{}
	p.push(&submissionArtifact{waitValue: 5})

	ready := p.reclaimReady(4)
	assert.Empty(t, ready)
	assert.Len(t, p.items, 1)
}

func TestPendingArtifactsPushIgnoresNil(t *testing.T) {
	p := &pendingArtifacts{}
	p.push(nil)
	assert.Empty(t, p.items)
}
