// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalObjectsDestroysImmediatelyWhenUnreferenced(t *testing.T) {
	g := NewGlobalObjects()
	id := NewID()
	destroyed := false
	g.RegisterMesh(id, func() { destroyed = true })

	g.MarkDestroyMesh(id)
	g.Tick(0)

	assert.True(t, destroyed)
	_, ok := g.MeshRefCount(id)
	assert.False(t, ok)
}

func TestGlobalObjectsDefersDestroyUntilRefsDrop(t *testing.T) {
	g := NewGlobalObjects()
	id := NewID()
	destroyed := false
	g.RegisterMesh(id, func() { destroyed = true })

	require.NoError(t, g.IncRefMesh(id))
	g.MarkDestroyMesh(id)
	g.Tick(100)
	assert.False(t, destroyed, "still referenced, must not be destroyed")

	g.DecRefMesh(id)
	g.Tick(100)
	assert.True(t, destroyed)
}

func TestGlobalObjectsDestroyWaitsForTimeline(t *testing.T) {
	g := NewGlobalObjects()
	id := NewID()
	destroyed := false
	g.RegisterMesh(id, func() { destroyed = true })

	g.TouchMesh(id, 42)
	g.MarkDestroyMesh(id)

	g.Tick(41)
	assert.False(t, destroyed, "timeline has not yet passed last use")

	g.Tick(42)
	assert.True(t, destroyed)
}

func TestGlobalObjectsIncRefAfterMarkedFails(t *testing.T) {
	g := NewGlobalObjects()
	id := NewID()
	g.RegisterMesh(id, func() {})
	g.MarkDestroyMesh(id)

	err := g.IncRefMesh(id)
	assert.ErrorIs(t, err, ErrMarkedForDestroy)
}

func TestGlobalObjectsUnknownIDErrors(t *testing.T) {
	g := NewGlobalObjects()
	err := g.IncRefMesh(NewID())
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestGlobalObjectsTickDrainsOnlyReadyEntries(t *testing.T) {
	g := NewGlobalObjects()
	idA, idB := NewID(), NewID()
	var destroyedOrder []ID

	g.RegisterMesh(idA, func() { destroyedOrder = append(destroyedOrder, idA) })
	g.RegisterMesh(idB, func() { destroyedOrder = append(destroyedOrder, idB) })
	g.TouchMesh(idA, 10)
	g.TouchMesh(idB, 20)
	g.MarkDestroyMesh(idA)
	g.MarkDestroyMesh(idB)

	g.Tick(15)
	assert.Equal(t, []ID{idA}, destroyedOrder)

	g.Tick(20)
	assert.Equal(t, []ID{idA, idB}, destroyedOrder)
}

func TestGlobalObjectsTickDrainsOutOfOrderPending(t *testing.T) {
	g := NewGlobalObjects()
	idA, idB := NewID(), NewID()
	var destroyedOrder []ID

	g.RegisterMesh(idA, func() { destroyedOrder = append(destroyedOrder, idA) })
	g.RegisterMesh(idB, func() { destroyedOrder = append(destroyedOrder, idB) })

	// idA is touched later than idB but its refcount drops to zero first,
	// so it lands at the front of pending despite having the higher
	// lastUsed value.
	g.TouchMesh(idB, 5)
	g.TouchMesh(idA, 50)
	g.MarkDestroyMesh(idA)
	g.MarkDestroyMesh(idB)

	g.Tick(5)
	assert.Equal(t, []ID{idB}, destroyedOrder, "idB must be destroyed even though it sits behind the not-yet-ready idA")

	_, aStillPending := g.MeshRefCount(idA)
	assert.True(t, aStillPending)

	g.Tick(50)
	assert.ElementsMatch(t, []ID{idA, idB}, destroyedOrder)
}
