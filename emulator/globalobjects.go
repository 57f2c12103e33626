// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import "sync"

// globalEntry is the refcount/lifetime bookkeeping shared by global
// meshes and global images. destroy releases the underlying GPU
// resources and is called exactly once, only after both the refcount
// has dropped to zero and the GPU timeline has passed lastUsed — the
// value of the most recent submission that referenced this object.
type globalEntry struct {
	refcount int
	marked   bool
	lastUsed uint64
	destroy  func()
}

// GlobalObjects owns the refcount- and timeline-gated lifetime of every
// global mesh and global image, independent of how those objects are
// actually created or destroyed on the GPU — creation registers an
// entry with a destroy callback; Tick drains whatever has both reached
// zero refcount and fallen behind the signaled timeline value.
type GlobalObjects struct {
	mu     sync.Mutex
	meshes map[ID]*globalEntry
	images map[ID]*globalEntry

	pendingMeshes []*pendingDestroy
	pendingImages []*pendingDestroy
}

type pendingDestroy struct {
	id    ID
	entry *globalEntry
}

// NewGlobalObjects returns an empty manager.
func NewGlobalObjects() *GlobalObjects {
	return &GlobalObjects{
		meshes: make(map[ID]*globalEntry),
		images: make(map[ID]*globalEntry),
	}
}

// RegisterMesh adds a freshly created mesh with refcount zero. destroy
// is invoked once the mesh is later marked for destruction, has no
// remaining references, and the timeline has passed its last use.
func (g *GlobalObjects) RegisterMesh(id ID, destroy func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.meshes[id] = &globalEntry{destroy: destroy}
}

// RegisterImage adds a freshly created image with refcount zero.
func (g *GlobalObjects) RegisterImage(id ID, destroy func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images[id] = &globalEntry{destroy: destroy}
}

// IncRefMesh increments a mesh's refcount and returns ErrMarkedForDestroy
// if the mesh is already scheduled for destruction, or ErrUnknownID if
// id has no entry.
func (g *GlobalObjects) IncRefMesh(id ID) error { return g.incRef(g.meshes, id) }

// IncRefImage increments an image's refcount, as [IncRefMesh].
func (g *GlobalObjects) IncRefImage(id ID) error { return g.incRef(g.images, id) }

func (g *GlobalObjects) incRef(table map[ID]*globalEntry, id ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := table[id]
	if !ok {
		return ErrUnknownID
	}
	if e.marked {
		return ErrMarkedForDestroy
	}
	e.refcount++
	return nil
}

// DecRefMesh decrements a mesh's refcount, scheduling it for
// destruction if it is already marked and has just reached zero.
func (g *GlobalObjects) DecRefMesh(id ID) { g.decRef(g.meshes, &g.pendingMeshes, id) }

// DecRefImage decrements an image's refcount, as [DecRefMesh].
func (g *GlobalObjects) DecRefImage(id ID) { g.decRef(g.images, &g.pendingImages, id) }

func (g *GlobalObjects) decRef(table map[ID]*globalEntry, pending *[]*pendingDestroy, id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := table[id]
	if !ok || e.refcount == 0 {
		return
	}
	e.refcount--
	if e.marked && e.refcount == 0 {
		*pending = append(*pending, &pendingDestroy{id: id, entry: e})
	}
}

// MarkDestroyMesh marks a mesh for destruction. If its refcount is
// already zero it is scheduled immediately; otherwise it is scheduled
// as soon as the last outstanding DecRefMesh brings it to zero.
func (g *GlobalObjects) MarkDestroyMesh(id ID) { g.markDestroy(g.meshes, &g.pendingMeshes, id) }

// MarkDestroyImage marks an image for destruction, as [MarkDestroyMesh].
func (g *GlobalObjects) MarkDestroyImage(id ID) { g.markDestroy(g.images, &g.pendingImages, id) }

func (g *GlobalObjects) markDestroy(table map[ID]*globalEntry, pending *[]*pendingDestroy, id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := table[id]
	if !ok || e.marked {
		return
	}
	e.marked = true
	if e.refcount == 0 {
		*pending = append(*pending, &pendingDestroy{id: id, entry: e})
	}
}

// TouchMesh records value as the most recent timeline value of a
// submission that referenced mesh id, so a later destruction waits for
// at least that submission to complete.
func (g *GlobalObjects) TouchMesh(id ID, value uint64) { g.touch(g.meshes, id, value) }

// TouchImage records value as the most recent timeline value of a
// submission that referenced image id.
func (g *GlobalObjects) TouchImage(id ID, value uint64) { g.touch(g.images, id, value) }

func (g *GlobalObjects) touch(table map[ID]*globalEntry, id ID, value uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := table[id]; ok && value > e.lastUsed {
		e.lastUsed = value
	}
}

// Tick destroys every pending mesh and image whose lastUsed timeline
// value has been passed by signaled.
func (g *GlobalObjects) Tick(signaled uint64) {
	g.mu.Lock()
	remainingMeshes := g.drainLocked(g.meshes, g.pendingMeshes, signaled)
	remainingImages := g.drainLocked(g.images, g.pendingImages, signaled)
	g.pendingMeshes = remainingMeshes
	g.pendingImages = remainingImages
	g.mu.Unlock()
}

// drainLocked must be called with g.mu held. pending is appended to in
// refcount-hits-zero order, which need not track lastUsed — a mesh
// touched early but released late can sit behind one touched late but
// released early. So the whole slice is scanned rather than stopping at
// the first not-yet-ready entry, and the not-yet-ready ones are
// compacted down preserving their relative order.
func (g *GlobalObjects) drainLocked(table map[ID]*globalEntry, pending []*pendingDestroy, signaled uint64) []*pendingDestroy {
	remaining := pending[:0]
	for _, p := range pending {
		if p.entry.lastUsed > signaled {
			remaining = append(remaining, p)
			continue
		}
		p.entry.destroy()
		delete(table, p.id)
	}
	return remaining
}

// MeshRefCount returns the current refcount of mesh id, for tests and
// diagnostics.
func (g *GlobalObjects) MeshRefCount(id ID) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.meshes[id]
	if !ok {
		return 0, false
	}
	return e.refcount, true
}
