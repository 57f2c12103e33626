// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"
)

// ID is an opaque 128-bit identifier for a mesh, image, or other global
// object. It carries no GPU meaning of its own — it is never passed to
// Vulkan — and exists purely so callers can name a resource without
// holding a live reference to its handle.
type ID [16]byte

// idCounter supplies the low 64 bits so IDs generated within a single
// process are guaranteed unique even under a degraded entropy source;
// the high 64 bits come from crypto/rand so IDs are also unique across
// processes.
var idCounter atomic.Uint64

// NewID returns a fresh, process-wide unique ID.
func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:8])
	n := idCounter.Add(1)
	for i := 0; i < 8; i++ {
		id[8+i] = byte(n >> (56 - 8*i))
	}
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}
