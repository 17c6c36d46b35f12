// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"time"

	"github.com/scenewire/scenewire/lib/resource"
)

// Action is a single opaque scene mutation record. The coordinator
// and wire codec move actions around without interpreting them; only
// the producing client and the consuming renderer understand the
// payload encoding for a given type.
type Action struct {
	Type uint32 `cbor:"type"`
	Data []byte `cbor:"data,omitempty"`
}

// FlushInfo is the checkpoint metadata that closes a batch of scene
// actions into a consistent, orderable unit.
type FlushInfo struct {
	// Version advances monotonically per scene with every flush.
	Version uint64 `cbor:"version"`

	// FlushTime is the producer-side wall clock time of the flush.
	FlushTime time.Time `cbor:"flush_time"`
}

// Update is the atomic unit exchanged between the coordinator and the
// wire codec: an ordered action sequence, the resources embedded with
// this batch, and the flush checkpoint that closes it.
type Update struct {
	Actions   []Action
	Resources []*resource.Resource
	Flush     FlushInfo
}
