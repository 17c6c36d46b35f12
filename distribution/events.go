// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"encoding/binary"
	"fmt"

	"github.com/scenewire/scenewire/lib/codec"
	"github.com/scenewire/scenewire/lib/resource"
	"github.com/scenewire/scenewire/lib/scene"
)

// Renderer event wire tags. A fixed-width little-endian uint32 leads
// every renderer event payload and selects the body decoding. Values
// beyond the known set are rejected by DecodeRendererEvent, never
// fatal to the session.
const (
	eventTagSceneReference       uint32 = 1
	eventTagResourceAvailability uint32 = 2
)

// eventTagSize is the width of the leading tag.
const eventTagSize = 4

// RendererEvent is the sum of event types a renderer sends back to a
// scene provider. Decode with DecodeRendererEvent and dispatch with
// an exhaustive type switch over the two concrete types.
type RendererEvent interface {
	// MasterScene returns the locally produced scene whose event
	// consumer should receive this event.
	MasterScene() scene.SceneID

	isRendererEvent()
}

// SceneReferenceEvent reports a state change of a referenced scene to
// the provider of its master scene.
type SceneReferenceEvent struct {
	Master          scene.SceneID `cbor:"master"`
	ReferencedScene scene.SceneID `cbor:"referenced_scene"`

	// Kind discriminates what changed: requested state applied,
	// flush latched, and so on. Opaque to the coordinator.
	Kind uint32 `cbor:"kind"`

	// State is the new state value for state-change kinds.
	State uint32 `cbor:"state,omitempty"`

	// FlushVersion is the latched flush version for flush kinds.
	FlushVersion uint64 `cbor:"flush_version,omitempty"`
}

// MasterScene implements RendererEvent.
func (e SceneReferenceEvent) MasterScene() scene.SceneID { return e.Master }

func (SceneReferenceEvent) isRendererEvent() {}

// ResourceAvailabilityEvent reports which of a scene's resources
// became resident at the renderer.
type ResourceAvailabilityEvent struct {
	Scene           scene.SceneID   `cbor:"scene"`
	AvailableHashes []resource.Hash `cbor:"-"`

	// WireHashes is the serialized form of AvailableHashes. Populated
	// by Encode/Decode; callers use AvailableHashes.
	WireHashes [][]byte `cbor:"available_hashes"`
}

// MasterScene implements RendererEvent.
func (e ResourceAvailabilityEvent) MasterScene() scene.SceneID { return e.Scene }

func (ResourceAvailabilityEvent) isRendererEvent() {}

// EncodeRendererEvent serializes an event as its leading type tag
// followed by the CBOR body.
func EncodeRendererEvent(event RendererEvent) ([]byte, error) {
	var tag uint32
	var body any

	switch e := event.(type) {
	case SceneReferenceEvent:
		tag = eventTagSceneReference
		body = e
	case ResourceAvailabilityEvent:
		tag = eventTagResourceAvailability
		e.WireHashes = make([][]byte, len(e.AvailableHashes))
		for i, hash := range e.AvailableHashes {
			e.WireHashes[i] = append([]byte(nil), hash[:]...)
		}
		body = e
	default:
		return nil, fmt.Errorf("distribution: unknown renderer event type %T", event)
	}

	encoded, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("distribution: encoding renderer event: %w", err)
	}

	data := make([]byte, eventTagSize, eventTagSize+len(encoded))
	binary.LittleEndian.PutUint32(data, tag)
	return append(data, encoded...), nil
}

// DecodeRendererEvent parses a tag-prefixed renderer event payload.
// Unknown tags and undersized payloads are errors; the caller logs
// and drops them without affecting other traffic.
func DecodeRendererEvent(data []byte) (RendererEvent, error) {
	if len(data) < eventTagSize {
		return nil, fmt.Errorf("distribution: renderer event of %d bytes is shorter than its tag", len(data))
	}
	tag := binary.LittleEndian.Uint32(data)
	body := data[eventTagSize:]

	switch tag {
	case eventTagSceneReference:
		var event SceneReferenceEvent
		if err := codec.Unmarshal(body, &event); err != nil {
			return nil, fmt.Errorf("distribution: decoding scene reference event: %w", err)
		}
		return event, nil

	case eventTagResourceAvailability:
		var event ResourceAvailabilityEvent
		if err := codec.Unmarshal(body, &event); err != nil {
			return nil, fmt.Errorf("distribution: decoding resource availability event: %w", err)
		}
		event.AvailableHashes = make([]resource.Hash, 0, len(event.WireHashes))
		for _, raw := range event.WireHashes {
			if len(raw) != 32 {
				return nil, fmt.Errorf("distribution: resource availability hash is %d bytes, want 32", len(raw))
			}
			var hash resource.Hash
			copy(hash[:], raw)
			event.AvailableHashes = append(event.AvailableHashes, hash)
		}
		event.WireHashes = nil
		return event, nil

	default:
		return nil, fmt.Errorf("distribution: unknown renderer event tag %d", tag)
	}
}
