// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/scenewire/scenewire/lib/codec"
	"github.com/scenewire/scenewire/lib/resource"
	"github.com/scenewire/scenewire/lib/scene"
)

// Block type tags. Protocol constants — changing them breaks wire
// compatibility.
const (
	blockActions  uint8 = 1
	blockResource uint8 = 2
	blockFlush    uint8 = 3
)

// frameHeaderSize is the per-frame prefix: the sender's feature level
// as a little-endian uint32.
const frameHeaderSize = 4

// blockHeaderSize is the per-block prefix: type tag byte plus
// little-endian uint32 payload length.
const blockHeaderSize = 5

// DefaultMaxFrameSize bounds physical frames when the caller has no
// transport-specific preference.
const DefaultMaxFrameSize = 64 * 1024

// MaxBlockSize is the sanity bound on declared block lengths. A block
// claiming more is treated as stream corruption rather than an
// instruction to buffer gigabytes.
const MaxBlockSize = 256 * 1024 * 1024

// SerializeUpdate encodes a scene update into transport frames of at
// most maxFrameSize bytes. Embedded resources are compressed at
// realtime level before emission unless a compressed form is already
// held — Compress is level-idempotent, so fanning the same update out
// to several destinations compresses each resource at most once.
func SerializeUpdate(update *scene.Update, featureLevel scene.FeatureLevel, maxFrameSize int) ([][]byte, error) {
	if maxFrameSize <= frameHeaderSize {
		return nil, fmt.Errorf("wire: frame size %d leaves no payload room", maxFrameSize)
	}

	var stream []byte

	if len(update.Actions) > 0 {
		encoded, err := codec.Marshal(update.Actions)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding actions: %w", err)
		}
		stream = appendBlock(stream, blockActions, encoded)
	}

	for _, res := range update.Resources {
		if err := res.Compress(resource.LevelRealtime); err != nil {
			return nil, fmt.Errorf("wire: compressing resource for send: %w", err)
		}
		encoded, err := resource.MarshalResource(res)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding resource: %w", err)
		}
		stream = appendBlock(stream, blockResource, encoded)
	}

	encodedFlush, err := codec.Marshal(update.Flush)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding flush info: %w", err)
	}
	stream = appendBlock(stream, blockFlush, encodedFlush)

	// Cut the block stream into frames, each carrying the feature
	// level header.
	payloadRoom := maxFrameSize - frameHeaderSize
	frames := make([][]byte, 0, (len(stream)+payloadRoom-1)/payloadRoom)
	for offset := 0; offset < len(stream); offset += payloadRoom {
		end := min(offset+payloadRoom, len(stream))
		frame := make([]byte, frameHeaderSize+end-offset)
		binary.LittleEndian.PutUint32(frame, uint32(featureLevel))
		copy(frame[frameHeaderSize:], stream[offset:end])
		frames = append(frames, frame)
	}
	return frames, nil
}

func appendBlock(stream []byte, blockType uint8, payload []byte) []byte {
	stream = append(stream, blockType)
	stream = binary.LittleEndian.AppendUint32(stream, uint32(len(payload)))
	return append(stream, payload...)
}
