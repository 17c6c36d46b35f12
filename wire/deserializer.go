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

// ResultKind classifies the outcome of one ProcessData call.
type ResultKind uint8

const (
	// ResultEmpty means the frame was consumed but no complete update
	// is available yet.
	ResultEmpty ResultKind = iota

	// ResultFailed means the frame was malformed relative to declared
	// lengths or feature level. The reassembly state is unspecified
	// afterwards; the caller should treat the source as
	// desynchronized and discard this deserializer.
	ResultFailed

	// ResultHasData means a complete update batch is available.
	ResultHasData
)

// Result carries the outcome of ProcessData. Actions, Resources, and
// Flush are populated only for ResultHasData.
type Result struct {
	Kind      ResultKind
	Actions   []scene.Action
	Resources []*resource.Resource
	Flush     scene.FlushInfo
	Err       error
}

// StreamDeserializer reassembles scene updates from a stream of
// transport frames. A logical update may span several frames and one
// frame may complete an update and begin the next, so the
// deserializer keeps the unconsumed tail buffered between calls.
//
// One instance serves exactly one (scene, provider) stream and must
// be recreated whenever the scene is re-initialized; stale state from
// before a re-initialization would misparse the fresh stream.
//
// Not safe for concurrent use. The coordinator drives each instance
// from its own lock.
type StreamDeserializer struct {
	featureLevel scene.FeatureLevel
	buffer       []byte
	actions      []scene.Action
	resources    []*resource.Resource
	failed       bool
}

// NewStreamDeserializer creates a fresh reassembly state expecting
// frames at the given feature level.
func NewStreamDeserializer(featureLevel scene.FeatureLevel) *StreamDeserializer {
	return &StreamDeserializer{featureLevel: featureLevel}
}

// ProcessData consumes one transport frame. Once a call has returned
// ResultFailed, every subsequent call fails too: a desynchronized
// stream cannot be resynchronized without re-initializing the scene.
func (d *StreamDeserializer) ProcessData(frame []byte) Result {
	if d.failed {
		return Result{Kind: ResultFailed, Err: fmt.Errorf("wire: deserializer already desynchronized")}
	}

	if len(frame) < frameHeaderSize {
		return d.fail(fmt.Errorf("wire: frame of %d bytes is shorter than its header", len(frame)))
	}
	level := scene.FeatureLevel(binary.LittleEndian.Uint32(frame))
	if level != d.featureLevel {
		return d.fail(fmt.Errorf("wire: frame feature level %d, expected %d", level, d.featureLevel))
	}

	d.buffer = append(d.buffer, frame[frameHeaderSize:]...)

	for len(d.buffer) >= blockHeaderSize {
		blockType := d.buffer[0]
		length := binary.LittleEndian.Uint32(d.buffer[1:])
		if length > MaxBlockSize {
			return d.fail(fmt.Errorf("wire: block declares %d bytes, limit is %d", length, MaxBlockSize))
		}
		if len(d.buffer) < blockHeaderSize+int(length) {
			break
		}

		payload := d.buffer[blockHeaderSize : blockHeaderSize+int(length)]
		remainder := d.buffer[blockHeaderSize+int(length):]

		switch blockType {
		case blockActions:
			var actions []scene.Action
			if err := codec.Unmarshal(payload, &actions); err != nil {
				return d.fail(fmt.Errorf("wire: decoding action block: %w", err))
			}
			d.actions = append(d.actions, actions...)

		case blockResource:
			res, err := resource.UnmarshalResource(payload)
			if err != nil {
				return d.fail(fmt.Errorf("wire: decoding resource block: %w", err))
			}
			d.resources = append(d.resources, res)

		case blockFlush:
			var flush scene.FlushInfo
			if err := codec.Unmarshal(payload, &flush); err != nil {
				return d.fail(fmt.Errorf("wire: decoding flush block: %w", err))
			}
			// The flush closes the batch. Keep the remainder — it is
			// the beginning of the next update.
			d.buffer = append([]byte(nil), remainder...)
			result := Result{
				Kind:      ResultHasData,
				Actions:   d.actions,
				Resources: d.resources,
				Flush:     flush,
			}
			d.actions = nil
			d.resources = nil
			return result

		default:
			return d.fail(fmt.Errorf("wire: unknown block type %d", blockType))
		}

		d.buffer = d.buffer[blockHeaderSize+int(length):]
	}

	return Result{Kind: ResultEmpty}
}

func (d *StreamDeserializer) fail(err error) Result {
	d.failed = true
	d.buffer = nil
	d.actions = nil
	d.resources = nil
	return Result{Kind: ResultFailed, Err: err}
}
