// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"

	"github.com/scenewire/scenewire/lib/codec"
)

// Envelope is the serialized form of a resource, used both for
// entries in persisted resource archives and for resources embedded
// in scene-update wire frames. The payload travels compressed when a
// compressed form is held, raw otherwise; Compression records which.
type Envelope struct {
	Type             Type      `cbor:"type"`
	Hash             []byte    `cbor:"hash"`
	CacheFlag        CacheFlag `cbor:"cache_flag,omitempty"`
	Name             string    `cbor:"name,omitempty"`
	Metadata         []byte    `cbor:"metadata,omitempty"`
	Compression      Level     `cbor:"compression"`
	UncompressedSize uint32    `cbor:"uncompressed_size"`
	Data             []byte    `cbor:"data"`
}

// MarshalResource encodes a resource as a CBOR envelope. The
// compressed form is preferred when available. Fails for resources
// holding no payload at all.
func MarshalResource(r *Resource) ([]byte, error) {
	hash := r.Hash()

	envelope := Envelope{
		Type:             r.Type(),
		Hash:             hash[:],
		CacheFlag:        r.CacheFlag(),
		Name:             r.Name(),
		Metadata:         r.Metadata(),
		UncompressedSize: r.DecompressedSize(),
	}

	if compressed, level := r.CompressedData(); compressed != nil {
		envelope.Compression = level
		envelope.Data = compressed
	} else if data := r.Data(); data != nil {
		envelope.Compression = LevelNone
		envelope.Data = data
	} else {
		return nil, fmt.Errorf("resource %s: no payload to serialize", hash)
	}

	encoded, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding resource %s: %w", hash, err)
	}
	return encoded, nil
}

// UnmarshalResource decodes a CBOR envelope back into a resource. The
// payload stays in whichever form it traveled; the receiver calls
// Decompress when it needs the bytes.
func UnmarshalResource(encoded []byte) (*Resource, error) {
	var envelope Envelope
	if err := codec.Unmarshal(encoded, &envelope); err != nil {
		return nil, fmt.Errorf("decoding resource envelope: %w", err)
	}

	if len(envelope.Hash) != 32 {
		return nil, fmt.Errorf("resource envelope hash is %d bytes, want 32", len(envelope.Hash))
	}
	var hash Hash
	copy(hash[:], envelope.Hash)

	if envelope.Compression != LevelNone && envelope.UncompressedSize == 0 {
		return nil, fmt.Errorf("resource envelope %s: compressed payload without uncompressed size", hash)
	}

	res := New(envelope.Type, envelope.CacheFlag, envelope.Name, envelope.Metadata)
	if envelope.Compression == LevelNone {
		res.SetDataWithHash(envelope.Data, hash)
	} else {
		res.SetCompressedData(envelope.Data, envelope.Compression, envelope.UncompressedSize, hash)
	}
	return res, nil
}
