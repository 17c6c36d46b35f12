// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"
	"sync"
)

// Type identifies the kind of payload a resource carries. The value
// participates in the content hash, so two payload-identical resources
// of different types have different identities.
type Type uint32

const (
	TypeInvalid Type = iota
	TypeVertexArray
	TypeIndexArray
	TypeTexture2D
	TypeTexture3D
	TypeTextureCube
	TypeEffect
)

// String returns the type name used in logs.
func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeVertexArray:
		return "vertex-array"
	case TypeIndexArray:
		return "index-array"
	case TypeTexture2D:
		return "texture-2d"
	case TypeTexture3D:
		return "texture-3d"
	case TypeTextureCube:
		return "texture-cube"
	case TypeEffect:
		return "effect"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// CacheFlag is an opaque hint for renderer-side storage policy. It is
// carried with the resource but excluded from the content hash.
type CacheFlag uint32

// Resource is a binary resource with lazily computed content identity
// and lazily applied compression. A resource may hold its payload
// decompressed, compressed, both, or neither (metadata-only entries
// pre-registered from a table of contents).
//
// All payload state is guarded by one mutex per resource, so
// compress/decompress calls are data-parallel across distinct
// resources and safe (last writer wins) when racing on the same one.
// A reader never observes partially written bytes: byte slices are
// swapped in whole under the lock and never mutated afterwards.
type Resource struct {
	typ       Type
	cacheFlag CacheFlag
	name      string
	metadata  []byte

	mu               sync.Mutex
	data             []byte // decompressed payload, nil if not resident
	compressed       []byte // compressed payload, nil if not available
	compressedLevel  Level  // level that produced compressed, LevelNone otherwise
	uncompressedSize uint32 // original payload length, survives dropping data
	hash             Hash
	hashKnown        bool
}

// New creates an empty resource of the given type. The metadata bytes
// are the type-specific parameters (texture dimensions, vertex
// layout, effect source digest) that participate in content identity.
// The name is a debugging label and never affects the hash.
func New(typ Type, cacheFlag CacheFlag, name string, metadata []byte) *Resource {
	return &Resource{
		typ:       typ,
		cacheFlag: cacheFlag,
		name:      name,
		metadata:  metadata,
	}
}

// Type returns the resource type.
func (r *Resource) Type() Type { return r.typ }

// CacheFlag returns the renderer cache hint.
func (r *Resource) CacheFlag() CacheFlag { return r.cacheFlag }

// Name returns the debugging label.
func (r *Resource) Name() string { return r.name }

// Metadata returns the type-specific metadata bytes. Callers must not
// mutate the returned slice.
func (r *Resource) Metadata() []byte { return r.metadata }

// SetData replaces the decompressed payload. Any held compressed form
// is invalidated — it is recomputed fresh on the next Compress call,
// never patched. The content hash is recomputed lazily.
func (r *Resource) SetData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setDataLocked(data)
	r.hashKnown = false
}

// SetDataWithHash replaces the decompressed payload and records a
// pre-computed content hash (from a table of contents or a wire
// envelope) instead of hashing the payload again.
func (r *Resource) SetDataWithHash(data []byte, hash Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setDataLocked(data)
	r.hash = hash
	r.hashKnown = true
}

func (r *Resource) setDataLocked(data []byte) {
	r.data = data
	r.uncompressedSize = uint32(len(data))
	r.compressed = nil
	r.compressedLevel = LevelNone
}

// SetCompressedData installs a compressed payload received off the
// wire or read from an archive. The decompressed form becomes absent
// until Decompress is called. The hash must be the content hash of
// the decompressed payload, and uncompressedSize its exact length.
func (r *Resource) SetCompressedData(compressed []byte, level Level, uncompressedSize uint32, hash Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
	r.compressed = compressed
	r.compressedLevel = level
	r.uncompressedSize = uncompressedSize
	r.hash = hash
	r.hashKnown = true
}

// Hash returns the content hash, computing it from the payload on
// first use. A resource with no payload and no explicitly set hash
// has the invalid (zero) hash.
func (r *Resource) Hash() Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hashKnown {
		if r.data == nil {
			return Hash{}
		}
		r.hash = ComputeHash(r.typ, r.metadata, r.data)
		r.hashKnown = true
	}
	return r.hash
}

// Data returns the decompressed payload, or nil if it is not
// resident. Callers must not mutate the returned slice.
func (r *Resource) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// CompressedData returns the compressed payload and the level that
// produced it, or (nil, LevelNone) if unavailable.
func (r *Resource) CompressedData() ([]byte, Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compressed, r.compressedLevel
}

// IsDataAvailable reports whether the decompressed payload is resident.
func (r *Resource) IsDataAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data != nil
}

// IsCompressedAvailable reports whether a compressed form is held.
func (r *Resource) IsCompressedAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compressed != nil
}

// DecompressedSize returns the length of the decompressed payload,
// known even when only the compressed form is resident.
func (r *Resource) DecompressedSize() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uncompressedSize
}

// CompressedSize returns the length of the held compressed form, or
// zero if none.
func (r *Resource) CompressedSize() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(len(r.compressed))
}

// Compress produces a compressed form of the payload at the given
// level. It is idempotent: requesting a level at or below the one
// already applied keeps the existing bytes. Payloads below
// CompressionThreshold are never compressed, nor are resources whose
// decompressed payload is not resident. Incompressible payloads
// simply remain without a compressed form; that is not an error.
func (r *Resource) Compress(level Level) error {
	if level == LevelNone {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data == nil || len(r.data) < CompressionThreshold {
		return nil
	}
	if r.compressed != nil && r.compressedLevel >= level {
		return nil
	}

	// Compress outside the invariant checks but inside the lock:
	// payload state must not change while the compressor reads it.
	compressed, err := compressAtLevel(r.data, level)
	if err != nil {
		if err == errIncompressible {
			return nil
		}
		return fmt.Errorf("resource %s: %w", r.hashLabelLocked(), err)
	}

	r.compressed = compressed
	r.compressedLevel = level
	return nil
}

// Decompress reconstructs the decompressed payload from the held
// compressed form and the recorded original size. It is a no-op when
// the payload is already resident, and fails when neither form is
// present.
func (r *Resource) Decompress() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data != nil {
		return nil
	}
	if r.compressed == nil {
		return fmt.Errorf("resource %s: no data to decompress", r.hashLabelLocked())
	}

	data, err := decompressAtLevel(r.compressed, r.compressedLevel, int(r.uncompressedSize))
	if err != nil {
		return fmt.Errorf("resource %s: %w", r.hashLabelLocked(), err)
	}
	r.data = data
	return nil
}

// hashLabelLocked formats the hash for error messages without
// re-entering the lock. Falls back to the name for unhashed resources.
func (r *Resource) hashLabelLocked() string {
	if r.hashKnown {
		return r.hash.String()
	}
	if r.name != "" {
		return r.name
	}
	return "(unhashed)"
}
