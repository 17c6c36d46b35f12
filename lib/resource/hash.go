// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/scenewire/scenewire/lib/codec"
)

// Hash is a 32-byte BLAKE3 content digest. It is the storage key and
// identity of a resource. The zero value is invalid and never
// produced for actual content.
type Hash [32]byte

// IsValid reports whether the hash is non-zero.
func (h Hash) IsValid() bool {
	return h != Hash{}
}

// String returns the hex encoding used in logs and diagnostics.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing resource hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("resource hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// contentDomainKey is the BLAKE3 key for resource content hashing.
// Domain separation keeps resource hashes distinct from any other
// hash domain that might share bytes with a payload. The value is the
// ASCII domain name zero-padded to 32 bytes; changing it invalidates
// every persisted resource hash.
var contentDomainKey = [32]byte{
	's', 'c', 'e', 'n', 'e', 'w', 'i', 'r', 'e', '.',
	'r', 'e', 's', 'o', 'u', 'r', 'c', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// hashHeader is the metadata portion of the hash input. It is CBOR
// encoded (deterministically) ahead of the payload bytes so that type
// and metadata changes alter the hash even when payloads collide.
type hashHeader struct {
	Type     Type   `cbor:"type"`
	Metadata []byte `cbor:"metadata,omitempty"`
}

// ComputeHash computes the content hash over (type, metadata,
// decompressed payload). Resource names and cache flags are excluded:
// they are presentation and policy attributes, not identity.
func ComputeHash(typ Type, metadata []byte, payload []byte) Hash {
	header, err := codec.Marshal(hashHeader{Type: typ, Metadata: metadata})
	if err != nil {
		// Marshalling a fixed struct of scalars and bytes cannot fail.
		panic("resource: encoding hash header: " + err.Error())
	}

	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("resource: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(header)
	hasher.Write(payload)

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
