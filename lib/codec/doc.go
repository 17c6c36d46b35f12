// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every
// Scenewire component that serializes data: resource table-of-contents
// persistence, wire-codec block payloads, renderer event bodies, and
// transport envelopes.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so that
// the same logical value always produces identical bytes. This
// matters for resource content hashing, where the hash input includes
// a CBOR-encoded metadata header: two resources with equal type,
// metadata, and payload must hash identically on every platform.
package codec
