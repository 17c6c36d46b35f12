// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the content-addressed resource store
// that backs scene distribution: binary resources (geometry, textures,
// shader programs) identified by a content hash, with reference
// counting, lazy multi-level compression, and on-demand loading from
// persisted resource archives.
//
// Identity is content-based. A resource's [Hash] covers its type, its
// type-specific metadata, and its decompressed payload — never its
// name. Two resources with equal content share one store entry
// regardless of how they were created or named.
//
// A resource may hold its payload decompressed, compressed (tagged
// with the [Level] that produced it), or not at all — the last case
// covers entries known only from a resource archive's table of
// contents whose bytes have not been loaded yet. Liveness of such
// entries is tracked through [HashUsage] references, which keep the
// hash alive without forcing the payload resident.
package resource
