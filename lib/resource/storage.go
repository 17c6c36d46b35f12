// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"log/slog"
	"sync"
)

// Info is the hash-indexed metadata the store keeps about a resource
// independent of payload residency. Metadata-only entries (registered
// from a table of contents before any bytes are loaded) consist of an
// Info and nothing else.
type Info struct {
	Type             Type
	DecompressedSize uint32
	CompressedSize   uint32
}

// entry is one store slot. The resource pointer is nil for
// metadata-only entries. handleCount tracks ManagedResource handles,
// usageCount tracks HashUsage references; the entry is evicted when
// both reach zero. deletionAllowed marks entries whose payload may be
// dropped while usages remain, because it can be reloaded from a
// registered resource file.
type entry struct {
	resource        *Resource
	info            Info
	handleCount     int
	usageCount      int
	deletionAllowed bool
}

// Storage is the content-addressed resource store. All map mutation
// is behind one mutex; per-resource compress/decompress runs outside
// it on the resources' own locks, so payload work is data-parallel.
type Storage struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[Hash]*entry
}

// NewStorage creates an empty store. A nil logger defaults to
// slog.Default().
func NewStorage(logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		logger:  logger,
		entries: make(map[Hash]*entry),
	}
}

// ManagedResource is a reference-counted handle to a store entry.
// Releasing the last handle (and the last hash usage) evicts the
// entry. The zero value is the empty handle.
type ManagedResource struct {
	storage  *Storage
	hash     Hash
	resource *Resource
	released bool
}

// IsValid reports whether the handle refers to a resident resource.
func (m *ManagedResource) IsValid() bool {
	return m != nil && m.resource != nil
}

// Resource returns the underlying resource. Nil for empty handles.
func (m *ManagedResource) Resource() *Resource {
	if m == nil {
		return nil
	}
	return m.resource
}

// Hash returns the content hash the handle refers to.
func (m *ManagedResource) Hash() Hash {
	if m == nil {
		return Hash{}
	}
	return m.hash
}

// Release drops the handle's reference. Releasing a handle twice is a
// caller bug and panics.
func (m *ManagedResource) Release() {
	if !m.IsValid() {
		return
	}
	if m.released {
		panic("resource: ManagedResource released twice")
	}
	m.released = true
	m.storage.releaseHandle(m.hash)
}

// HashUsage records that some scene object references a hash, keeping
// the store entry alive without requiring the payload to be resident.
type HashUsage struct {
	storage  *Storage
	hash     Hash
	released bool
}

// Hash returns the referenced content hash.
func (u *HashUsage) Hash() Hash {
	if u == nil {
		return Hash{}
	}
	return u.hash
}

// Release drops the usage reference. Releasing twice panics.
func (u *HashUsage) Release() {
	if u == nil {
		return
	}
	if u.released {
		panic("resource: HashUsage released twice")
	}
	u.released = true
	u.storage.releaseUsage(u.hash)
}

// ManageResource registers a resource under its content hash and
// returns a handle. If an entry with the same hash already holds a
// resident resource, the new object is discarded and the handle
// refers to the existing one (deduplication). deletionAllowed marks
// the payload droppable once no handles remain, appropriate for
// resources backed by a registered file.
func (s *Storage) ManageResource(res *Resource, deletionAllowed bool) *ManagedResource {
	hash := res.Hash()
	if !hash.IsValid() {
		s.logger.Warn("refusing to manage resource with invalid hash", "name", res.Name())
		return &ManagedResource{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		slot = &entry{deletionAllowed: deletionAllowed}
		s.entries[hash] = slot
	}
	if slot.resource == nil {
		slot.resource = res
		slot.info = Info{
			Type:             res.Type(),
			DecompressedSize: res.DecompressedSize(),
			CompressedSize:   res.CompressedSize(),
		}
		slot.deletionAllowed = deletionAllowed
	}
	slot.handleCount++

	return &ManagedResource{storage: s, hash: hash, resource: slot.resource}
}

// GetResource returns a handle to the resident resource for hash, or
// an empty handle if the hash is unknown or its payload is not
// resident. Never blocks on I/O.
func (s *Storage) GetResource(hash Hash) *ManagedResource {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists || slot.resource == nil {
		return &ManagedResource{}
	}
	slot.handleCount++
	return &ManagedResource{storage: s, hash: hash, resource: slot.resource}
}

// GetHashUsage returns a usage reference for hash, creating a
// metadata-only entry if the hash is not yet known.
func (s *Storage) GetHashUsage(hash Hash) *HashUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		slot = &entry{}
		s.entries[hash] = slot
	}
	slot.usageCount++
	return &HashUsage{storage: s, hash: hash}
}

// KnowsResource reports whether the hash has an entry, resident or
// metadata-only.
func (s *Storage) KnowsResource(hash Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[hash]
	return exists
}

// Resources returns handles to every resident resource. Each handle
// must be released by the caller.
func (s *Storage) Resources() []*ManagedResource {
	s.mu.Lock()
	defer s.mu.Unlock()

	var handles []*ManagedResource
	for hash, slot := range s.entries {
		if slot.resource == nil {
			continue
		}
		slot.handleCount++
		handles = append(handles, &ManagedResource{storage: s, hash: hash, resource: slot.resource})
	}
	return handles
}

// StoreResourceInfo pre-registers the metadata of a resource known
// from a table of contents. The entry carries no payload until the
// resource is loaded or managed.
func (s *Storage) StoreResourceInfo(hash Hash, info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		slot = &entry{deletionAllowed: true}
		s.entries[hash] = slot
	}
	if slot.resource == nil {
		slot.info = info
	}
}

// DropUnusedInfo removes a metadata-only entry nothing references.
// Entries pre-registered from a table of contents never pass through
// the reference-count eviction path, so the registry sweeps them here
// when their backing archive goes away. Referenced or resident
// entries are left alone.
func (s *Storage) DropUnusedInfo(hash Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		return
	}
	if slot.handleCount == 0 && slot.usageCount == 0 && slot.resource == nil {
		delete(s.entries, hash)
	}
}

// ResourceInfo returns the recorded metadata for hash.
func (s *Storage) ResourceInfo(hash Hash) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		return Info{}, false
	}
	return slot.info, true
}

// MarkDeletionDisallowed pins the entry's payload: it will no longer
// be dropped when handles reach zero. Used when a backing resource
// file is force-loaded because the file itself may go away.
func (s *Storage) MarkDeletionDisallowed(hash Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, exists := s.entries[hash]; exists {
		slot.deletionAllowed = false
	}
}

// InUseAnywhereElse reports whether the hash is referenced by any
// handle or usage, i.e. by anything beyond the registry that is
// asking. Drives eager materialization when a resource file is
// force-loaded.
func (s *Storage) InUseAnywhereElse(hash Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		return false
	}
	return slot.handleCount > 0 || slot.usageCount > 0
}

func (s *Storage) releaseHandle(hash Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		return
	}
	slot.handleCount--
	s.checkEvictionLocked(hash, slot)
}

func (s *Storage) releaseUsage(hash Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.entries[hash]
	if !exists {
		return
	}
	slot.usageCount--
	s.checkEvictionLocked(hash, slot)
}

// checkEvictionLocked applies the lifecycle rules after a reference
// drop. Holding the store mutex here makes eviction race-free against
// concurrent ManageResource calls for the same hash: either they see
// the entry before removal and revive it with a new handle, or they
// recreate it afterwards.
func (s *Storage) checkEvictionLocked(hash Hash, slot *entry) {
	if slot.handleCount == 0 && slot.usageCount == 0 {
		delete(s.entries, hash)
		return
	}
	// Usages remain but no handle holds the payload resident. A
	// deletion-allowed payload can be dropped — it is reloadable from
	// its backing file by hash.
	if slot.handleCount == 0 && slot.deletionAllowed && slot.resource != nil {
		slot.resource = nil
	}
}
