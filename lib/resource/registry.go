// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"io"
	"log/slog"
	"sync"
)

// FileHandle identifies a registered resource archive. Handles are
// assigned sequentially and never reused within one registry.
type FileHandle uint64

// FileRegistry maps registered resource archives to their tables of
// contents and loads resources from them on demand into a Storage.
//
// Load failures are soft: a missing entry, short read, or decode
// error produces an empty result and a log entry, never a fault
// crossing the package boundary.
type FileRegistry struct {
	storage *Storage
	logger  *slog.Logger

	mu    sync.Mutex
	files map[FileHandle]*registeredFile
	next  FileHandle
}

type registeredFile struct {
	reader io.ReadSeeker
	toc    TableOfContents
}

// NewFileRegistry creates a registry loading into storage. A nil
// logger defaults to slog.Default().
func NewFileRegistry(storage *Storage, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRegistry{
		storage: storage,
		logger:  logger,
		files:   make(map[FileHandle]*registeredFile),
	}
}

// RegisterFile assigns a handle to an archive stream, records its
// table of contents, and pre-registers every entry's metadata in the
// store so hash usages can attach before any bytes are loaded.
func (fr *FileRegistry) RegisterFile(reader io.ReadSeeker, toc TableOfContents) FileHandle {
	for hash, entry := range toc.Entries {
		fr.storage.StoreResourceInfo(hash, entry.Info())
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.next++
	handle := fr.next
	fr.files[handle] = &registeredFile{reader: reader, toc: toc}
	return handle
}

// UnregisterFile removes an archive. Entries already loaded or
// referenced stay in the store; metadata pre-registered from this
// archive's table of contents and never referenced is swept out,
// unless another registered archive still carries the same hash.
func (fr *FileRegistry) UnregisterFile(handle FileHandle) {
	fr.mu.Lock()
	file, exists := fr.files[handle]
	delete(fr.files, handle)
	var orphaned []Hash
	if exists {
		for hash := range file.toc.Entries {
			if !fr.anyFileHasLocked(hash) {
				orphaned = append(orphaned, hash)
			}
		}
	}
	fr.mu.Unlock()

	for _, hash := range orphaned {
		fr.storage.DropUnusedInfo(hash)
	}
}

func (fr *FileRegistry) anyFileHasLocked(hash Hash) bool {
	for _, file := range fr.files {
		if _, exists := file.toc.Entries[hash]; exists {
			return true
		}
	}
	return false
}

// HasFile reports whether the handle refers to a registered archive.
func (fr *FileRegistry) HasFile(handle FileHandle) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, exists := fr.files[handle]
	return exists
}

// LoadResource locates the archive owning hash, reads the recorded
// byte range, and manages the decoded resource (deletion-allowed,
// since it can be reloaded). Returns an empty handle when the hash is
// not in any registered archive or the load fails.
func (fr *FileRegistry) LoadResource(hash Hash) *ManagedResource {
	encoded, ok := fr.readEntry(hash)
	if !ok {
		return &ManagedResource{}
	}

	res, err := UnmarshalResource(encoded)
	if err != nil {
		fr.logger.Error("failed to decode resource from archive",
			"hash", hash, "error", err)
		return &ManagedResource{}
	}
	if res.Hash() != hash {
		fr.logger.Error("archive entry content does not match its hash",
			"expected", hash, "actual", res.Hash())
		return &ManagedResource{}
	}

	return fr.storage.ManageResource(res, true)
}

// readEntry performs the seek-and-read under the registry lock; the
// registered readers are shared and their position is mutable state.
func (fr *FileRegistry) readEntry(hash Hash) ([]byte, bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	for handle, file := range fr.files {
		entry, exists := file.toc.Entries[hash]
		if !exists {
			continue
		}

		if _, err := file.reader.Seek(int64(entry.Offset), io.SeekStart); err != nil {
			fr.logger.Error("failed to seek in resource archive",
				"hash", hash, "file", handle, "offset", entry.Offset, "error", err)
			return nil, false
		}

		encoded := make([]byte, entry.Size)
		if _, err := io.ReadFull(file.reader, encoded); err != nil {
			fr.logger.Error("short read from resource archive",
				"hash", hash, "file", handle, "offset", entry.Offset,
				"size", entry.Size, "error", err)
			return nil, false
		}
		return encoded, true
	}
	return nil, false
}

// ResolveResources materializes a batch of hashes: resident resources
// come straight from the store, the rest are loaded from registered
// archives. The operation continues past individual failures and
// returns the aggregate set of unresolved hashes alongside the
// handles it did obtain.
func (fr *FileRegistry) ResolveResources(hashes []Hash) ([]*ManagedResource, []Hash) {
	resolved := make([]*ManagedResource, 0, len(hashes))
	var failed []Hash

	for _, hash := range hashes {
		handle := fr.storage.GetResource(hash)
		if !handle.IsValid() {
			handle = fr.LoadResource(hash)
		}
		if handle.IsValid() {
			resolved = append(resolved, handle)
		} else {
			failed = append(failed, hash)
		}
	}

	if len(failed) > 0 {
		fr.logger.Error("failed to resolve resources", "count", len(failed), "failed", failed)
	}
	return resolved, failed
}

// ForceLoadFile eagerly materializes every entry of the archive that
// is referenced anywhere (handle or hash usage) and pins it against
// store-side payload eviction, because the backing file may be
// removed after this call. Unreferenced entries are skipped: nothing
// holds them alive, so loading them would only be discarded again.
func (fr *FileRegistry) ForceLoadFile(handle FileHandle) {
	fr.mu.Lock()
	file, exists := fr.files[handle]
	fr.mu.Unlock()
	if !exists {
		fr.logger.Warn("cannot force-load unknown resource file", "file", handle)
		return
	}

	for hash := range file.toc.Entries {
		if !fr.storage.InUseAnywhereElse(hash) {
			continue
		}

		loaded := fr.storage.GetResource(hash)
		if !loaded.IsValid() {
			loaded = fr.LoadResource(hash)
			if !loaded.IsValid() {
				continue
			}
		}
		// Pin before dropping the materialization handle, otherwise
		// the release itself could evict the payload again.
		fr.storage.MarkDeletionDisallowed(hash)
		loaded.Release()
	}
}
