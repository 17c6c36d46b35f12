// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"bytes"
	"testing"
)

// buildArchive serializes the given resources and registers the
// resulting stream, returning the registry, its store, and the handle.
func buildArchive(t *testing.T, resources ...*Resource) (*FileRegistry, *Storage, FileHandle) {
	t.Helper()

	builder := NewArchiveBuilder()
	for _, res := range resources {
		if err := builder.AddResource(res); err != nil {
			t.Fatalf("AddResource: %v", err)
		}
	}
	var archive bytes.Buffer
	toc, err := builder.Flush(&archive)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	storage := NewStorage(nil)
	registry := NewFileRegistry(storage, nil)
	handle := registry.RegisterFile(bytes.NewReader(archive.Bytes()), toc)
	return registry, storage, handle
}

func TestTOCRoundTrip(t *testing.T) {
	toc := NewTableOfContents()
	var h1, h2 Hash
	h1[0], h2[0] = 1, 2
	toc.Entries[h1] = TOCEntry{Type: TypeTexture2D, Offset: 0, Size: 100, DecompressedSize: 4096, CompressedSize: 90}
	toc.Entries[h2] = TOCEntry{Type: TypeEffect, Offset: 100, Size: 50, DecompressedSize: 50}

	var buf bytes.Buffer
	if err := WriteTOC(&buf, toc); err != nil {
		t.Fatalf("WriteTOC: %v", err)
	}
	restored, err := ReadTOC(&buf)
	if err != nil {
		t.Fatalf("ReadTOC: %v", err)
	}
	if len(restored.Entries) != 2 {
		t.Fatalf("restored %d entries, want 2", len(restored.Entries))
	}
	if restored.Entries[h1] != toc.Entries[h1] || restored.Entries[h2] != toc.Entries[h2] {
		t.Fatalf("entries corrupted in round trip: %+v", restored.Entries)
	}
}

func TestRegistryLoadResource(t *testing.T) {
	raw := newTestResource(t, "raw", 512)
	compressed := newTestResource(t, "compressed", 8192)
	if err := compressed.Compress(LevelOffline); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	registry, storage, _ := buildArchive(t, raw, compressed)

	loaded := registry.LoadResource(raw.Hash())
	if !loaded.IsValid() {
		t.Fatalf("failed to load raw resource")
	}
	if !bytes.Equal(loaded.Resource().Data(), raw.Data()) {
		t.Fatalf("raw payload corrupted through the archive")
	}

	loadedCompressed := registry.LoadResource(compressed.Hash())
	if !loadedCompressed.IsValid() {
		t.Fatalf("failed to load compressed resource")
	}
	// The payload travels compressed and stays compressed until asked.
	if loadedCompressed.Resource().IsDataAvailable() {
		t.Fatalf("compressed archive entry arrived decompressed")
	}
	if err := loadedCompressed.Resource().Decompress(); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(loadedCompressed.Resource().Data(), compressed.Data()) {
		t.Fatalf("compressed payload corrupted through the archive")
	}

	// Loads register in the store: a second request is served from
	// memory under the same entry.
	again := storage.GetResource(raw.Hash())
	if !again.IsValid() || again.Resource() != loaded.Resource() {
		t.Fatalf("loaded resource not deduplicated in the store")
	}

	again.Release()
	loaded.Release()
	loadedCompressed.Release()
}

func TestRegistryLoadUnknownHash(t *testing.T) {
	registry, _, _ := buildArchive(t, newTestResource(t, "only", 256))

	var unknown Hash
	unknown[0] = 0xff
	if handle := registry.LoadResource(unknown); handle.IsValid() {
		t.Fatalf("loaded a hash no archive contains")
	}
}

func TestRegistryLoadFailureIsSoft(t *testing.T) {
	res := newTestResource(t, "victim", 512)

	builder := NewArchiveBuilder()
	if err := builder.AddResource(res); err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	var archive bytes.Buffer
	toc, err := builder.Flush(&archive)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Truncate the stream so the recorded range cannot be read.
	truncated := archive.Bytes()[:archive.Len()/2]
	storage := NewStorage(nil)
	registry := NewFileRegistry(storage, nil)
	registry.RegisterFile(bytes.NewReader(truncated), toc)

	if handle := registry.LoadResource(res.Hash()); handle.IsValid() {
		t.Fatalf("load from truncated archive succeeded")
	}
	// The registry and store remain usable.
	if storage.GetResource(res.Hash()).IsValid() {
		t.Fatalf("failed load left a resident entry behind")
	}
}

func TestResolveResourcesContinuesPastFailures(t *testing.T) {
	archived := newTestResource(t, "archived", 512)
	registry, storage, _ := buildArchive(t, archived)

	resident := newTestResource(t, "resident", 256)
	managed := storage.ManageResource(resident, false)
	defer managed.Release()

	var missing Hash
	missing[0] = 0xee

	resolved, failed := registry.ResolveResources([]Hash{resident.Hash(), missing, archived.Hash()})
	if len(resolved) != 2 {
		t.Fatalf("resolved %d resources, want 2", len(resolved))
	}
	if len(failed) != 1 || failed[0] != missing {
		t.Fatalf("failed = %v, want [%s]", failed, missing)
	}
	for _, handle := range resolved {
		handle.Release()
	}
}

func TestRegistryUnregisterFile(t *testing.T) {
	res := newTestResource(t, "gone", 512)
	registry, _, handle := buildArchive(t, res)

	if !registry.HasFile(handle) {
		t.Fatalf("registered file not found")
	}
	registry.UnregisterFile(handle)
	if registry.HasFile(handle) {
		t.Fatalf("file still present after unregister")
	}
	if loaded := registry.LoadResource(res.Hash()); loaded.IsValid() {
		t.Fatalf("loaded from an unregistered archive")
	}
}

func TestUnregisterFileSweepsUnreferencedInfo(t *testing.T) {
	referenced := newTestResource(t, "referenced", 512)
	untouched := newTestResource(t, "untouched", 256)
	registry, storage, handle := buildArchive(t, referenced, untouched)

	usage := storage.GetHashUsage(referenced.Hash())
	registry.UnregisterFile(handle)

	// The referenced entry survives the sweep; the one nothing ever
	// touched must not linger in the store with its archive gone.
	if !storage.KnowsResource(referenced.Hash()) {
		t.Fatalf("referenced entry swept on unregister")
	}
	if storage.KnowsResource(untouched.Hash()) {
		t.Fatalf("unreferenced metadata entry survived its archive")
	}

	usage.Release()
	if storage.KnowsResource(referenced.Hash()) {
		t.Fatalf("entry not evicted after its last reference dropped")
	}
}

func TestUnregisterFileKeepsInfoBackedElsewhere(t *testing.T) {
	shared := newTestResource(t, "shared", 512)
	registry, storage, first := buildArchive(t, shared)

	builder := NewArchiveBuilder()
	if err := builder.AddResource(shared); err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	var second bytes.Buffer
	toc, err := builder.Flush(&second)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	registry.RegisterFile(bytes.NewReader(second.Bytes()), toc)

	registry.UnregisterFile(first)
	if !storage.KnowsResource(shared.Hash()) {
		t.Fatalf("entry swept while another archive still carries it")
	}
	if loaded := registry.LoadResource(shared.Hash()); !loaded.IsValid() {
		t.Fatalf("failed to load from the remaining archive")
	}
}

func TestForceLoadFileMaterializesReferencedEntries(t *testing.T) {
	referenced := newTestResource(t, "referenced", 512)
	unreferenced := newTestResource(t, "unreferenced", 256)
	registry, storage, handle := buildArchive(t, referenced, unreferenced)

	usage := storage.GetHashUsage(referenced.Hash())
	defer usage.Release()

	registry.ForceLoadFile(handle)
	registry.UnregisterFile(handle)

	// The referenced entry survives the file: payload resident and
	// pinned against eviction.
	loaded := storage.GetResource(referenced.Hash())
	if !loaded.IsValid() {
		t.Fatalf("referenced entry not materialized by force load")
	}
	if !bytes.Equal(loaded.Resource().Data(), referenced.Data()) {
		t.Fatalf("force-loaded payload corrupted")
	}
	loaded.Release()
	if !storage.GetResource(referenced.Hash()).IsValid() {
		t.Fatalf("force-loaded payload evicted after handle release")
	}

	// Nothing referenced the second entry, so it was skipped.
	if storage.GetResource(unreferenced.Hash()).IsValid() {
		t.Fatalf("unreferenced entry materialized by force load")
	}
}
