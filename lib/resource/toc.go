// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"
	"io"

	"github.com/scenewire/scenewire/lib/codec"
)

// TOCEntry locates one serialized resource inside an archive's byte
// stream and carries the metadata needed to pre-register it in the
// store without loading the payload.
type TOCEntry struct {
	Type             Type
	Offset           uint64
	Size             uint32
	DecompressedSize uint32
	CompressedSize   uint32
}

// TableOfContents maps content hashes to their location within one
// resource archive. The registry consumes it read-only.
type TableOfContents struct {
	Entries map[Hash]TOCEntry
}

// NewTableOfContents creates an empty table.
func NewTableOfContents() TableOfContents {
	return TableOfContents{Entries: make(map[Hash]TOCEntry)}
}

// Info returns the store metadata for an entry.
func (e TOCEntry) Info() Info {
	return Info{
		Type:             e.Type,
		DecompressedSize: e.DecompressedSize,
		CompressedSize:   e.CompressedSize,
	}
}

// tocDiskEntry is the persisted form of one table entry.
type tocDiskEntry struct {
	Hash             []byte `cbor:"hash"`
	Type             Type   `cbor:"type"`
	Offset           uint64 `cbor:"offset"`
	Size             uint32 `cbor:"size"`
	DecompressedSize uint32 `cbor:"decompressed_size"`
	CompressedSize   uint32 `cbor:"compressed_size,omitempty"`
}

type tocDisk struct {
	Entries []tocDiskEntry `cbor:"entries"`
}

// WriteTOC persists the table of contents as a single CBOR value.
func WriteTOC(w io.Writer, toc TableOfContents) error {
	disk := tocDisk{Entries: make([]tocDiskEntry, 0, len(toc.Entries))}
	for hash, entry := range toc.Entries {
		disk.Entries = append(disk.Entries, tocDiskEntry{
			Hash:             append([]byte(nil), hash[:]...),
			Type:             entry.Type,
			Offset:           entry.Offset,
			Size:             entry.Size,
			DecompressedSize: entry.DecompressedSize,
			CompressedSize:   entry.CompressedSize,
		})
	}
	if err := codec.NewEncoder(w).Encode(disk); err != nil {
		return fmt.Errorf("writing table of contents: %w", err)
	}
	return nil
}

// ReadTOC parses a table of contents written by WriteTOC.
func ReadTOC(r io.Reader) (TableOfContents, error) {
	var disk tocDisk
	if err := codec.NewDecoder(r).Decode(&disk); err != nil {
		return TableOfContents{}, fmt.Errorf("reading table of contents: %w", err)
	}

	toc := NewTableOfContents()
	for _, entry := range disk.Entries {
		if len(entry.Hash) != 32 {
			return TableOfContents{}, fmt.Errorf("table of contents hash is %d bytes, want 32", len(entry.Hash))
		}
		var hash Hash
		copy(hash[:], entry.Hash)
		toc.Entries[hash] = TOCEntry{
			Type:             entry.Type,
			Offset:           entry.Offset,
			Size:             entry.Size,
			DecompressedSize: entry.DecompressedSize,
			CompressedSize:   entry.CompressedSize,
		}
	}
	return toc, nil
}

// ArchiveBuilder accumulates serialized resources and produces the
// archive byte stream plus its table of contents. Resources are
// written in the order added; the builder buffers everything until
// Flush.
type ArchiveBuilder struct {
	toc    TableOfContents
	chunks [][]byte
	offset uint64
}

// NewArchiveBuilder creates a builder for a new archive.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{toc: NewTableOfContents()}
}

// AddResource serializes the resource and appends it to the archive.
// Adding a second resource with the same content hash is a no-op —
// archives are deduplicated by construction.
func (b *ArchiveBuilder) AddResource(res *Resource) error {
	hash := res.Hash()
	if !hash.IsValid() {
		return fmt.Errorf("cannot archive resource %q with no content", res.Name())
	}
	if _, exists := b.toc.Entries[hash]; exists {
		return nil
	}

	encoded, err := MarshalResource(res)
	if err != nil {
		return fmt.Errorf("archiving resource: %w", err)
	}

	b.toc.Entries[hash] = TOCEntry{
		Type:             res.Type(),
		Offset:           b.offset,
		Size:             uint32(len(encoded)),
		DecompressedSize: res.DecompressedSize(),
		CompressedSize:   res.CompressedSize(),
	}
	b.chunks = append(b.chunks, encoded)
	b.offset += uint64(len(encoded))
	return nil
}

// Len returns the number of archived resources.
func (b *ArchiveBuilder) Len() int {
	return len(b.chunks)
}

// Flush writes the archive stream to w and returns its table of
// contents. The builder is reset afterwards.
func (b *ArchiveBuilder) Flush(w io.Writer) (TableOfContents, error) {
	if len(b.chunks) == 0 {
		return TableOfContents{}, fmt.Errorf("cannot flush empty archive")
	}
	for _, chunk := range b.chunks {
		if _, err := w.Write(chunk); err != nil {
			return TableOfContents{}, fmt.Errorf("writing archive: %w", err)
		}
	}
	toc := b.toc
	b.toc = NewTableOfContents()
	b.chunks = nil
	b.offset = 0
	return toc, nil
}
