// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Level selects the compression effort for a resource payload. Levels
// are ordered: None < Realtime < Offline. Offline produces equal or
// smaller output than Realtime; requesting a level at or below the one
// already applied is a no-op.
type Level uint8

const (
	// LevelNone means no compression. Compress(LevelNone) never
	// produces a compressed form.
	LevelNone Level = 0

	// LevelRealtime is LZ4 block compression — cheap enough to run on
	// the sending path when a scene update fans out to remote
	// participants.
	LevelRealtime Level = 1

	// LevelOffline is zstd — a better ratio at higher CPU cost, meant
	// for ahead-of-time packing of resource archives.
	LevelOffline Level = 2
)

// String returns the human-readable level name.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRealtime:
		return "realtime"
	case LevelOffline:
		return "offline"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(l))
	}
}

// CompressionThreshold is the payload size below which compression is
// skipped entirely. Small payloads gain nothing from compression and
// the per-resource framing overhead dominates.
const CompressionThreshold = 1000

// errIncompressible is returned by the level compressors when the
// output would not be smaller than the input. The caller leaves the
// compressed form absent and ships the raw payload.
var errIncompressible = errors.New("data is incompressible")

// zstdEncoder and zstdDecoder are shared across all resources. Both
// are safe for concurrent use; EncodeAll/DecodeAll do not retain the
// buffers passed to them.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("resource: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("resource: zstd decoder initialization failed: " + err.Error())
	}
}

// compressAtLevel compresses data with the algorithm for the given
// level. Returns errIncompressible when the output would not shrink.
func compressAtLevel(data []byte, level Level) ([]byte, error) {
	switch level {
	case LevelRealtime:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 when it judges the input
		// incompressible.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case LevelOffline:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("cannot compress at level %s", level)
	}
}

// decompressAtLevel reverses compressAtLevel. The uncompressedSize
// recorded alongside the compressed form must match the original
// length exactly; a mismatch is reported as an error, never as
// truncated or padded output.
func decompressAtLevel(compressed []byte, level Level, uncompressedSize int) ([]byte, error) {
	switch level {
	case LevelRealtime:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case LevelOffline:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("cannot decompress level %s", level)
	}
}
