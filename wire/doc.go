// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the scene-update wire codec: serialization
// of a scene.Update into transport frames, and an incremental
// reassembly state machine for the receiving side.
//
// A logical update becomes an ordered sequence of blocks — the action
// batch, one block per embedded resource, and a terminating flush
// block — each framed as a one-byte type tag and a little-endian
// length. The block stream is cut into physical frames no larger than
// the negotiated frame size; every frame starts with the sender's
// feature level so a receiver detects protocol mismatch on the first
// bytes. Blocks may span frame boundaries, which is why reassembly is
// stateful per source scene.
package wire
