// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SceneID identifies a scene across all participants. IDs are chosen
// by the producing participant and must be unique within the network
// session; the coordinator treats collisions between providers as a
// protocol anomaly (last announcement wins).
type SceneID uint64

// String returns the decimal representation used in logs.
func (id SceneID) String() string {
	return fmt.Sprintf("%d", id)
}

// ParticipantID identifies a participant (provider, renderer, or
// both) on the network. The zero value is invalid.
type ParticipantID [16]byte

// NewParticipantID generates a random participant identity.
func NewParticipantID() ParticipantID {
	var id ParticipantID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic("scene: reading random participant id: " + err.Error())
	}
	return id
}

// IsValid reports whether the id is non-zero.
func (id ParticipantID) IsValid() bool {
	return id != ParticipantID{}
}

// String returns the hex representation used in logs and handshakes.
func (id ParticipantID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseParticipantID parses the hex form produced by String.
func ParseParticipantID(hexString string) (ParticipantID, error) {
	var id ParticipantID
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return id, fmt.Errorf("parsing participant id: %w", err)
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("participant id is %d bytes, want %d", len(decoded), len(id))
	}
	copy(id[:], decoded)
	return id, nil
}

// FeatureLevel is the protocol capability version. A scene announced
// at one feature level is only accepted by coordinators configured
// with the same level.
type FeatureLevel uint32

// FeatureLevel01 is the initial protocol level.
const FeatureLevel01 FeatureLevel = 1
