// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import "fmt"

// PublicationMode controls how far a published scene is visible.
type PublicationMode uint8

const (
	// LocalOnly scenes are announced only to the renderer attached to
	// the owning coordinator, never over the network.
	LocalOnly PublicationMode = iota

	// LocalAndRemote scenes are additionally broadcast to all
	// connected participants.
	LocalAndRemote
)

// String returns the human-readable mode name.
func (m PublicationMode) String() string {
	switch m {
	case LocalOnly:
		return "local-only"
	case LocalAndRemote:
		return "local-and-remote"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Info describes a published scene. It is created on publish,
// broadcast in availability announcements, and destroyed on
// unpublish. The publication mode is fixed for the lifetime of a
// publication.
type Info struct {
	ID SceneID `cbor:"id"`

	// Name is a human-readable label carried for logging only; it
	// plays no role in identity.
	Name string `cbor:"name,omitempty"`

	Mode PublicationMode `cbor:"mode"`
}
