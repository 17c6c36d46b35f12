// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package scene defines the identifier and value types shared between
// the scene distribution coordinator, the wire codec, and transport
// implementations: scene and participant identities, publication
// modes, feature levels, and the SceneUpdate batch that is the atomic
// unit of exchange between producers and renderers.
//
// The scene graph's geometric content itself (renderables, data
// layouts) is out of scope here — scene mutations travel as opaque
// SceneAction records that only the producing and consuming ends
// interpret.
package scene
