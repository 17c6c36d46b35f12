// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"github.com/scenewire/scenewire/lib/scene"
)

// Transport is the message surface the coordinator sends through. It
// models reliable, ordered, point-to-point channels keyed by
// participant identity. Implementations must not block the caller on
// network I/O: every method is a fire-and-forget handoff (queue to a
// writer goroutine, or a direct in-process delivery). Delivery
// failures surface as participant disconnect notifications, not as
// return values.
type Transport interface {
	// SendScenesAvailable announces scenes to one participant, tagged
	// with the sender's feature level.
	SendScenesAvailable(to scene.ParticipantID, scenes []scene.Info, level scene.FeatureLevel)

	// BroadcastScenesAvailable announces scenes to every connected
	// participant.
	BroadcastScenesAvailable(scenes []scene.Info, level scene.FeatureLevel)

	// BroadcastScenesUnavailable withdraws scenes from every
	// connected participant.
	BroadcastScenesUnavailable(scenes []scene.Info)

	// SendInitializeScene tells a subscriber to (re-)initialize its
	// copy of the scene; the next update stream starts fresh.
	SendInitializeScene(to scene.ParticipantID, sceneID scene.SceneID)

	// SendSubscribeScene asks a provider for the scene's update stream.
	SendSubscribeScene(to scene.ParticipantID, sceneID scene.SceneID)

	// SendUnsubscribeScene cancels a subscription at the provider.
	SendUnsubscribeScene(to scene.ParticipantID, sceneID scene.SceneID)

	// SendSceneUpdateFrame delivers one wire-codec frame of a scene
	// update stream.
	SendSceneUpdateFrame(to scene.ParticipantID, sceneID scene.SceneID, frame []byte)

	// SendRendererEvent delivers an opaque renderer event payload
	// (tag-prefixed, see DecodeRendererEvent).
	SendRendererEvent(to scene.ParticipantID, sceneID scene.SceneID, data []byte)
}

// NetworkHandler is the coordinator's inbound surface. Transport
// implementations dispatch received messages and connection changes
// into it; calls may come from any goroutine.
type NetworkHandler interface {
	HandleScenesAvailable(scenes []scene.Info, provider scene.ParticipantID, level scene.FeatureLevel)
	HandleScenesUnavailable(scenes []scene.Info, provider scene.ParticipantID)
	HandleInitializeScene(sceneID scene.SceneID, provider scene.ParticipantID)
	HandleSceneUpdateFrame(sceneID scene.SceneID, frame []byte, provider scene.ParticipantID)
	HandleSubscribeScene(sceneID scene.SceneID, consumer scene.ParticipantID)
	HandleUnsubscribeScene(sceneID scene.SceneID, consumer scene.ParticipantID)
	HandleRendererEvent(sceneID scene.SceneID, data []byte, from scene.ParticipantID)
	ParticipantConnected(participant scene.ParticipantID)
	ParticipantDisconnected(participant scene.ParticipantID)
}

// RendererHandler is the coordinator's sole output surface toward
// rendering. Callbacks run synchronously under the coordinator mutex
// on whatever goroutine triggered them; implementations must hand off
// quickly and must not call back into the coordinator.
type RendererHandler interface {
	HandleNewSceneAvailable(info scene.Info, provider scene.ParticipantID)
	HandleSceneBecameUnavailable(sceneID scene.SceneID, provider scene.ParticipantID)
	HandleInitializeScene(info scene.Info, provider scene.ParticipantID)
	HandleSceneUpdate(sceneID scene.SceneID, update *scene.Update, provider scene.ParticipantID)
}

// ProviderEventConsumer receives renderer-to-provider events for one
// scene, registered at scene creation. Same calling discipline as
// RendererHandler.
type ProviderEventConsumer interface {
	HandleSceneReferenceEvent(event SceneReferenceEvent, from scene.ParticipantID)
	HandleResourceAvailabilityEvent(event ResourceAvailabilityEvent, from scene.ParticipantID)
}
