// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"sync"

	"github.com/scenewire/scenewire/lib/scene"
)

// transportCall records one Transport method invocation. Only the
// fields relevant to the recorded method are set.
type transportCall struct {
	method  string
	to      scene.ParticipantID
	scenes  []scene.Info
	level   scene.FeatureLevel
	sceneID scene.SceneID
	payload []byte
}

// recordingTransport captures outbound traffic for assertions. Safe
// for concurrent use so the in-memory network tests can share it.
type recordingTransport struct {
	mu    sync.Mutex
	calls []transportCall
}

func (r *recordingTransport) record(call transportCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// byMethod returns the recorded calls with the given method name, in
// order.
func (r *recordingTransport) byMethod(method string) []transportCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []transportCall
	for _, call := range r.calls {
		if call.method == method {
			matched = append(matched, call)
		}
	}
	return matched
}

func (r *recordingTransport) SendScenesAvailable(to scene.ParticipantID, scenes []scene.Info, level scene.FeatureLevel) {
	r.record(transportCall{method: "SendScenesAvailable", to: to, scenes: scenes, level: level})
}

func (r *recordingTransport) BroadcastScenesAvailable(scenes []scene.Info, level scene.FeatureLevel) {
	r.record(transportCall{method: "BroadcastScenesAvailable", scenes: scenes, level: level})
}

func (r *recordingTransport) BroadcastScenesUnavailable(scenes []scene.Info) {
	r.record(transportCall{method: "BroadcastScenesUnavailable", scenes: scenes})
}

func (r *recordingTransport) SendInitializeScene(to scene.ParticipantID, sceneID scene.SceneID) {
	r.record(transportCall{method: "SendInitializeScene", to: to, sceneID: sceneID})
}

func (r *recordingTransport) SendSubscribeScene(to scene.ParticipantID, sceneID scene.SceneID) {
	r.record(transportCall{method: "SendSubscribeScene", to: to, sceneID: sceneID})
}

func (r *recordingTransport) SendUnsubscribeScene(to scene.ParticipantID, sceneID scene.SceneID) {
	r.record(transportCall{method: "SendUnsubscribeScene", to: to, sceneID: sceneID})
}

func (r *recordingTransport) SendSceneUpdateFrame(to scene.ParticipantID, sceneID scene.SceneID, frame []byte) {
	r.record(transportCall{method: "SendSceneUpdateFrame", to: to, sceneID: sceneID, payload: frame})
}

func (r *recordingTransport) SendRendererEvent(to scene.ParticipantID, sceneID scene.SceneID, data []byte) {
	r.record(transportCall{method: "SendRendererEvent", to: to, sceneID: sceneID, payload: data})
}

// rendererCall records one RendererHandler invocation.
type rendererCall struct {
	method   string
	info     scene.Info
	sceneID  scene.SceneID
	provider scene.ParticipantID
	update   *scene.Update
}

type recordingRenderer struct {
	mu    sync.Mutex
	calls []rendererCall
}

func (r *recordingRenderer) record(call rendererCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// all returns a snapshot of every recorded call.
func (r *recordingRenderer) all() []rendererCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rendererCall(nil), r.calls...)
}

func (r *recordingRenderer) byMethod(method string) []rendererCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []rendererCall
	for _, call := range r.calls {
		if call.method == method {
			matched = append(matched, call)
		}
	}
	return matched
}

func (r *recordingRenderer) HandleNewSceneAvailable(info scene.Info, provider scene.ParticipantID) {
	r.record(rendererCall{method: "HandleNewSceneAvailable", info: info, sceneID: info.ID, provider: provider})
}

func (r *recordingRenderer) HandleSceneBecameUnavailable(sceneID scene.SceneID, provider scene.ParticipantID) {
	r.record(rendererCall{method: "HandleSceneBecameUnavailable", sceneID: sceneID, provider: provider})
}

func (r *recordingRenderer) HandleInitializeScene(info scene.Info, provider scene.ParticipantID) {
	r.record(rendererCall{method: "HandleInitializeScene", info: info, sceneID: info.ID, provider: provider})
}

func (r *recordingRenderer) HandleSceneUpdate(sceneID scene.SceneID, update *scene.Update, provider scene.ParticipantID) {
	r.record(rendererCall{method: "HandleSceneUpdate", sceneID: sceneID, provider: provider, update: update})
}

// recordingConsumer captures renderer-to-provider events.
type recordingConsumer struct {
	mu        sync.Mutex
	refs      []SceneReferenceEvent
	available []ResourceAvailabilityEvent
	senders   []scene.ParticipantID
}

func (r *recordingConsumer) HandleSceneReferenceEvent(event SceneReferenceEvent, from scene.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, event)
	r.senders = append(r.senders, from)
}

func (r *recordingConsumer) HandleResourceAvailabilityEvent(event ResourceAvailabilityEvent, from scene.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = append(r.available, event)
	r.senders = append(r.senders, from)
}

func (r *recordingConsumer) referenceEvents() []SceneReferenceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SceneReferenceEvent(nil), r.refs...)
}

func (r *recordingConsumer) availabilityEvents() []ResourceAvailabilityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResourceAvailabilityEvent(nil), r.available...)
}
