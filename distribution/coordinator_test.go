// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"bytes"
	"testing"
	"time"

	"github.com/scenewire/scenewire/lib/clock"
	"github.com/scenewire/scenewire/lib/scene"
	"github.com/scenewire/scenewire/wire"
)

// testCoordinator bundles a coordinator with its recording doubles.
type testCoordinator struct {
	coordinator *Coordinator
	transport   *recordingTransport
	renderer    *recordingRenderer
	clock       *clock.Fake
}

func newTestCoordinator(t *testing.T) *testCoordinator {
	t.Helper()
	transport := &recordingTransport{}
	fake := clock.NewFake(time.Unix(1700000000, 0).UTC())
	coordinator, err := NewCoordinator(Config{
		Participant:  scene.NewParticipantID(),
		FeatureLevel: scene.FeatureLevel01,
		Transport:    transport,
		Clock:        fake,
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	renderer := &recordingRenderer{}
	coordinator.SetRendererHandler(renderer)
	return &testCoordinator{
		coordinator: coordinator,
		transport:   transport,
		renderer:    renderer,
		clock:       fake,
	}
}

func someActions() []scene.Action {
	return []scene.Action{
		{Type: 1, Data: []byte("create-node")},
		{Type: 2, Data: []byte("set-transform")},
	}
}

func TestPublishNotifiesLocalRenderer(t *testing.T) {
	tc := newTestCoordinator(t)

	tc.coordinator.CreateScene(1, "hud", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)

	available := tc.renderer.byMethod("HandleNewSceneAvailable")
	if len(available) != 1 || available[0].info.ID != 1 || available[0].info.Name != "hud" {
		t.Fatalf("renderer availability calls = %+v, want one for scene 1", available)
	}
	if available[0].provider != tc.coordinator.Participant() {
		t.Fatalf("local scene attributed to provider %s", available[0].provider)
	}

	tc.coordinator.UnpublishScene(1)
	unavailable := tc.renderer.byMethod("HandleSceneBecameUnavailable")
	if len(unavailable) != 1 || unavailable[0].sceneID != 1 {
		t.Fatalf("renderer unavailability calls = %+v, want one for scene 1", unavailable)
	}

	// A local-only scene never touches the transport.
	if calls := tc.transport.byMethod("BroadcastScenesAvailable"); len(calls) != 0 {
		t.Fatalf("local-only publish reached the transport: %+v", calls)
	}
	if calls := tc.transport.byMethod("BroadcastScenesUnavailable"); len(calls) != 0 {
		t.Fatalf("local-only unpublish reached the transport: %+v", calls)
	}
}

func TestRemotePublishBroadcastsWhenConnected(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.CreateScene(2, "world", LogicShadowCopy, nil)

	// Before Connect nothing is broadcast.
	tc.coordinator.PublishScene(2, scene.LocalAndRemote)
	if calls := tc.transport.byMethod("BroadcastScenesAvailable"); len(calls) != 0 {
		t.Fatalf("publish broadcast before Connect: %+v", calls)
	}
	tc.coordinator.UnpublishScene(2)

	tc.coordinator.Connect()
	tc.coordinator.PublishScene(2, scene.LocalAndRemote)

	calls := tc.transport.byMethod("BroadcastScenesAvailable")
	if len(calls) != 1 {
		t.Fatalf("broadcast calls = %d, want 1", len(calls))
	}
	if len(calls[0].scenes) != 1 || calls[0].scenes[0].ID != 2 || calls[0].level != scene.FeatureLevel01 {
		t.Fatalf("broadcast = %+v, want scene 2 at level %d", calls[0], scene.FeatureLevel01)
	}

	tc.coordinator.UnpublishScene(2)
	if calls := tc.transport.byMethod("BroadcastScenesUnavailable"); len(calls) != 1 {
		t.Fatalf("unpublish broadcasts = %d, want 1", len(calls))
	}
}

func TestParticipantConnectedGetsAnnouncements(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.Connect()
	tc.coordinator.CreateScene(1, "shared", LogicShadowCopy, nil)
	tc.coordinator.CreateScene(2, "private", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalAndRemote)
	tc.coordinator.PublishScene(2, scene.LocalOnly)

	peer := scene.NewParticipantID()
	tc.coordinator.ParticipantConnected(peer)

	calls := tc.transport.byMethod("SendScenesAvailable")
	if len(calls) != 1 || calls[0].to != peer {
		t.Fatalf("announcements = %+v, want one to %s", calls, peer)
	}
	// Local-only scenes are not announced.
	if len(calls[0].scenes) != 1 || calls[0].scenes[0].ID != 1 {
		t.Fatalf("announced scenes = %+v, want only scene 1", calls[0].scenes)
	}
}

func TestShadowCopySubscriberServedImmediately(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()

	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)

	// Content flushed before anyone subscribes accumulates in the
	// shadow state.
	tc.coordinator.AppendActions(1, someActions())
	if tc.coordinator.Flush(1) {
		t.Fatalf("Flush reported subscribers on a subscriber-less scene")
	}

	tc.coordinator.Subscribe(self, 1)

	inits := tc.renderer.byMethod("HandleInitializeScene")
	if len(inits) != 1 || inits[0].info.ID != 1 {
		t.Fatalf("initialize calls = %+v, want one for scene 1", inits)
	}
	updates := tc.renderer.byMethod("HandleSceneUpdate")
	if len(updates) != 1 {
		t.Fatalf("update calls = %d, want 1", len(updates))
	}
	got := updates[0].update
	if len(got.Actions) != 2 || !bytes.Equal(got.Actions[0].Data, []byte("create-node")) {
		t.Fatalf("shadow update actions = %+v, want the pre-subscription batch", got.Actions)
	}
	if got.Flush.Version != 1 {
		t.Fatalf("shadow update flush version = %d, want 1", got.Flush.Version)
	}

	// Later flushes reach the now-active subscriber directly.
	tc.coordinator.AppendActions(1, []scene.Action{{Type: 9}})
	if !tc.coordinator.Flush(1) {
		t.Fatalf("Flush found no subscribers after subscription")
	}
	updates = tc.renderer.byMethod("HandleSceneUpdate")
	if len(updates) != 2 {
		t.Fatalf("update calls = %d, want 2", len(updates))
	}
	if v := updates[1].update.Flush.Version; v != 2 {
		t.Fatalf("second flush version = %d, want 2", v)
	}
}

func TestDirectModeSubscriberWaitsForNextFlush(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()

	tc.coordinator.CreateScene(1, "", LogicDirect, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)
	tc.coordinator.AppendActions(1, someActions())
	tc.coordinator.Flush(1)

	tc.coordinator.Subscribe(self, 1)

	// Nothing is served at subscription time in direct mode.
	if inits := tc.renderer.byMethod("HandleInitializeScene"); len(inits) != 0 {
		t.Fatalf("direct-mode subscriber initialized before a flush: %+v", inits)
	}

	tc.coordinator.AppendActions(1, []scene.Action{{Type: 5}})
	tc.coordinator.Flush(1)

	if inits := tc.renderer.byMethod("HandleInitializeScene"); len(inits) != 1 {
		t.Fatalf("initialize calls after flush = %d, want 1", len(inits))
	}
	updates := tc.renderer.byMethod("HandleSceneUpdate")
	if len(updates) != 1 {
		t.Fatalf("update calls = %d, want 1", len(updates))
	}
	// The pre-subscription batch is gone; only the new flush arrives.
	if len(updates[0].update.Actions) != 1 || updates[0].update.Actions[0].Type != 5 {
		t.Fatalf("direct update actions = %+v, want only the post-subscription batch", updates[0].update.Actions)
	}
}

func TestRemoteSubscriberReceivesInitializeAndFrames(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.Connect()
	tc.coordinator.CreateScene(3, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(3, scene.LocalAndRemote)
	tc.coordinator.AppendActions(3, someActions())
	tc.coordinator.Flush(3)

	consumer := scene.NewParticipantID()
	tc.coordinator.HandleSubscribeScene(3, consumer)

	inits := tc.transport.byMethod("SendInitializeScene")
	if len(inits) != 1 || inits[0].to != consumer || inits[0].sceneID != 3 {
		t.Fatalf("initialize sends = %+v, want one for scene 3 to the consumer", inits)
	}

	frames := tc.transport.byMethod("SendSceneUpdateFrame")
	if len(frames) == 0 {
		t.Fatalf("no update frames sent to the remote subscriber")
	}

	// The frames reassemble into the shadow state.
	d := wire.NewStreamDeserializer(scene.FeatureLevel01)
	var result wire.Result
	for _, frame := range frames {
		result = d.ProcessData(frame.payload)
	}
	if result.Kind != wire.ResultHasData {
		t.Fatalf("frames did not reassemble: %v (err %v)", result.Kind, result.Err)
	}
	if len(result.Actions) != 2 {
		t.Fatalf("reassembled %d actions, want 2", len(result.Actions))
	}
}

func TestDuplicateSubscriptionIgnored(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)

	tc.coordinator.Subscribe(self, 1)
	tc.coordinator.Subscribe(self, 1)

	if inits := tc.renderer.byMethod("HandleInitializeScene"); len(inits) != 1 {
		t.Fatalf("duplicate subscription re-initialized the scene: %d calls", len(inits))
	}

	tc.coordinator.Flush(1)
	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 2 {
		// One shadow update at subscribe, one from the flush.
		t.Fatalf("update calls = %d, want 2", len(updates))
	}
}

func TestSubscribeToUnpublishedSceneIgnored(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)

	tc.coordinator.Subscribe(tc.coordinator.Participant(), 1)
	if got := tc.renderer.all(); len(got) != 0 {
		t.Fatalf("subscription to unpublished scene produced renderer calls: %+v", got)
	}
}

func TestRemoteSubscribeToLocalOnlySceneIgnored(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)

	// A peer can name any scene id in a subscribe message; a scene
	// kept local must not leak to it, and must not fault the process.
	remote := scene.NewParticipantID()
	tc.coordinator.HandleSubscribeScene(1, remote)

	if calls := tc.transport.byMethod("SendInitializeScene"); len(calls) != 0 {
		t.Fatalf("local-only scene initialized for a remote consumer: %+v", calls)
	}
	if calls := tc.transport.byMethod("SendSceneUpdateFrame"); len(calls) != 0 {
		t.Fatalf("local-only scene sent frames to a remote consumer: %+v", calls)
	}

	// The rejected consumer must not have been retained as a subscriber.
	tc.coordinator.AppendActions(1, someActions())
	tc.coordinator.Flush(1)
	if calls := tc.transport.byMethod("SendSceneUpdateFrame"); len(calls) != 0 {
		t.Fatalf("flush reached the rejected remote consumer: %+v", calls)
	}
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)
	tc.coordinator.Subscribe(self, 1)
	tc.coordinator.Unsubscribe(self, 1)

	tc.coordinator.AppendActions(1, someActions())
	tc.coordinator.Flush(1)

	// Only the shadow update from the subscription moment arrived.
	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 1 {
		t.Fatalf("update calls = %d, want 1", len(updates))
	}
}

func TestRemoteSceneLifecycle(t *testing.T) {
	tc := newTestCoordinator(t)
	provider := scene.NewParticipantID()
	info := scene.Info{ID: 42, Name: "remote", Mode: scene.LocalAndRemote}

	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, provider, scene.FeatureLevel01)
	available := tc.renderer.byMethod("HandleNewSceneAvailable")
	if len(available) != 1 || available[0].info != info || available[0].provider != provider {
		t.Fatalf("availability calls = %+v", available)
	}

	tc.coordinator.HandleInitializeScene(42, provider)
	if inits := tc.renderer.byMethod("HandleInitializeScene"); len(inits) != 1 || inits[0].info != info {
		t.Fatalf("initialize calls = %+v", inits)
	}

	frames, err := wire.SerializeUpdate(&scene.Update{
		Actions: someActions(),
		Flush:   scene.FlushInfo{Version: 1},
	}, scene.FeatureLevel01, wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("SerializeUpdate: %v", err)
	}
	for _, frame := range frames {
		tc.coordinator.HandleSceneUpdateFrame(42, frame, provider)
	}
	updates := tc.renderer.byMethod("HandleSceneUpdate")
	if len(updates) != 1 || len(updates[0].update.Actions) != 2 {
		t.Fatalf("update calls = %+v", updates)
	}

	tc.coordinator.HandleScenesUnavailable([]scene.Info{info}, provider)
	if gone := tc.renderer.byMethod("HandleSceneBecameUnavailable"); len(gone) != 1 || gone[0].sceneID != 42 {
		t.Fatalf("unavailability calls = %+v", gone)
	}
}

func TestDuplicateRemotePublishReinstalls(t *testing.T) {
	tc := newTestCoordinator(t)
	provider := scene.NewParticipantID()
	info := scene.Info{ID: 8, Mode: scene.LocalAndRemote}

	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, provider, scene.FeatureLevel01)
	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, provider, scene.FeatureLevel01)

	// Teardown then reinstall: available, unavailable, available.
	calls := tc.renderer.all()
	want := []string{"HandleNewSceneAvailable", "HandleSceneBecameUnavailable", "HandleNewSceneAvailable"}
	if len(calls) != len(want) {
		t.Fatalf("renderer saw %d calls, want %d: %+v", len(calls), len(want), calls)
	}
	for i, method := range want {
		if calls[i].method != method {
			t.Fatalf("call %d = %s, want %s", i, calls[i].method, method)
		}
	}

	// The duplicate publish invalidated the update stream: frames are
	// dropped until the provider re-initializes.
	frames, err := wire.SerializeUpdate(&scene.Update{Flush: scene.FlushInfo{Version: 1}},
		scene.FeatureLevel01, wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("SerializeUpdate: %v", err)
	}
	tc.coordinator.HandleSceneUpdateFrame(8, frames[0], provider)
	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 0 {
		t.Fatalf("update delivered on an uninitialized stream: %+v", updates)
	}
}

func TestMismatchedFeatureLevelRejected(t *testing.T) {
	tc := newTestCoordinator(t)
	provider := scene.NewParticipantID()
	info := scene.Info{ID: 9, Mode: scene.LocalAndRemote}

	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, provider, scene.FeatureLevel01+1)

	if calls := tc.renderer.all(); len(calls) != 0 {
		t.Fatalf("mismatched feature level reached the renderer: %+v", calls)
	}
	// The scene is not tracked: initializing it is a no-op too.
	tc.coordinator.HandleInitializeScene(9, provider)
	if calls := tc.renderer.all(); len(calls) != 0 {
		t.Fatalf("untracked scene initialized: %+v", calls)
	}
}

func TestUpdateFromWrongProviderIgnored(t *testing.T) {
	tc := newTestCoordinator(t)
	owner := scene.NewParticipantID()
	imposter := scene.NewParticipantID()
	info := scene.Info{ID: 5, Mode: scene.LocalAndRemote}

	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, owner, scene.FeatureLevel01)
	tc.coordinator.HandleInitializeScene(5, owner)

	frames, err := wire.SerializeUpdate(&scene.Update{Flush: scene.FlushInfo{Version: 1}},
		scene.FeatureLevel01, wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("SerializeUpdate: %v", err)
	}
	tc.coordinator.HandleSceneUpdateFrame(5, frames[0], imposter)

	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 0 {
		t.Fatalf("update from a non-owner was delivered: %+v", updates)
	}
}

func TestDesynchronizedStreamDroppedUntilReinitialize(t *testing.T) {
	tc := newTestCoordinator(t)
	provider := scene.NewParticipantID()
	info := scene.Info{ID: 6, Mode: scene.LocalAndRemote}

	tc.coordinator.HandleScenesAvailable([]scene.Info{info}, provider, scene.FeatureLevel01)
	tc.coordinator.HandleInitializeScene(6, provider)

	// A frame with a corrupt feature level desynchronizes the stream.
	tc.coordinator.HandleSceneUpdateFrame(6, []byte{0xff, 0xff, 0xff, 0xff, 0}, provider)

	goodFrames, err := wire.SerializeUpdate(&scene.Update{
		Actions: someActions(),
		Flush:   scene.FlushInfo{Version: 1},
	}, scene.FeatureLevel01, wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("SerializeUpdate: %v", err)
	}

	// Valid frames after the desync are dropped...
	for _, frame := range goodFrames {
		tc.coordinator.HandleSceneUpdateFrame(6, frame, provider)
	}
	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 0 {
		t.Fatalf("updates delivered on a desynchronized stream: %+v", updates)
	}

	// ...but the scene itself stays available, and re-initialization
	// recovers it.
	if gone := tc.renderer.byMethod("HandleSceneBecameUnavailable"); len(gone) != 0 {
		t.Fatalf("desync tore the scene down: %+v", gone)
	}
	tc.coordinator.HandleInitializeScene(6, provider)
	for _, frame := range goodFrames {
		tc.coordinator.HandleSceneUpdateFrame(6, frame, provider)
	}
	if updates := tc.renderer.byMethod("HandleSceneUpdate"); len(updates) != 1 {
		t.Fatalf("update calls after recovery = %d, want 1", len(updates))
	}
}

func TestParticipantDisconnectTearsDownItsScenes(t *testing.T) {
	tc := newTestCoordinator(t)
	leaving := scene.NewParticipantID()
	staying := scene.NewParticipantID()

	tc.coordinator.HandleScenesAvailable([]scene.Info{{ID: 1}}, leaving, scene.FeatureLevel01)
	tc.coordinator.HandleScenesAvailable([]scene.Info{{ID: 2}}, staying, scene.FeatureLevel01)

	// The leaving participant also subscribed to a local scene.
	tc.coordinator.CreateScene(10, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(10, scene.LocalAndRemote)
	tc.coordinator.HandleSubscribeScene(10, leaving)

	tc.coordinator.ParticipantDisconnected(leaving)

	gone := tc.renderer.byMethod("HandleSceneBecameUnavailable")
	if len(gone) != 1 || gone[0].sceneID != 1 || gone[0].provider != leaving {
		t.Fatalf("teardown calls = %+v, want only scene 1 from the leaving provider", gone)
	}

	// Flushing the local scene no longer sends to the gone subscriber.
	tc.coordinator.AppendActions(10, someActions())
	if tc.coordinator.Flush(10) {
		t.Fatalf("Flush still found subscribers after the disconnect")
	}
}

func TestRendererEventDelivery(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()
	consumer := &recordingConsumer{}
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, consumer)

	// Self-addressed events bypass the transport.
	event := SceneReferenceEvent{Master: 1, ReferencedScene: 2, Kind: 1, State: 3}
	tc.coordinator.SendSceneReferenceEvent(self, event)
	if refs := consumer.referenceEvents(); len(refs) != 1 || refs[0] != event {
		t.Fatalf("self-delivered events = %+v, want %+v", refs, event)
	}
	if sent := tc.transport.byMethod("SendRendererEvent"); len(sent) != 0 {
		t.Fatalf("self-addressed event reached the transport: %+v", sent)
	}

	// Remote-addressed events travel encoded.
	remote := scene.NewParticipantID()
	tc.coordinator.SendSceneReferenceEvent(remote, event)
	sent := tc.transport.byMethod("SendRendererEvent")
	if len(sent) != 1 || sent[0].to != remote || sent[0].sceneID != 1 {
		t.Fatalf("remote event sends = %+v", sent)
	}

	// An inbound payload dispatches to the master scene's consumer.
	tc.coordinator.HandleRendererEvent(1, sent[0].payload, remote)
	if refs := consumer.referenceEvents(); len(refs) != 2 || refs[1] != event {
		t.Fatalf("inbound events = %+v", refs)
	}

	// Garbage payloads are dropped without a panic.
	tc.coordinator.HandleRendererEvent(1, []byte{1, 2}, remote)
	if refs := consumer.referenceEvents(); len(refs) != 2 {
		t.Fatalf("garbage payload produced an event")
	}
}

func TestCreateSceneTwicePanics(t *testing.T) {
	tc := newTestCoordinator(t)
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate CreateScene did not panic")
		}
	}()
	tc.coordinator.CreateScene(1, "", LogicDirect, nil)
}

func TestSecondRendererHandlerPanics(t *testing.T) {
	tc := newTestCoordinator(t)

	defer func() {
		if recover() == nil {
			t.Fatalf("second SetRendererHandler did not panic")
		}
	}()
	tc.coordinator.SetRendererHandler(&recordingRenderer{})
}

func TestRendererHandlerReplayAndDetach(t *testing.T) {
	transport := &recordingTransport{}
	coordinator, err := NewCoordinator(Config{
		Participant:  scene.NewParticipantID(),
		FeatureLevel: scene.FeatureLevel01,
		Transport:    transport,
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// Published before any renderer existed.
	coordinator.CreateScene(1, "early", LogicShadowCopy, nil)
	coordinator.PublishScene(1, scene.LocalOnly)

	renderer := &recordingRenderer{}
	coordinator.SetRendererHandler(renderer)

	available := renderer.byMethod("HandleNewSceneAvailable")
	if len(available) != 1 || available[0].info.ID != 1 {
		t.Fatalf("attach replay = %+v, want scene 1", available)
	}

	// Detaching drops the local subscription; a new handler can
	// attach afterwards.
	coordinator.Subscribe(coordinator.Participant(), 1)
	coordinator.SetRendererHandler(nil)
	coordinator.AppendActions(1, someActions())
	if coordinator.Flush(1) {
		t.Fatalf("Flush found subscribers after the renderer detached")
	}
	coordinator.SetRendererHandler(&recordingRenderer{})
}

func TestFlushStampsClockTime(t *testing.T) {
	tc := newTestCoordinator(t)
	self := tc.coordinator.Participant()
	tc.coordinator.CreateScene(1, "", LogicShadowCopy, nil)
	tc.coordinator.PublishScene(1, scene.LocalOnly)
	tc.coordinator.Subscribe(self, 1)

	tc.clock.Advance(42 * time.Second)
	tc.coordinator.AppendActions(1, someActions())
	tc.coordinator.Flush(1)

	updates := tc.renderer.byMethod("HandleSceneUpdate")
	last := updates[len(updates)-1].update
	want := time.Unix(1700000042, 0).UTC()
	if !last.Flush.FlushTime.Equal(want) {
		t.Fatalf("flush time = %v, want %v", last.Flush.FlushTime, want)
	}
}
