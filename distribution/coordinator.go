// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/scenewire/scenewire/lib/clock"
	"github.com/scenewire/scenewire/lib/resource"
	"github.com/scenewire/scenewire/lib/scene"
	"github.com/scenewire/scenewire/wire"
)

// Config holds the coordinator's construction parameters.
type Config struct {
	// Participant is this coordinator's identity on the network.
	Participant scene.ParticipantID

	// FeatureLevel gates which remote scene announcements are
	// accepted and tags everything this coordinator announces.
	FeatureLevel scene.FeatureLevel

	// Transport carries protocol messages to other participants. The
	// coordinator registers no handler itself — wire the coordinator
	// into the transport's dispatch as its NetworkHandler.
	Transport Transport

	// MaxFrameSize bounds serialized scene-update frames. Zero means
	// wire.DefaultMaxFrameSize.
	MaxFrameSize int

	// Clock stamps flush checkpoints. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// remoteScene tracks one scene received from another participant: its
// announcement, the owning provider, and the reassembly state of its
// update stream. The deserializer is created on scene initialization
// and discarded on teardown or desynchronization.
type remoteScene struct {
	info         scene.Info
	provider     scene.ParticipantID
	deserializer *wire.StreamDeserializer
}

// Coordinator owns scene publication state for one participant and
// drives the publish/subscribe protocol. It implements NetworkHandler
// for inbound traffic.
//
// One mutex guards all maps and the renderer handler; every public
// operation takes it for its full duration. Ordering matters: some
// renderer notifications must precede map mutation (duplicate-publish
// teardown, disconnect teardown), which the coarse region makes easy
// to preserve.
type Coordinator struct {
	self         scene.ParticipantID
	featureLevel scene.FeatureLevel
	transport    Transport
	maxFrameSize int
	clk          clock.Clock
	logger       *slog.Logger

	mu             sync.Mutex
	renderer       RendererHandler
	logic          map[scene.SceneID]*sceneLogic
	eventConsumers map[scene.SceneID]ProviderEventConsumer
	remoteScenes   map[scene.SceneID]*remoteScene
	connected      bool
}

// Compile-time interface check.
var _ NetworkHandler = (*Coordinator)(nil)

// NewCoordinator creates a coordinator for the given participant.
func NewCoordinator(config Config) (*Coordinator, error) {
	if !config.Participant.IsValid() {
		return nil, fmt.Errorf("distribution: Participant is required")
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("distribution: Transport is required")
	}

	maxFrameSize := config.MaxFrameSize
	if maxFrameSize == 0 {
		maxFrameSize = wire.DefaultMaxFrameSize
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		self:           config.Participant,
		featureLevel:   config.FeatureLevel,
		transport:      config.Transport,
		maxFrameSize:   maxFrameSize,
		clk:            clk,
		logger:         logger,
		logic:          make(map[scene.SceneID]*sceneLogic),
		eventConsumers: make(map[scene.SceneID]ProviderEventConsumer),
		remoteScenes:   make(map[scene.SceneID]*remoteScene),
	}, nil
}

// Participant returns this coordinator's identity.
func (c *Coordinator) Participant() scene.ParticipantID {
	return c.self
}

// SetRendererHandler attaches or (with nil) detaches the renderer
// consumer. Registering a second handler while one is attached is a
// caller bug and panics, as is changing the handler while remote
// scenes are tracked — the renderer must be configured before
// connecting. Attaching replays availability for every locally
// published scene; detaching unsubscribes the local renderer from all
// of them.
func (c *Coordinator) SetRendererHandler(handler RendererHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handler != nil && c.renderer != nil {
		panic("distribution: coordinator already has a renderer handler")
	}
	if len(c.remoteScenes) != 0 {
		panic("distribution: cannot change renderer handler while remote scenes are tracked")
	}

	c.renderer = handler

	if handler != nil {
		for _, logic := range c.logic {
			if logic.published {
				handler.HandleNewSceneAvailable(logic.info(), c.self)
			}
		}
		return
	}
	for _, logic := range c.logic {
		logic.removeSubscriber(c.self)
	}
}

// CreateScene installs the distribution state for a locally produced
// scene. The logic mode is fixed here for the scene's lifetime. The
// consumer receives renderer events addressed to this scene; it may
// be nil if the producer does not use scene references. Creating a
// scene id twice is a caller bug and panics.
func (c *Coordinator) CreateScene(id scene.SceneID, name string, mode LogicMode, consumer ProviderEventConsumer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.logic[id]; exists {
		panic("distribution: scene " + id.String() + " created twice")
	}
	c.logger.Info("creating scene", "scene", id, "name", name, "mode", mode)
	c.logic[id] = newSceneLogic(id, name, mode)
	if consumer != nil {
		c.eventConsumers[id] = consumer
	}
}

// RemoveScene destroys a scene's distribution state. The scene must
// have been unpublished first if it was published.
func (c *Coordinator) RemoveScene(id scene.SceneID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logic := c.mustLogicLocked(id)
	if logic.published {
		panic("distribution: removing published scene " + id.String())
	}
	c.logger.Info("removing scene", "scene", id)
	delete(c.logic, id)
	delete(c.eventConsumers, id)
}

// PublishScene makes the scene available: the attached renderer is
// notified immediately, and remote-capable scenes are broadcast to
// all connected participants. Publishing a published scene panics.
func (c *Coordinator) PublishScene(id scene.SceneID, mode scene.PublicationMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logic := c.mustLogicLocked(id)
	if logic.published {
		panic("distribution: scene " + id.String() + " published twice")
	}
	logic.published = true
	logic.pubMode = mode
	info := logic.info()

	c.logger.Info("publishing scene", "scene", id, "mode", mode)

	if c.renderer != nil {
		c.renderer.HandleNewSceneAvailable(info, c.self)
	}
	if mode != scene.LocalOnly && c.connected {
		c.transport.BroadcastScenesAvailable([]scene.Info{info}, c.featureLevel)
	}
}

// UnpublishScene withdraws the scene: local renderer notified, remote
// availability revoked, subscriber set cleared. The scene's logic
// state survives for a later re-publish. Unpublishing an unpublished
// scene panics.
func (c *Coordinator) UnpublishScene(id scene.SceneID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logic := c.mustLogicLocked(id)
	if !logic.published {
		panic("distribution: scene " + id.String() + " is not published")
	}
	info := logic.info()
	logic.published = false
	logic.subscribers = make(map[scene.ParticipantID]subscriberState)

	c.logger.Debug("unpublishing scene", "scene", id, "mode", info.Mode)

	if c.renderer != nil {
		c.renderer.HandleSceneBecameUnavailable(id, c.self)
	}
	if info.Mode != scene.LocalOnly && c.connected {
		c.transport.BroadcastScenesUnavailable([]scene.Info{info})
	}
}

// AppendActions queues scene mutations for the next flush.
func (c *Coordinator) AppendActions(id scene.SceneID, actions []scene.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustLogicLocked(id).appendActions(actions)
}

// AppendResource queues a resource to be embedded with the next
// flush. The resource is compressed lazily on the first remote send.
func (c *Coordinator) AppendResource(id scene.SceneID, res *resource.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustLogicLocked(id).appendResource(res)
}

// Flush closes the pending mutation batch into a versioned update and
// distributes it: waiting subscribers are initialized first and then
// receive the update together with the active ones. Returns false if
// the scene has no subscribers (the flush still advances the version
// and, in shadow-copy mode, the cumulative state).
func (c *Coordinator) Flush(id scene.SceneID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	logic := c.mustLogicLocked(id)
	update := logic.takeFlush(scene.FlushInfo{FlushTime: c.clk.Now()})

	waiting := logic.waitingList()
	for _, p := range waiting {
		c.sendInitializeLocked(logic, p)
		logic.activate(p)
	}

	destinations := logic.subscriberList()
	if len(destinations) == 0 {
		return false
	}
	c.sendSceneUpdateLocked(destinations, update, id)
	return true
}

// Subscribe requests the scene's update stream from its provider. A
// self-subscription (the local renderer consuming a local scene) is
// delivered directly; anything else goes over the transport.
func (c *Coordinator) Subscribe(provider scene.ParticipantID, id scene.SceneID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if provider == c.self {
		c.logger.Info("subscribing to local scene", "scene", id)
		c.handleSubscribeLocked(id, c.self)
		return
	}
	c.logger.Info("subscribing to remote scene", "scene", id, "provider", provider)
	c.transport.SendSubscribeScene(provider, id)
}

// Unsubscribe cancels a subscription.
func (c *Coordinator) Unsubscribe(provider scene.ParticipantID, id scene.SceneID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if provider == c.self {
		c.handleUnsubscribeLocked(id, c.self)
		return
	}
	c.transport.SendUnsubscribeScene(provider, id)
}

// Connect marks the network as up. Scenes published from now on are
// broadcast; already-published scenes are announced to individual
// participants as they connect.
func (c *Coordinator) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("connecting to network")
	c.connected = true
}

// Disconnect withdraws every remote-capable scene from the network
// and strips remote subscribers from all scene logics. Local
// publications and the local renderer are unaffected.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("disconnecting from network")

	var withdraw []scene.Info
	for _, logic := range c.logic {
		if logic.published && logic.pubMode != scene.LocalOnly {
			withdraw = append(withdraw, logic.info())
		}
	}
	if len(withdraw) > 0 {
		c.transport.BroadcastScenesUnavailable(withdraw)
	}

	for _, logic := range c.logic {
		for _, p := range logic.subscriberList() {
			if p != c.self {
				logic.removeSubscriber(p)
			}
		}
	}

	c.connected = false
}

// ParticipantConnected announces this coordinator's remote-capable
// scenes to the newly connected participant.
func (c *Coordinator) ParticipantConnected(participant scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var available []scene.Info
	for _, logic := range c.logic {
		if logic.published && logic.pubMode != scene.LocalOnly {
			available = append(available, logic.info())
		}
	}
	if len(available) > 0 {
		c.logger.Info("announcing scenes to new participant",
			"participant", participant, "scenes", len(available))
		c.transport.SendScenesAvailable(participant, available, c.featureLevel)
	}
}

// ParticipantDisconnected removes the participant from every scene's
// subscriber set and tears down all remote scenes it was providing,
// notifying the renderer of each loss.
func (c *Coordinator) ParticipantDisconnected(participant scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("participant disconnected", "participant", participant)

	for _, logic := range c.logic {
		logic.removeSubscriber(participant)
	}

	for id, remote := range c.remoteScenes {
		if remote.provider != participant {
			continue
		}
		if c.renderer != nil {
			c.renderer.HandleSceneBecameUnavailable(id, participant)
		}
		delete(c.remoteScenes, id)
	}
}

// HandleScenesAvailable processes an inbound availability
// announcement. A duplicate announcement for a scene already tracked
// under the same provider tears the old record down first (renderer
// notified of the loss) — the last announcement wins. Announcements
// at a foreign feature level are dropped with a warning. A scene id
// already tracked under a different provider is ignored.
func (c *Coordinator) HandleScenesAvailable(scenes []scene.Info, provider scene.ParticipantID, level scene.FeatureLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, info := range scenes {
		if existing, exists := c.remoteScenes[info.ID]; exists && existing.provider == provider {
			c.logger.Warn("duplicate publish of remote scene, reinstalling",
				"scene", info.ID, "provider", provider, "name", info.Name)
			if c.renderer != nil {
				c.renderer.HandleSceneBecameUnavailable(info.ID, provider)
			}
			delete(c.remoteScenes, info.ID)
		}

		if _, exists := c.remoteScenes[info.ID]; exists {
			c.logger.Warn("ignoring publish for scene tracked under another provider",
				"scene", info.ID, "provider", provider, "name", info.Name)
			continue
		}
		if level != c.featureLevel {
			c.logger.Warn("ignoring publish with mismatched feature level",
				"scene", info.ID, "provider", provider, "name", info.Name,
				"level", level, "local_level", c.featureLevel)
			continue
		}

		c.logger.Info("remote scene published",
			"scene", info.ID, "provider", provider, "name", info.Name, "mode", info.Mode)
		c.remoteScenes[info.ID] = &remoteScene{info: info, provider: provider}
		if c.renderer != nil {
			c.renderer.HandleNewSceneAvailable(info, provider)
		}
	}
}

// HandleScenesUnavailable processes an inbound withdrawal.
func (c *Coordinator) HandleScenesUnavailable(scenes []scene.Info, provider scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, info := range scenes {
		if _, exists := c.remoteScenes[info.ID]; !exists {
			c.logger.Warn("ignoring unpublish for unknown remote scene",
				"scene", info.ID, "provider", provider)
			continue
		}
		c.logger.Info("remote scene unpublished", "scene", info.ID, "provider", provider)
		if c.renderer != nil {
			c.renderer.HandleSceneBecameUnavailable(info.ID, provider)
		}
		delete(c.remoteScenes, info.ID)
	}
}

// HandleInitializeScene resets the scene's reassembly state and tells
// the renderer to start from scratch. Every re-initialization gets a
// fresh deserializer; stale reassembly state must never survive it.
func (c *Coordinator) HandleInitializeScene(sceneID scene.SceneID, provider scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.renderer == nil {
		c.logger.Warn("initialize scene without a renderer", "scene", sceneID, "provider", provider)
		return
	}
	remote, exists := c.remoteScenes[sceneID]
	if !exists {
		c.logger.Warn("initialize for unknown remote scene", "scene", sceneID, "provider", provider)
		return
	}
	if remote.provider != provider {
		c.logger.Warn("initialize from unexpected provider",
			"scene", sceneID, "provider", provider, "owner", remote.provider)
		return
	}

	remote.deserializer = wire.NewStreamDeserializer(c.featureLevel)
	c.renderer.HandleInitializeScene(remote.info, provider)
}

// HandleSceneUpdateFrame feeds one transport frame into the scene's
// reassembly state. A complete batch is delivered to the renderer; a
// malformed frame desynchronizes the stream, so the deserializer is
// discarded and further frames are dropped until the provider
// re-initializes the scene. (Deliberately no disconnect: one bad
// scene stream should not sever unrelated scenes from the same
// provider.)
func (c *Coordinator) HandleSceneUpdateFrame(sceneID scene.SceneID, frame []byte, provider scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.renderer == nil {
		c.logger.Warn("scene update without a renderer", "scene", sceneID, "provider", provider)
		return
	}
	remote, exists := c.remoteScenes[sceneID]
	if !exists {
		c.logger.Warn("scene update for unknown remote scene", "scene", sceneID, "provider", provider)
		return
	}
	if remote.provider != provider {
		c.logger.Warn("scene update from unexpected provider",
			"scene", sceneID, "provider", provider, "owner", remote.provider)
		return
	}
	if len(frame) == 0 {
		c.logger.Warn("empty scene update frame", "scene", sceneID, "provider", provider)
		return
	}
	if remote.deserializer == nil {
		c.logger.Warn("scene update before initialization", "scene", sceneID, "provider", provider)
		return
	}

	result := remote.deserializer.ProcessData(frame)
	switch result.Kind {
	case wire.ResultEmpty:

	case wire.ResultFailed:
		c.logger.Error("scene update stream desynchronized, dropping until re-initialization",
			"scene", sceneID, "provider", provider, "error", result.Err)
		remote.deserializer = nil

	case wire.ResultHasData:
		update := &scene.Update{
			Actions:   result.Actions,
			Resources: result.Resources,
			Flush:     result.Flush,
		}
		c.renderer.HandleSceneUpdate(sceneID, update, provider)
	}
}

// HandleSubscribeScene processes an inbound subscription request for
// a locally published scene.
func (c *Coordinator) HandleSubscribeScene(sceneID scene.SceneID, consumer scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleSubscribeLocked(sceneID, consumer)
}

// HandleUnsubscribeScene processes an inbound subscription cancel.
func (c *Coordinator) HandleUnsubscribeScene(sceneID scene.SceneID, consumer scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleUnsubscribeLocked(sceneID, consumer)
}

// SendSceneReferenceEvent delivers a scene reference event to the
// provider of its master scene — directly when that is this
// participant, over the transport otherwise.
func (c *Coordinator) SendSceneReferenceEvent(to scene.ParticipantID, event SceneReferenceEvent) {
	c.sendRendererEvent(to, event)
}

// SendResourceAvailabilityEvent delivers a resource availability
// event to the provider of its scene.
func (c *Coordinator) SendResourceAvailabilityEvent(to scene.ParticipantID, event ResourceAvailabilityEvent) {
	c.sendRendererEvent(to, event)
}

// HandleRendererEvent demultiplexes an inbound opaque renderer event
// payload by its leading type tag and forwards it to the addressed
// scene's event consumer. Unknown tags and decode failures are logged
// and dropped without affecting other traffic.
func (c *Coordinator) HandleRendererEvent(sceneID scene.SceneID, data []byte, from scene.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, err := DecodeRendererEvent(data)
	if err != nil {
		c.logger.Warn("dropping undecodable renderer event",
			"scene", sceneID, "from", from, "error", err)
		return
	}
	c.forwardEventLocked(event, from)
}

func (c *Coordinator) sendRendererEvent(to scene.ParticipantID, event RendererEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if to == c.self {
		c.forwardEventLocked(event, c.self)
		return
	}
	data, err := EncodeRendererEvent(event)
	if err != nil {
		c.logger.Error("failed to encode renderer event", "error", err)
		return
	}
	c.transport.SendRendererEvent(to, event.MasterScene(), data)
}

func (c *Coordinator) forwardEventLocked(event RendererEvent, from scene.ParticipantID) {
	consumer, exists := c.eventConsumers[event.MasterScene()]
	if !exists {
		c.logger.Warn("no event consumer registered for scene", "scene", event.MasterScene())
		return
	}
	switch e := event.(type) {
	case SceneReferenceEvent:
		consumer.HandleSceneReferenceEvent(e, from)
	case ResourceAvailabilityEvent:
		consumer.HandleResourceAvailabilityEvent(e, from)
	}
}

func (c *Coordinator) handleSubscribeLocked(sceneID scene.SceneID, consumer scene.ParticipantID) {
	logic, exists := c.logic[sceneID]
	if !exists {
		c.logger.Warn("subscription for unknown scene", "scene", sceneID, "consumer", consumer)
		return
	}
	if !logic.published {
		c.logger.Warn("subscription for unpublished scene", "scene", sceneID, "consumer", consumer)
		return
	}
	if logic.hasSubscriber(consumer) {
		c.logger.Warn("duplicate subscription", "scene", sceneID, "consumer", consumer)
		return
	}
	if consumer != c.self && logic.pubMode == scene.LocalOnly {
		c.logger.Warn("remote subscription for local-only scene",
			"scene", sceneID, "consumer", consumer)
		return
	}

	c.logger.Info("scene subscription", "scene", sceneID, "consumer", consumer)
	logic.addSubscriber(consumer)

	// Shadow-copy scenes can serve the full state immediately; direct
	// scenes leave the subscriber waiting for the next flush.
	if logic.mode == LogicShadowCopy {
		c.sendInitializeLocked(logic, consumer)
		update := logic.shadowUpdate(scene.FlushInfo{FlushTime: c.clk.Now()})
		c.sendSceneUpdateLocked([]scene.ParticipantID{consumer}, update, sceneID)
		logic.activate(consumer)
	}
}

func (c *Coordinator) handleUnsubscribeLocked(sceneID scene.SceneID, consumer scene.ParticipantID) {
	logic, exists := c.logic[sceneID]
	if !exists {
		c.logger.Warn("unsubscription for unknown scene", "scene", sceneID, "consumer", consumer)
		return
	}
	c.logger.Info("scene unsubscription", "scene", sceneID, "consumer", consumer)
	logic.removeSubscriber(consumer)
}

// sendInitializeLocked tells one subscriber to (re-)initialize the
// scene, directly for the local renderer, over transport otherwise.
func (c *Coordinator) sendInitializeLocked(logic *sceneLogic, to scene.ParticipantID) {
	if to == c.self {
		if c.renderer != nil {
			c.renderer.HandleInitializeScene(logic.info(), c.self)
		}
		return
	}
	if logic.pubMode == scene.LocalOnly {
		panic("distribution: remote subscriber on local-only scene " + logic.id.String())
	}
	c.transport.SendInitializeScene(to, logic.id)
}

// sendSceneUpdateLocked routes an update to its destinations. Remote
// destinations share one serialization: the first one pays for
// realtime compression of the embedded resources and the resulting
// frames are reused for the rest. The self destination is served last
// so the update object can be handed over without copying.
func (c *Coordinator) sendSceneUpdateLocked(destinations []scene.ParticipantID, update *scene.Update, sceneID scene.SceneID) {
	sendToSelf := false
	var frames [][]byte

	for _, to := range destinations {
		if to == c.self {
			sendToSelf = true
			continue
		}
		if frames == nil {
			var err error
			frames, err = wire.SerializeUpdate(update, c.featureLevel, c.maxFrameSize)
			if err != nil {
				c.logger.Error("failed to serialize scene update",
					"scene", sceneID, "error", err)
				break
			}
		}
		for _, frame := range frames {
			c.transport.SendSceneUpdateFrame(to, sceneID, frame)
		}
	}

	if sendToSelf && c.renderer != nil {
		c.renderer.HandleSceneUpdate(sceneID, update, c.self)
	}
}

func (c *Coordinator) mustLogicLocked(id scene.SceneID) *sceneLogic {
	logic, exists := c.logic[id]
	if !exists {
		panic("distribution: unknown scene " + id.String())
	}
	return logic
}
