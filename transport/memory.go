// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"
	"sync"

	"github.com/scenewire/scenewire/distribution"
	"github.com/scenewire/scenewire/lib/scene"
)

// Network is an in-process hub connecting endpoints by participant
// id. Delivery is asynchronous: every message is queued and executed
// by a single dispatch goroutine, which preserves per-sender order
// and keeps handler callbacks off the sender's stack. Coordinators
// hold their own locks while sending, so synchronous delivery would
// deadlock two coordinators that message each other.
type Network struct {
	mu        sync.Mutex
	cond      *sync.Cond
	endpoints map[scene.ParticipantID]*Endpoint
	queue     []func()
	pending   int
	closed    bool
}

// NewNetwork creates an empty hub and starts its dispatch goroutine.
func NewNetwork() *Network {
	n := &Network{endpoints: make(map[scene.ParticipantID]*Endpoint)}
	n.cond = sync.NewCond(&n.mu)
	go n.dispatch()
	return n
}

// Close stops the dispatch goroutine. Queued messages are dropped.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.pending -= len(n.queue)
	n.queue = nil
	n.cond.Broadcast()
}

// Settle blocks until every queued message, including messages
// enqueued by handlers while draining, has been delivered. Tests call
// this between a stimulus and its assertions.
func (n *Network) Settle() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for n.pending > 0 && !n.closed {
		n.cond.Wait()
	}
}

// Register creates an endpoint for the participant. The endpoint is
// offline until Connect; set its handler first.
func (n *Network) Register(participant scene.ParticipantID, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.endpoints[participant]; exists {
		panic("transport: participant " + participant.String() + " registered twice")
	}
	e := &Endpoint{network: n, participant: participant, logger: logger}
	n.endpoints[participant] = e
	return e
}

func (n *Network) dispatch() {
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if n.closed {
			n.mu.Unlock()
			return
		}
		message := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		message()

		n.mu.Lock()
		n.pending--
		n.cond.Broadcast()
		n.mu.Unlock()
	}
}

// enqueue schedules a handler invocation. The pending counter is
// decremented only after the message ran, so messages a handler
// enqueues while running keep Settle waiting.
func (n *Network) enqueue(message func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, message)
	n.pending++
	n.cond.Broadcast()
}

// deliver queues a handler call on the destination endpoint if it is
// online. Offline destinations silently drop the message, matching
// the fire-and-forget contract.
func (n *Network) deliver(to scene.ParticipantID, call func(distribution.NetworkHandler)) {
	n.mu.Lock()
	var handler distribution.NetworkHandler
	if dest, exists := n.endpoints[to]; exists && dest.online {
		handler = dest.handler
	}
	n.mu.Unlock()
	if handler == nil {
		return
	}
	n.enqueue(func() { call(handler) })
}

// broadcast queues a handler call on every online endpoint except the
// sender.
func (n *Network) broadcast(from scene.ParticipantID, call func(distribution.NetworkHandler)) {
	n.mu.Lock()
	var handlers []distribution.NetworkHandler
	for id, e := range n.endpoints {
		if id != from && e.online && e.handler != nil {
			handlers = append(handlers, e.handler)
		}
	}
	n.mu.Unlock()
	for _, handler := range handlers {
		handler := handler
		n.enqueue(func() { call(handler) })
	}
}

// Endpoint is one participant's attachment to a Network. It
// implements distribution.Transport.
type Endpoint struct {
	network     *Network
	participant scene.ParticipantID
	logger      *slog.Logger

	// handler and online are guarded by the network's mutex.
	handler distribution.NetworkHandler
	online  bool
}

// Compile-time interface check.
var _ distribution.Transport = (*Endpoint)(nil)

// SetHandler installs the inbound dispatch target, normally the
// participant's coordinator.
func (e *Endpoint) SetHandler(handler distribution.NetworkHandler) {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	e.handler = handler
}

// Participant returns the endpoint's identity.
func (e *Endpoint) Participant() scene.ParticipantID {
	return e.participant
}

// Connect brings the endpoint online and exchanges connect
// notifications with every endpoint already online.
func (e *Endpoint) Connect() {
	n := e.network
	n.mu.Lock()
	if e.online {
		n.mu.Unlock()
		return
	}
	e.online = true
	self := e.handler
	var notifications []func()
	for id, other := range n.endpoints {
		if id == e.participant || !other.online {
			continue
		}
		peer := other.participant
		if other.handler != nil {
			handler := other.handler
			notifications = append(notifications, func() { handler.ParticipantConnected(e.participant) })
		}
		if self != nil {
			notifications = append(notifications, func() { self.ParticipantConnected(peer) })
		}
	}
	n.mu.Unlock()

	e.logger.Debug("endpoint online", "participant", e.participant)

	for _, notify := range notifications {
		n.enqueue(notify)
	}
}

// Disconnect takes the endpoint offline and notifies the remaining
// online endpoints.
func (e *Endpoint) Disconnect() {
	n := e.network
	n.mu.Lock()
	if !e.online {
		n.mu.Unlock()
		return
	}
	e.online = false
	var handlers []distribution.NetworkHandler
	for id, other := range n.endpoints {
		if id != e.participant && other.online && other.handler != nil {
			handlers = append(handlers, other.handler)
		}
	}
	n.mu.Unlock()

	e.logger.Debug("endpoint offline", "participant", e.participant)

	for _, handler := range handlers {
		handler := handler
		n.enqueue(func() { handler.ParticipantDisconnected(e.participant) })
	}
}

func (e *Endpoint) SendScenesAvailable(to scene.ParticipantID, scenes []scene.Info, level scene.FeatureLevel) {
	scenes = cloneInfos(scenes)
	e.network.deliver(to, func(h distribution.NetworkHandler) {
		h.HandleScenesAvailable(scenes, e.participant, level)
	})
}

func (e *Endpoint) BroadcastScenesAvailable(scenes []scene.Info, level scene.FeatureLevel) {
	scenes = cloneInfos(scenes)
	e.network.broadcast(e.participant, func(h distribution.NetworkHandler) {
		h.HandleScenesAvailable(scenes, e.participant, level)
	})
}

func (e *Endpoint) BroadcastScenesUnavailable(scenes []scene.Info) {
	scenes = cloneInfos(scenes)
	e.network.broadcast(e.participant, func(h distribution.NetworkHandler) {
		h.HandleScenesUnavailable(scenes, e.participant)
	})
}

func (e *Endpoint) SendInitializeScene(to scene.ParticipantID, sceneID scene.SceneID) {
	e.network.deliver(to, func(h distribution.NetworkHandler) {
		h.HandleInitializeScene(sceneID, e.participant)
	})
}

func (e *Endpoint) SendSubscribeScene(provider scene.ParticipantID, sceneID scene.SceneID) {
	e.network.deliver(provider, func(h distribution.NetworkHandler) {
		h.HandleSubscribeScene(sceneID, e.participant)
	})
}

func (e *Endpoint) SendUnsubscribeScene(provider scene.ParticipantID, sceneID scene.SceneID) {
	e.network.deliver(provider, func(h distribution.NetworkHandler) {
		h.HandleUnsubscribeScene(sceneID, e.participant)
	})
}

func (e *Endpoint) SendSceneUpdateFrame(to scene.ParticipantID, sceneID scene.SceneID, frame []byte) {
	// Frames may be reused by the sender for other destinations.
	frame = append([]byte(nil), frame...)
	e.network.deliver(to, func(h distribution.NetworkHandler) {
		h.HandleSceneUpdateFrame(sceneID, frame, e.participant)
	})
}

func (e *Endpoint) SendRendererEvent(to scene.ParticipantID, sceneID scene.SceneID, data []byte) {
	data = append([]byte(nil), data...)
	e.network.deliver(to, func(h distribution.NetworkHandler) {
		h.HandleRendererEvent(sceneID, data, e.participant)
	})
}

func cloneInfos(scenes []scene.Info) []scene.Info {
	return append([]scene.Info(nil), scenes...)
}
