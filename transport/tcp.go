// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/scenewire/scenewire/distribution"
	"github.com/scenewire/scenewire/lib/codec"
	"github.com/scenewire/scenewire/lib/scene"
)

// Message kinds carried inside tcpMessage. The hello kind is only
// used during the handshake that exchanges participant identities.
const (
	msgHello uint8 = iota + 1
	msgScenesAvailable
	msgScenesUnavailable
	msgInitializeScene
	msgSubscribeScene
	msgUnsubscribeScene
	msgSceneUpdateFrame
	msgRendererEvent
)

// maxTCPMessage bounds a single length-prefixed message. Scene update
// frames are already cut to the coordinator's frame size, so this is
// generous headroom, not a streaming limit.
const maxTCPMessage = 16 << 20

// tcpMessage is the single envelope exchanged on a peer connection:
// a 4-byte little-endian length prefix followed by this struct in
// CBOR. Unused fields are omitted per kind.
type tcpMessage struct {
	Kind         uint8        `cbor:"kind"`
	From         []byte       `cbor:"from,omitempty"`
	Scenes       []scene.Info `cbor:"scenes,omitempty"`
	FeatureLevel uint32       `cbor:"feature_level,omitempty"`
	Scene        uint64       `cbor:"scene,omitempty"`
	Payload      []byte       `cbor:"payload,omitempty"`
}

// TCPConfig configures a TCPEndpoint.
type TCPConfig struct {
	// Participant is this endpoint's identity, exchanged in the
	// connection handshake.
	Participant scene.ParticipantID

	// Handler receives inbound protocol traffic, normally the
	// participant's coordinator. Handler calls run on the reader
	// goroutine of the originating connection, so per-peer ordering
	// is preserved.
	Handler distribution.NetworkHandler

	// DialTimeout bounds connection establishment in DialPeer. Zero
	// means only the context deadline applies.
	DialTimeout time.Duration

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// TCPEndpoint connects coordinators across processes over plain TCP.
// This is the development and same-LAN transport; it requires direct
// reachability between daemons.
type TCPEndpoint struct {
	self        scene.ParticipantID
	handler     distribution.NetworkHandler
	dialTimeout time.Duration
	logger      *slog.Logger

	listener net.Listener

	mu     sync.Mutex
	peers  map[scene.ParticipantID]*tcpPeer
	closed bool
}

// tcpPeer is one established connection. The write mutex serializes
// whole messages; reads happen on a dedicated goroutine.
type tcpPeer struct {
	participant scene.ParticipantID
	conn        net.Conn
	writeMu     sync.Mutex
}

// Compile-time interface check.
var _ distribution.Transport = (*TCPEndpoint)(nil)

// NewTCPEndpoint creates an endpoint listening on the given address
// (e.g. ":7891", or ":0" for a random port). Call Serve to start
// accepting peers.
func NewTCPEndpoint(address string, config TCPConfig) (*TCPEndpoint, error) {
	if !config.Participant.IsValid() {
		return nil, fmt.Errorf("transport: Participant is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("transport: Handler is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return &TCPEndpoint{
		self:        config.Participant,
		handler:     config.Handler,
		dialTimeout: config.DialTimeout,
		logger:      logger,
		listener:    listener,
		peers:       make(map[scene.ParticipantID]*tcpPeer),
	}, nil
}

// Address returns the listen address in "host:port" form.
func (t *TCPEndpoint) Address() string {
	return t.listener.Addr().String()
}

// Serve accepts inbound peer connections until ctx is cancelled or
// Close is called.
func (t *TCPEndpoint) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.listener.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || t.isClosed() {
				return nil
			}
			return fmt.Errorf("accepting peer connection: %w", err)
		}
		go t.handshake(conn, false)
	}
}

// DialPeer connects to another endpoint's listen address. The
// handshake exchanges participant identities; on success both sides
// report ParticipantConnected to their handlers.
func (t *TCPEndpoint) DialPeer(ctx context.Context, address string) error {
	conn, err := (&net.Dialer{Timeout: t.dialTimeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dialing peer %s: %w", address, err)
	}
	go t.handshake(conn, true)
	return nil
}

// Close shuts the listener and all peer connections down.
func (t *TCPEndpoint) Close() error {
	t.mu.Lock()
	t.closed = true
	peers := make([]*tcpPeer, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	t.mu.Unlock()

	for _, p := range peers {
		p.conn.Close()
	}
	return t.listener.Close()
}

func (t *TCPEndpoint) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// handshake sends our hello, reads the peer's, registers the
// connection and enters the read loop. The dialing side sends first;
// the order does not actually matter since both sides always send.
func (t *TCPEndpoint) handshake(conn net.Conn, dialed bool) {
	hello := tcpMessage{Kind: msgHello, From: t.self[:]}
	if err := writeMessage(conn, &hello); err != nil {
		t.logger.Warn("peer handshake send failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	var peerHello tcpMessage
	if err := readMessage(conn, &peerHello); err != nil || peerHello.Kind != msgHello {
		t.logger.Warn("peer handshake receive failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	participant, ok := participantFromBytes(peerHello.From)
	if !ok {
		t.logger.Warn("peer handshake with invalid participant id", "remote", conn.RemoteAddr())
		conn.Close()
		return
	}

	peer := &tcpPeer{participant: participant, conn: conn}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	if _, exists := t.peers[participant]; exists {
		t.mu.Unlock()
		t.logger.Warn("dropping duplicate connection from peer", "participant", participant)
		conn.Close()
		return
	}
	t.peers[participant] = peer
	t.mu.Unlock()

	t.logger.Info("peer connected",
		"participant", participant, "remote", conn.RemoteAddr(), "dialed", dialed)
	t.handler.ParticipantConnected(participant)

	t.readLoop(peer)
}

// readLoop dispatches inbound messages until the connection fails,
// then unregisters the peer and reports the disconnect.
func (t *TCPEndpoint) readLoop(peer *tcpPeer) {
	for {
		var message tcpMessage
		if err := readMessage(peer.conn, &message); err != nil {
			if err != io.EOF && !t.isClosed() {
				t.logger.Warn("peer connection lost",
					"participant", peer.participant, "error", err)
			}
			break
		}
		t.dispatch(peer.participant, &message)
	}

	peer.conn.Close()
	t.mu.Lock()
	if t.peers[peer.participant] == peer {
		delete(t.peers, peer.participant)
	}
	closed := t.closed
	t.mu.Unlock()

	if !closed {
		t.logger.Info("peer disconnected", "participant", peer.participant)
		t.handler.ParticipantDisconnected(peer.participant)
	}
}

func (t *TCPEndpoint) dispatch(from scene.ParticipantID, message *tcpMessage) {
	sceneID := scene.SceneID(message.Scene)
	switch message.Kind {
	case msgScenesAvailable:
		t.handler.HandleScenesAvailable(message.Scenes, from, scene.FeatureLevel(message.FeatureLevel))
	case msgScenesUnavailable:
		t.handler.HandleScenesUnavailable(message.Scenes, from)
	case msgInitializeScene:
		t.handler.HandleInitializeScene(sceneID, from)
	case msgSubscribeScene:
		t.handler.HandleSubscribeScene(sceneID, from)
	case msgUnsubscribeScene:
		t.handler.HandleUnsubscribeScene(sceneID, from)
	case msgSceneUpdateFrame:
		t.handler.HandleSceneUpdateFrame(sceneID, message.Payload, from)
	case msgRendererEvent:
		t.handler.HandleRendererEvent(sceneID, message.Payload, from)
	default:
		t.logger.Warn("ignoring message with unknown kind",
			"participant", from, "kind", message.Kind)
	}
}

// send writes one message to a connected peer. Unknown or already
// disconnected peers drop the message, per the fire-and-forget
// contract.
func (t *TCPEndpoint) send(to scene.ParticipantID, message *tcpMessage) {
	t.mu.Lock()
	peer, exists := t.peers[to]
	t.mu.Unlock()
	if !exists {
		return
	}
	peer.writeMu.Lock()
	err := writeMessage(peer.conn, message)
	peer.writeMu.Unlock()
	if err != nil {
		t.logger.Warn("send to peer failed", "participant", to, "error", err)
		peer.conn.Close()
	}
}

func (t *TCPEndpoint) broadcast(message *tcpMessage) {
	t.mu.Lock()
	targets := make([]scene.ParticipantID, 0, len(t.peers))
	for id := range t.peers {
		targets = append(targets, id)
	}
	t.mu.Unlock()
	for _, to := range targets {
		t.send(to, message)
	}
}

func (t *TCPEndpoint) SendScenesAvailable(to scene.ParticipantID, scenes []scene.Info, level scene.FeatureLevel) {
	t.send(to, &tcpMessage{Kind: msgScenesAvailable, Scenes: scenes, FeatureLevel: uint32(level)})
}

func (t *TCPEndpoint) BroadcastScenesAvailable(scenes []scene.Info, level scene.FeatureLevel) {
	t.broadcast(&tcpMessage{Kind: msgScenesAvailable, Scenes: scenes, FeatureLevel: uint32(level)})
}

func (t *TCPEndpoint) BroadcastScenesUnavailable(scenes []scene.Info) {
	t.broadcast(&tcpMessage{Kind: msgScenesUnavailable, Scenes: scenes})
}

func (t *TCPEndpoint) SendInitializeScene(to scene.ParticipantID, sceneID scene.SceneID) {
	t.send(to, &tcpMessage{Kind: msgInitializeScene, Scene: uint64(sceneID)})
}

func (t *TCPEndpoint) SendSubscribeScene(provider scene.ParticipantID, sceneID scene.SceneID) {
	t.send(provider, &tcpMessage{Kind: msgSubscribeScene, Scene: uint64(sceneID)})
}

func (t *TCPEndpoint) SendUnsubscribeScene(provider scene.ParticipantID, sceneID scene.SceneID) {
	t.send(provider, &tcpMessage{Kind: msgUnsubscribeScene, Scene: uint64(sceneID)})
}

func (t *TCPEndpoint) SendSceneUpdateFrame(to scene.ParticipantID, sceneID scene.SceneID, frame []byte) {
	t.send(to, &tcpMessage{Kind: msgSceneUpdateFrame, Scene: uint64(sceneID), Payload: frame})
}

func (t *TCPEndpoint) SendRendererEvent(to scene.ParticipantID, sceneID scene.SceneID, data []byte) {
	t.send(to, &tcpMessage{Kind: msgRendererEvent, Scene: uint64(sceneID), Payload: data})
}

func participantFromBytes(raw []byte) (scene.ParticipantID, bool) {
	var id scene.ParticipantID
	if len(raw) != len(id) {
		return id, false
	}
	copy(id[:], raw)
	return id, id.IsValid()
}

// writeMessage encodes and writes one length-prefixed message. The
// caller serializes concurrent writers per connection.
func writeMessage(conn net.Conn, message *tcpMessage) error {
	data, err := codec.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)

	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

func readMessage(conn net.Conn, message *tcpMessage) error {
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > maxTCPMessage {
		return fmt.Errorf("message of %d bytes exceeds limit of %d", length, maxTCPMessage)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return fmt.Errorf("reading %d-byte message body: %w", length, err)
	}
	if err := codec.Unmarshal(data, message); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}
