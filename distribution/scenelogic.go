// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

package distribution

import (
	"github.com/scenewire/scenewire/lib/resource"
	"github.com/scenewire/scenewire/lib/scene"
)

// LogicMode selects the distribution strategy for a locally produced
// scene. The choice is made once at scene creation and never changes.
type LogicMode uint8

const (
	// LogicShadowCopy keeps a cumulative copy of all flushed actions
	// and resources so subscribers arriving after publication receive
	// the full scene state immediately, at the memory cost of the
	// copy.
	LogicShadowCopy LogicMode = iota

	// LogicDirect keeps no copy. A late subscriber waits for the next
	// flush and receives the stream from that point on; scene content
	// delivered earlier is the producer's responsibility to resend.
	// Suited to local-only scenes where the single renderer attaches
	// before the first flush.
	LogicDirect
)

// String returns the mode name used in logs.
func (m LogicMode) String() string {
	if m == LogicDirect {
		return "direct"
	}
	return "shadow-copy"
}

// subscriberState distinguishes subscribers waiting for their first
// scene initialization from those actively receiving updates.
type subscriberState uint8

const (
	subscriberWaiting subscriberState = iota
	subscriberActive
)

// sceneLogic owns the distribution state of one locally produced
// scene: its subscriber set, the pending (unflushed) mutation batch,
// and — in shadow-copy mode — the cumulative scene state for late
// subscribers. Instances live in the coordinator's logic map and are
// only touched under the coordinator mutex.
type sceneLogic struct {
	id   scene.SceneID
	name string
	mode LogicMode

	published bool
	pubMode   scene.PublicationMode

	subscribers map[scene.ParticipantID]subscriberState

	pendingActions   []scene.Action
	pendingResources []*resource.Resource

	// flushVersion advances monotonically with every flush; the zero
	// value means nothing has been flushed yet.
	flushVersion uint64

	// shadowActions/shadowResources accumulate the flushed scene
	// state in shadow-copy mode. nil slices in direct mode.
	shadowActions   []scene.Action
	shadowResources []*resource.Resource
}

func newSceneLogic(id scene.SceneID, name string, mode LogicMode) *sceneLogic {
	return &sceneLogic{
		id:          id,
		name:        name,
		mode:        mode,
		subscribers: make(map[scene.ParticipantID]subscriberState),
	}
}

// info returns the scene's publication descriptor. Only meaningful
// while published.
func (l *sceneLogic) info() scene.Info {
	return scene.Info{ID: l.id, Name: l.name, Mode: l.pubMode}
}

// hasSubscriber reports whether the participant is waiting or active.
func (l *sceneLogic) hasSubscriber(p scene.ParticipantID) bool {
	_, ok := l.subscribers[p]
	return ok
}

// addSubscriber registers a participant as waiting. The coordinator
// decides when it is served (immediately in shadow-copy mode, next
// flush in direct mode).
func (l *sceneLogic) addSubscriber(p scene.ParticipantID) {
	l.subscribers[p] = subscriberWaiting
}

// removeSubscriber drops a participant regardless of state.
func (l *sceneLogic) removeSubscriber(p scene.ParticipantID) {
	delete(l.subscribers, p)
}

// subscriberList returns all waiting and active subscribers.
func (l *sceneLogic) subscriberList() []scene.ParticipantID {
	list := make([]scene.ParticipantID, 0, len(l.subscribers))
	for p := range l.subscribers {
		list = append(list, p)
	}
	return list
}

// waitingList returns the subscribers not yet initialized.
func (l *sceneLogic) waitingList() []scene.ParticipantID {
	var list []scene.ParticipantID
	for p, state := range l.subscribers {
		if state == subscriberWaiting {
			list = append(list, p)
		}
	}
	return list
}

// activate promotes a subscriber to active after its initialization
// has been sent.
func (l *sceneLogic) activate(p scene.ParticipantID) {
	if _, ok := l.subscribers[p]; ok {
		l.subscribers[p] = subscriberActive
	}
}

// appendActions queues scene mutations for the next flush. In
// shadow-copy mode the actions also extend the cumulative state.
func (l *sceneLogic) appendActions(actions []scene.Action) {
	l.pendingActions = append(l.pendingActions, actions...)
	if l.mode == LogicShadowCopy {
		l.shadowActions = append(l.shadowActions, actions...)
	}
}

// appendResource queues a resource to embed with the next flush.
func (l *sceneLogic) appendResource(res *resource.Resource) {
	l.pendingResources = append(l.pendingResources, res)
	if l.mode == LogicShadowCopy {
		l.shadowResources = append(l.shadowResources, res)
	}
}

// takeFlush closes the pending batch into an update carrying the next
// flush version. The pending buffers are reset; the shadow copy (if
// any) is unaffected, it already contains the flushed content.
func (l *sceneLogic) takeFlush(flush scene.FlushInfo) *scene.Update {
	flush.Version = l.nextFlushVersion()
	update := &scene.Update{
		Actions:   l.pendingActions,
		Resources: l.pendingResources,
		Flush:     flush,
	}
	l.pendingActions = nil
	l.pendingResources = nil
	return update
}

// shadowUpdate builds the full-state update served to a late
// subscriber in shadow-copy mode. It reuses the current flush version:
// the copy represents the scene as of the last flush.
func (l *sceneLogic) shadowUpdate(flush scene.FlushInfo) *scene.Update {
	flush.Version = l.flushVersion
	return &scene.Update{
		Actions:   l.shadowActions,
		Resources: l.shadowResources,
		Flush:     flush,
	}
}

func (l *sceneLogic) nextFlushVersion() uint64 {
	l.flushVersion++
	return l.flushVersion
}
