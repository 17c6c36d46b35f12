// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package distribution implements the scene distribution coordinator:
// the control-plane state machine that publishes locally produced
// scenes, tracks remote subscriptions, routes scene updates to local
// and remote destinations, and demultiplexes inbound protocol events.
//
// The coordinator is a client of a Transport (reliable, ordered,
// point-to-point channels keyed by participant identity) and drives a
// single RendererHandler as its sole output surface toward rendering.
// All public operations run on caller-supplied goroutines and are
// serialized behind one coordinator mutex; transport sends are
// fire-and-forget handoffs, so the mutex is never held across network
// I/O waits.
package distribution
