// Copyright 2026 The Scenewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides concrete carriers for the distribution
// protocol: an in-process Network hub for tests and single-process
// setups, and a TCP endpoint for daemons on the same LAN.
//
// Both implement distribution.Transport on the sending side and
// dispatch inbound traffic into a distribution.NetworkHandler. All
// sends are fire-and-forget; delivery failures surface as participant
// disconnects, never as send errors.
package transport
