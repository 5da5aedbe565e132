// Package server implements the live data distribution endpoint: the
// per-connection protocol state machine and the fan-out of normalized
// updates to subscribed clients.
//
// Each connection moves AWAITING_HANDSHAKE -> ACTIVE -> CLOSED. The first
// message must be a connection request; anything else is a fatal protocol
// violation. Once active, a client may interleave snapshot and
// subscription requests freely, and receives unsolicited live data
// updates for its subscriptions.
//
// Delivery is coalescing: each connection keeps at most one pending field
// set per specification key, and a new update replaces an unflushed one.
// Flushes run on a shared worker pool so a slow client socket never
// blocks ingestion or other clients.
package server
