// Package distributor ingests raw ticks from upstream feed adapters,
// normalizes them under every configured scheme, maintains the
// last-known-value cache, and emits normalized-update events for fan-out.
//
// UpdateReceived is the sole ingestion entry point exposed to the
// surrounding platform. It is safe to call from multiple feed threads;
// store and history entries are created with a single atomic
// create-if-absent so racing feed threads converge on one entry per key.
package distributor
