// Package worker provides a bounded, generic worker pool.
//
// The server uses a shared pool to run client flushes off the ingestion
// path: a slow client socket blocks one worker, never the feed threads
// or other clients. Submit is non-blocking; a full queue returns
// ErrQueueFull so callers get an explicit backpressure signal instead of
// stalling.
//
// Statistics are always tracked with atomics; Prometheus metrics are
// opt-in via WithRegisterer.
package worker
