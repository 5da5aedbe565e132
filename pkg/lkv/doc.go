// Package lkv defines the last-known-value store: the cache of the most
// recent normalized field set per specification key.
//
// The backing is pluggable. The in-memory implementation covers the
// common case; a Provider that delegates to an external reference-data or
// tick cache can be substituted without touching the distributor or the
// server. Cache lifetime equals the lifetime of the backing store; the
// cache is rebuilt from the upstream provider after a restart, never
// persisted.
package lkv
