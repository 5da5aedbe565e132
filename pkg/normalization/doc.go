// Package normalization transforms raw feed values into canonical field
// sets.
//
// A Scheme is a named, ordered chain of rules. Each update for a key runs
// through the chain together with that key's History, the accumulator
// that stateful rules (deltas, staleness flags) read and write. History
// is created lazily the first time a key is seen and lives for the rest
// of the process.
//
// A rule error aborts the chain for that update; the key's history is
// left as it was before the update, so a later good update picks up
// where the last good one left off.
package normalization
