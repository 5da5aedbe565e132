// Package livedata defines the core value types shared by every layer of
// the distribution server: the specification key identifying a live data
// stream and the ordered field set exchanged for snapshots and updates.
package livedata
