package lkv

import (
	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// Store holds the most recent normalized field set for one specification
// key. Implementations must be safe for concurrent single-key access;
// there is no ordering guarantee across keys.
type Store interface {
	// Get returns the current field set and whether one has been stored.
	Get() (livedata.FieldSet, bool)

	// Put overwrites the current field set.
	Put(fields livedata.FieldSet)
}

// Provider creates backing store instances for never-seen keys.
type Provider interface {
	// NewInstance returns the store backing the given key, creating it if
	// the key has never been seen.
	NewInstance(spec livedata.Spec) Store
}

// Enumerator is an optional capability of a Provider: enumerating every
// known item identifier so store entries can be created eagerly at
// startup. Providers that cannot enumerate simply do not implement it.
type Enumerator interface {
	// EnumerateKnownIDs returns all item identifiers known to the backing
	// for the given normalization scheme.
	EnumerateKnownIDs(scheme string) []string
}
