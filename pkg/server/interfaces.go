package server

import (
	"github.com/tickstream-protocol/tickstream-go/pkg/discovery"
	"github.com/tickstream-protocol/tickstream-go/pkg/distributor"
	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// DataSource answers snapshot and validity queries. It is satisfied by
// *distributor.Distributor.
type DataSource interface {
	// IsKnown reports whether the key is recognized as valid live data.
	IsKnown(spec livedata.Spec) bool

	// Snapshot returns the last known value for the key, if any.
	Snapshot(spec livedata.Spec) (livedata.FieldSet, bool)
}

// Compile-time check: *distributor.Distributor implements DataSource.
var _ DataSource = (*distributor.Distributor)(nil)

// PeerLister enumerates other known live data servers for the handshake
// response. It is satisfied by *discovery.Registry.
type PeerLister interface {
	Servers() []string
}

// Compile-time check: *discovery.Registry implements PeerLister.
var _ PeerLister = (*discovery.Registry)(nil)
