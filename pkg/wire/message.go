package wire

import (
	"fmt"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// MessageKind identifies the type of a wire message. It is always encoded
// under CBOR map key 1.
type MessageKind uint8

const (
	KindUnknown MessageKind = 0

	// KindConnectionRequest is the client handshake. It must be the first
	// message on a new connection.
	KindConnectionRequest MessageKind = 1

	// KindConnectionResponse answers the handshake.
	KindConnectionResponse MessageKind = 2

	// KindSnapshotRequest asks for the current value of one item.
	KindSnapshotRequest MessageKind = 3

	// KindSnapshotResponse carries the snapshot or a failure result.
	KindSnapshotResponse MessageKind = 4

	// KindSubscriptionRequest asks for pushed updates for one item.
	KindSubscriptionRequest MessageKind = 5

	// KindSubscriptionResponse answers a subscription request; on success
	// it embeds the current snapshot so the client never sees a gap
	// between the snapshot and the first pushed update.
	KindSubscriptionResponse MessageKind = 6

	// KindLiveDataUpdate is pushed unsolicited to subscribed clients.
	KindLiveDataUpdate MessageKind = 7
)

// String returns the message kind name.
func (k MessageKind) String() string {
	switch k {
	case KindConnectionRequest:
		return "CONNECTION_REQUEST"
	case KindConnectionResponse:
		return "CONNECTION_RESPONSE"
	case KindSnapshotRequest:
		return "SNAPSHOT_REQUEST"
	case KindSnapshotResponse:
		return "SNAPSHOT_RESPONSE"
	case KindSubscriptionRequest:
		return "SUBSCRIPTION_REQUEST"
	case KindSubscriptionResponse:
		return "SUBSCRIPTION_RESPONSE"
	case KindLiveDataUpdate:
		return "LIVE_DATA_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether the kind is one of the seven protocol kinds.
func (k MessageKind) IsValid() bool {
	return k >= KindConnectionRequest && k <= KindLiveDataUpdate
}

// ConnectionRequest is the client handshake message.
//
// CBOR encoding:
//
//	{
//	  1: kind,      // 1
//	  2: userName   // string
//	}
type ConnectionRequest struct {
	Kind     MessageKind `cbor:"1,keyasint"`
	UserName string      `cbor:"2,keyasint"`
}

// Validate checks the request for protocol conformance.
func (m *ConnectionRequest) Validate() error {
	if m.Kind != KindConnectionRequest {
		return fmt.Errorf("connection request has kind %s", m.Kind)
	}
	if m.UserName == "" {
		return fmt.Errorf("connection request requires a user name")
	}
	return nil
}

// ConnectionResponse answers the handshake.
//
// CBOR encoding:
//
//	{
//	  1: kind,              // 2
//	  2: result,            // uint8
//	  3: availableServers,  // array of string
//	  4: capabilities       // map of string -> string
//	}
type ConnectionResponse struct {
	Kind             MessageKind       `cbor:"1,keyasint"`
	Result           Result            `cbor:"2,keyasint"`
	AvailableServers []string          `cbor:"3,keyasint,omitempty"`
	Capabilities     map[string]string `cbor:"4,keyasint,omitempty"`
}

// SnapshotRequest asks for the current value of one item under one
// normalization scheme.
//
// CBOR encoding:
//
//	{
//	  1: kind,           // 3
//	  2: correlationId,  // string
//	  3: itemId,         // string
//	  4: scheme          // string
//	}
type SnapshotRequest struct {
	Kind          MessageKind `cbor:"1,keyasint"`
	CorrelationID string      `cbor:"2,keyasint"`
	ItemID        string      `cbor:"3,keyasint"`
	Scheme        string      `cbor:"4,keyasint"`
}

// Spec returns the specification key the request addresses.
func (m *SnapshotRequest) Spec() livedata.Spec {
	return livedata.NewSpec(m.Scheme, m.ItemID)
}

// SnapshotResponse carries the current field set, or a failure result with
// no values.
//
// CBOR encoding:
//
//	{
//	  1: kind,           // 4
//	  2: correlationId,  // string
//	  3: itemId,         // string
//	  4: scheme,         // string
//	  5: result,         // uint8
//	  6: values          // array of field
//	}
type SnapshotResponse struct {
	Kind          MessageKind       `cbor:"1,keyasint"`
	CorrelationID string            `cbor:"2,keyasint"`
	ItemID        string            `cbor:"3,keyasint"`
	Scheme        string            `cbor:"4,keyasint"`
	Result        Result            `cbor:"5,keyasint"`
	Values        livedata.FieldSet `cbor:"6,keyasint,omitempty"`
}

// SubscriptionRequest asks for pushed updates for one item.
//
// CBOR encoding mirrors SnapshotRequest with kind 5.
type SubscriptionRequest struct {
	Kind          MessageKind `cbor:"1,keyasint"`
	CorrelationID string      `cbor:"2,keyasint"`
	ItemID        string      `cbor:"3,keyasint"`
	Scheme        string      `cbor:"4,keyasint"`
}

// Spec returns the specification key the request addresses.
func (m *SubscriptionRequest) Spec() livedata.Spec {
	return livedata.NewSpec(m.Scheme, m.ItemID)
}

// SubscriptionResponse answers a subscription request. On success the
// Snapshot field holds the current values at subscription time.
//
// CBOR encoding mirrors SnapshotResponse with kind 6; key 6 is the
// priming snapshot.
type SubscriptionResponse struct {
	Kind          MessageKind       `cbor:"1,keyasint"`
	CorrelationID string            `cbor:"2,keyasint"`
	ItemID        string            `cbor:"3,keyasint"`
	Scheme        string            `cbor:"4,keyasint"`
	Result        Result            `cbor:"5,keyasint"`
	Snapshot      livedata.FieldSet `cbor:"6,keyasint,omitempty"`
}

// LiveDataUpdate is pushed to subscribed clients. It is not paired with a
// request and carries no correlation ID.
//
// CBOR encoding:
//
//	{
//	  1: kind,    // 7
//	  2: itemId,  // string
//	  3: scheme,  // string
//	  4: values   // array of field
//	}
type LiveDataUpdate struct {
	Kind   MessageKind       `cbor:"1,keyasint"`
	ItemID string            `cbor:"2,keyasint"`
	Scheme string            `cbor:"3,keyasint"`
	Values livedata.FieldSet `cbor:"4,keyasint"`
}

// Spec returns the specification key the update is for.
func (m *LiveDataUpdate) Spec() livedata.Spec {
	return livedata.NewSpec(m.Scheme, m.ItemID)
}
