package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for protocol messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for protocol messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding for forward compatibility: unknown keys are ignored.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// PeekMessageKind reads the message kind (CBOR map key 1) without decoding
// the rest of the frame. Returns KindUnknown with an error for frames that
// are not protocol messages.
func PeekMessageKind(data []byte) (MessageKind, error) {
	var peek struct {
		Kind uint8 `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return KindUnknown, fmt.Errorf("failed to peek message kind: %w", err)
	}
	kind := MessageKind(peek.Kind)
	if !kind.IsValid() {
		return KindUnknown, fmt.Errorf("unknown message kind %d", peek.Kind)
	}
	return kind, nil
}

// EncodeConnectionRequest encodes a handshake request, stamping the kind.
func EncodeConnectionRequest(m *ConnectionRequest) ([]byte, error) {
	m.Kind = KindConnectionRequest
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection request: %w", err)
	}
	return Marshal(m)
}

// DecodeConnectionRequest decodes and validates a handshake request.
func DecodeConnectionRequest(data []byte) (*ConnectionRequest, error) {
	var m ConnectionRequest
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode connection request: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection request: %w", err)
	}
	return &m, nil
}

// EncodeConnectionResponse encodes a handshake response, stamping the kind.
func EncodeConnectionResponse(m *ConnectionResponse) ([]byte, error) {
	m.Kind = KindConnectionResponse
	return Marshal(m)
}

// DecodeConnectionResponse decodes a handshake response.
func DecodeConnectionResponse(data []byte) (*ConnectionResponse, error) {
	var m ConnectionResponse
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode connection response: %w", err)
	}
	return &m, nil
}

// EncodeSnapshotRequest encodes a snapshot request, stamping the kind.
func EncodeSnapshotRequest(m *SnapshotRequest) ([]byte, error) {
	m.Kind = KindSnapshotRequest
	return Marshal(m)
}

// DecodeSnapshotRequest decodes a snapshot request.
func DecodeSnapshotRequest(data []byte) (*SnapshotRequest, error) {
	var m SnapshotRequest
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot request: %w", err)
	}
	return &m, nil
}

// EncodeSnapshotResponse encodes a snapshot response, stamping the kind.
func EncodeSnapshotResponse(m *SnapshotResponse) ([]byte, error) {
	m.Kind = KindSnapshotResponse
	return Marshal(m)
}

// DecodeSnapshotResponse decodes a snapshot response.
func DecodeSnapshotResponse(data []byte) (*SnapshotResponse, error) {
	var m SnapshotResponse
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}
	return &m, nil
}

// EncodeSubscriptionRequest encodes a subscription request, stamping the kind.
func EncodeSubscriptionRequest(m *SubscriptionRequest) ([]byte, error) {
	m.Kind = KindSubscriptionRequest
	return Marshal(m)
}

// DecodeSubscriptionRequest decodes a subscription request.
func DecodeSubscriptionRequest(data []byte) (*SubscriptionRequest, error) {
	var m SubscriptionRequest
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode subscription request: %w", err)
	}
	return &m, nil
}

// EncodeSubscriptionResponse encodes a subscription response, stamping the kind.
func EncodeSubscriptionResponse(m *SubscriptionResponse) ([]byte, error) {
	m.Kind = KindSubscriptionResponse
	return Marshal(m)
}

// DecodeSubscriptionResponse decodes a subscription response.
func DecodeSubscriptionResponse(data []byte) (*SubscriptionResponse, error) {
	var m SubscriptionResponse
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}
	return &m, nil
}

// EncodeLiveDataUpdate encodes a pushed update, stamping the kind.
func EncodeLiveDataUpdate(m *LiveDataUpdate) ([]byte, error) {
	m.Kind = KindLiveDataUpdate
	return Marshal(m)
}

// DecodeLiveDataUpdate decodes a pushed update.
func DecodeLiveDataUpdate(data []byte) (*LiveDataUpdate, error) {
	var m LiveDataUpdate
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode live data update: %w", err)
	}
	return &m, nil
}
