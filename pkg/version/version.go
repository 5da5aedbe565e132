// Package version provides protocol version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Identifier returns the protocol identifier string for a major version,
// as advertised in the handshake capabilities: "tickstream/N".
func Identifier(major uint16) string {
	return fmt.Sprintf("tickstream/%d", major)
}

// MajorFromIdentifier extracts the major version from a protocol identifier.
func MajorFromIdentifier(id string) (uint16, error) {
	if !strings.HasPrefix(id, "tickstream/") {
		return 0, fmt.Errorf("not a tickstream protocol identifier: %q", id)
	}

	suffix := id[len("tickstream/"):]
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in identifier: %q", id)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in identifier %q: %w", id, err)
	}

	return uint16(major), nil
}

// CurrentIdentifier returns the protocol identifier for the current version.
func CurrentIdentifier() string {
	current, _ := Parse(Current)
	return Identifier(current.Major)
}
