// Package auth defines the authentication boundary for the handshake.
// Only the identity contract is in scope here; provider internals
// (directories, tokens) live behind the Authenticator interface.
package auth

import "sync"

// Identity is the opaque principal resolved for a connection during the
// handshake. It is immutable for the connection's lifetime.
type Identity struct {
	// UserName is the name the client presented.
	UserName string

	// DisplayName is an optional human-readable name.
	DisplayName string
}

// Authenticator resolves a user name to an identity.
type Authenticator interface {
	// Authenticate returns the identity for userName and true, or false
	// when the user is not authorized.
	Authenticate(userName string) (Identity, bool)
}

// AllowAll authorizes every non-empty user name. Intended for
// development and closed networks.
type AllowAll struct{}

// Authenticate implements Authenticator.
func (AllowAll) Authenticate(userName string) (Identity, bool) {
	if userName == "" {
		return Identity{}, false
	}
	return Identity{UserName: userName, DisplayName: userName}, true
}

// StaticUsers authorizes a fixed user list, typically loaded from the
// server configuration.
type StaticUsers struct {
	mu    sync.RWMutex
	users map[string]Identity
}

// NewStaticUsers creates an authenticator over the given user names.
func NewStaticUsers(userNames ...string) *StaticUsers {
	s := &StaticUsers{users: make(map[string]Identity, len(userNames))}
	for _, name := range userNames {
		s.users[name] = Identity{UserName: name, DisplayName: name}
	}
	return s
}

// Add registers a user.
func (s *StaticUsers) Add(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[identity.UserName] = identity
}

// Authenticate implements Authenticator.
func (s *StaticUsers) Authenticate(userName string) (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.users[userName]
	return id, ok
}

// Compile-time interface satisfaction checks.
var (
	_ Authenticator = AllowAll{}
	_ Authenticator = (*StaticUsers)(nil)
)
