package livedata

import "fmt"

// Spec identifies one live data stream: a data item under a named
// normalization scheme. Spec is an immutable value type with structural
// equality and is usable as a map key.
type Spec struct {
	// Scheme names the normalization rule chain the values are produced by.
	Scheme string

	// ItemID identifies the data item (e.g. an external security identifier).
	ItemID string
}

// NewSpec creates a specification key.
func NewSpec(scheme, itemID string) Spec {
	return Spec{Scheme: scheme, ItemID: itemID}
}

// String returns "scheme/itemID" for logging.
func (s Spec) String() string {
	return fmt.Sprintf("%s/%s", s.Scheme, s.ItemID)
}

// IsZero reports whether both parts are empty.
func (s Spec) IsZero() bool {
	return s.Scheme == "" && s.ItemID == ""
}
