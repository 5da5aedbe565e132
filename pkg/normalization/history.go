package normalization

import (
	"sync"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// History is the per-key accumulator carried across normalization calls.
// It holds the last successfully normalized field set plus arbitrary
// scratch state for stateful rules. Safe for concurrent use; concurrent
// feed threads may normalize the same key.
type History struct {
	mu             sync.RWMutex
	lastNormalized livedata.FieldSet
	hasNormalized  bool
	scratch        map[string]any
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{scratch: make(map[string]any)}
}

// LastNormalized returns a copy of the last successfully normalized field
// set, and whether one exists.
func (h *History) LastNormalized() (livedata.FieldSet, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.hasNormalized {
		return nil, false
	}
	return h.lastNormalized.Clone(), true
}

// LastValue returns the previous normalized numeric value for one field.
func (h *History) LastValue(name string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.hasNormalized {
		return 0, false
	}
	return h.lastNormalized.Float64(name)
}

// SetLastNormalized records the outcome of a successful normalization.
func (h *History) SetLastNormalized(fields livedata.FieldSet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastNormalized = fields.Clone()
	h.hasNormalized = true
}

// Load returns rule scratch state stored under key.
func (h *History) Load(key string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.scratch[key]
	return v, ok
}

// Store records rule scratch state under key.
func (h *History) Store(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scratch[key] = value
}
