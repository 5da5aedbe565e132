package lkv

import (
	"sort"
	"sync"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// MemoryStore is an in-memory Store for one key.
type MemoryStore struct {
	mu     sync.RWMutex
	fields livedata.FieldSet
	set    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the current field set and whether one has been stored.
// The returned set is a copy; callers may not mutate stored state.
func (s *MemoryStore) Get() (livedata.FieldSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return nil, false
	}
	return s.fields.Clone(), true
}

// Put overwrites the current field set.
func (s *MemoryStore) Put(fields livedata.FieldSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = fields.Clone()
	s.set = true
}

// MemoryProvider hands out MemoryStore instances and remembers which keys
// it has seen. It optionally pre-registers known item identifiers so the
// distributor can bootstrap them eagerly.
type MemoryProvider struct {
	mu       sync.Mutex
	stores   map[livedata.Spec]*MemoryStore
	knownIDs map[string]struct{}
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		stores:   make(map[livedata.Spec]*MemoryStore),
		knownIDs: make(map[string]struct{}),
	}
}

// RegisterKnownID records an item identifier for enumeration.
func (p *MemoryProvider) RegisterKnownID(itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.knownIDs[itemID] = struct{}{}
}

// NewInstance returns the store for the given key, creating it on first
// sight.
func (p *MemoryProvider) NewInstance(spec livedata.Spec) Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	store, ok := p.stores[spec]
	if !ok {
		store = NewMemoryStore()
		p.stores[spec] = store
		p.knownIDs[spec.ItemID] = struct{}{}
	}
	return store
}

// EnumerateKnownIDs returns every registered item identifier, sorted.
// The scheme is irrelevant for the in-memory backing: all schemes share
// the same identifier universe.
func (p *MemoryProvider) EnumerateKnownIDs(string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.knownIDs))
	for id := range p.knownIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Compile-time interface satisfaction checks.
var (
	_ Store      = (*MemoryStore)(nil)
	_ Provider   = (*MemoryProvider)(nil)
	_ Enumerator = (*MemoryProvider)(nil)
)
