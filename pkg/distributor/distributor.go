package distributor

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
	"github.com/tickstream-protocol/tickstream-go/pkg/lkv"
	"github.com/tickstream-protocol/tickstream-go/pkg/normalization"
)

// UpdateFunc receives each normalized update for downstream fan-out.
// It is called on the ingestion goroutine and must not block; anything
// slow belongs behind a buffer or worker pool.
type UpdateFunc func(spec livedata.Spec, fields livedata.FieldSet)

// entry pairs the store and history for one specification key.
type entry struct {
	store lkv.Store
	hist  *normalization.History
}

// Distributor runs raw ticks through every configured normalization
// scheme and maintains the last-known-value cache.
type Distributor struct {
	schemes  []*normalization.Scheme
	provider lkv.Provider

	// entries maps livedata.Spec -> *entry. Entries are append-only:
	// created on first sight, never removed while the process runs.
	entries sync.Map

	mu       sync.RWMutex
	onUpdate UpdateFunc
	logger   *slog.Logger

	// Statistics (atomic)
	ticksReceived     atomic.Int64
	updatesPublished  atomic.Int64
	normalizeFailures atomic.Int64
}

// New creates a distributor over the given schemes and store provider.
func New(provider lkv.Provider, schemes ...*normalization.Scheme) *Distributor {
	return &Distributor{
		schemes:  schemes,
		provider: provider,
		logger:   slog.Default(),
	}
}

// SetLogger sets the application logger.
func (d *Distributor) SetLogger(logger *slog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if logger != nil {
		d.logger = logger
	}
}

// OnUpdate sets the normalized-update callback.
func (d *Distributor) OnUpdate(fn UpdateFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUpdate = fn
}

// Schemes returns the configured scheme names.
func (d *Distributor) Schemes() []string {
	names := make([]string, len(d.schemes))
	for i, s := range d.schemes {
		names[i] = s.Name()
	}
	return names
}

// ensureEntry returns the entry for spec, creating it atomically on first
// sight. When two feed threads race, the first stored entry wins and the
// loser's freshly built entry is discarded.
func (d *Distributor) ensureEntry(spec livedata.Spec) *entry {
	if e, ok := d.entries.Load(spec); ok {
		return e.(*entry)
	}
	fresh := &entry{
		store: d.provider.NewInstance(spec),
		hist:  normalization.NewHistory(),
	}
	e, _ := d.entries.LoadOrStore(spec, fresh)
	return e.(*entry)
}

// IsKnown reports whether the key has a store entry, i.e. has been seen
// by ingestion or created by Bootstrap. The server uses this as the
// validity check for snapshot and subscription requests.
func (d *Distributor) IsKnown(spec livedata.Spec) bool {
	_, ok := d.entries.Load(spec)
	return ok
}

// Snapshot returns the last known value for the key, if any.
func (d *Distributor) Snapshot(spec livedata.Spec) (livedata.FieldSet, bool) {
	e, ok := d.entries.Load(spec)
	if !ok {
		return nil, false
	}
	return e.(*entry).store.Get()
}

// UpdateReceived ingests one raw tick for an external identifier. The
// tick is normalized under every configured scheme independently: a
// failure under one scheme is counted and logged but never prevents the
// remaining schemes from processing.
func (d *Distributor) UpdateReceived(externalID string, rawFields livedata.FieldSet) {
	d.ticksReceived.Add(1)

	d.mu.RLock()
	onUpdate := d.onUpdate
	logger := d.logger
	d.mu.RUnlock()

	for _, scheme := range d.schemes {
		spec := livedata.NewSpec(scheme.Name(), externalID)
		e := d.ensureEntry(spec)

		normalized, err := scheme.Normalize(externalID, rawFields, e.hist)
		if err != nil {
			d.normalizeFailures.Add(1)
			logger.Warn("normalization failed",
				"item_id", externalID,
				"scheme", scheme.Name(),
				"error", err)
			continue
		}

		e.store.Put(normalized)
		d.updatesPublished.Add(1)

		if onUpdate != nil {
			onUpdate(spec, normalized)
		}
	}
}

// Bootstrap eagerly creates store and history entries for every item
// identifier the backing provider can enumerate, so first-touch cost is
// paid once at startup rather than on the first live tick. Best-effort:
// a provider without enumeration support is skipped without error.
// Returns the number of entries created.
func (d *Distributor) Bootstrap() int {
	enum, ok := d.provider.(lkv.Enumerator)
	if !ok {
		return 0
	}

	created := 0
	for _, scheme := range d.schemes {
		for _, id := range enum.EnumerateKnownIDs(scheme.Name()) {
			spec := livedata.NewSpec(scheme.Name(), id)
			if _, seen := d.entries.Load(spec); !seen {
				d.ensureEntry(spec)
				created++
			}
		}
	}
	return created
}

// Stats is a point-in-time snapshot of distributor counters.
type Stats struct {
	TicksReceived     int64 `json:"ticks_received"`
	UpdatesPublished  int64 `json:"updates_published"`
	NormalizeFailures int64 `json:"normalize_failures"`
}

// Stats returns current counters.
func (d *Distributor) Stats() Stats {
	return Stats{
		TicksReceived:     d.ticksReceived.Load(),
		UpdatesPublished:  d.updatesPublished.Load(),
		NormalizeFailures: d.normalizeFailures.Load(),
	}
}
