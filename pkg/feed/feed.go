package feed

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// Sink accepts raw ticks from an upstream source. The distributor's
// ingestion entry point satisfies it.
type Sink interface {
	UpdateReceived(itemID string, fields livedata.FieldSet)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(itemID string, fields livedata.FieldSet)

// UpdateReceived calls f.
func (f SinkFunc) UpdateReceived(itemID string, fields livedata.FieldSet) {
	f(itemID, fields)
}

// Adapter is an upstream market data connection. Run blocks, pushing
// ticks into the sink until the context ends or the upstream fails.
type Adapter interface {
	// Run consumes the upstream until ctx is done. A nil return means
	// the context ended; any other error means the upstream broke.
	Run(ctx context.Context, sink Sink) error

	// RemoteConnectionDescription names the upstream for logs and
	// diagnostics, e.g. "simulated" or "fix://feed.example.com:9880".
	RemoteConnectionDescription() string
}

// StatsAdapter wraps an Adapter and counts ticks per symbol as they
// pass through.
type StatsAdapter struct {
	inner Adapter

	total atomic.Int64

	mu      sync.Mutex
	perItem map[string]int64
}

// NewStatsAdapter wraps adapter with per-symbol tick counting.
func NewStatsAdapter(adapter Adapter) *StatsAdapter {
	return &StatsAdapter{
		inner:   adapter,
		perItem: make(map[string]int64),
	}
}

// Run runs the wrapped adapter, counting every tick it emits.
func (s *StatsAdapter) Run(ctx context.Context, sink Sink) error {
	counting := SinkFunc(func(itemID string, fields livedata.FieldSet) {
		s.total.Add(1)
		s.mu.Lock()
		s.perItem[itemID]++
		s.mu.Unlock()
		sink.UpdateReceived(itemID, fields)
	})
	return s.inner.Run(ctx, counting)
}

// RemoteConnectionDescription defers to the wrapped adapter.
func (s *StatsAdapter) RemoteConnectionDescription() string {
	return s.inner.RemoteConnectionDescription()
}

// TotalTicks returns the number of ticks seen so far.
func (s *StatsAdapter) TotalTicks() int64 {
	return s.total.Load()
}

// TicksFor returns the tick count for one symbol.
func (s *StatsAdapter) TicksFor(itemID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perItem[itemID]
}

// Symbols returns the symbols seen so far, sorted.
func (s *StatsAdapter) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbols := make([]string, 0, len(s.perItem))
	for id := range s.perItem {
		symbols = append(symbols, id)
	}
	sort.Strings(symbols)
	return symbols
}

var _ Adapter = (*StatsAdapter)(nil)
