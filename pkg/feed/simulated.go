package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

// SimulatedConfig configures a simulated feed.
type SimulatedConfig struct {
	// Symbols to generate ticks for. Required.
	Symbols []string

	// Interval between ticks (default 250ms).
	Interval time.Duration

	// StartPrice is the initial mid price per symbol (default 100.0).
	StartPrice float64

	// Volatility is the per-tick random walk step size (default 0.25).
	Volatility float64

	// Seed for deterministic output in tests. Zero seeds from the clock.
	Seed int64
}

// Simulated generates random-walk BID/ASK/LAST quotes for a fixed
// symbol set. Each tick moves one symbol's mid price by a uniform step
// and emits a quote with a small spread around it.
type Simulated struct {
	config SimulatedConfig
	rng    *rand.Rand
	prices map[string]float64
	volume map[string]int64
}

// NewSimulated creates a simulated feed.
func NewSimulated(config SimulatedConfig) *Simulated {
	if config.Interval <= 0 {
		config.Interval = 250 * time.Millisecond
	}
	if config.StartPrice <= 0 {
		config.StartPrice = 100.0
	}
	if config.Volatility <= 0 {
		config.Volatility = 0.25
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulated{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64, len(config.Symbols)),
		volume: make(map[string]int64, len(config.Symbols)),
	}
	for _, symbol := range config.Symbols {
		s.prices[symbol] = config.StartPrice
	}
	return s
}

// Run emits ticks until ctx is done. Symbols rotate round-robin so
// every one keeps ticking.
func (s *Simulated) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if len(s.config.Symbols) == 0 {
				continue
			}
			symbol := s.config.Symbols[next%len(s.config.Symbols)]
			next++
			sink.UpdateReceived(symbol, s.tick(symbol))
		}
	}
}

// RemoteConnectionDescription names this source.
func (s *Simulated) RemoteConnectionDescription() string {
	return "simulated"
}

// Tick generates and returns one quote for symbol without a sink,
// for priming stores and for tests.
func (s *Simulated) Tick(symbol string) livedata.FieldSet {
	return s.tick(symbol)
}

func (s *Simulated) tick(symbol string) livedata.FieldSet {
	mid := s.prices[symbol]
	mid += (s.rng.Float64()*2 - 1) * s.config.Volatility
	if mid < s.config.Volatility {
		mid = s.config.Volatility
	}
	s.prices[symbol] = mid

	spread := mid * 0.0005
	s.volume[symbol] += int64(s.rng.Intn(500) + 1)

	var fields livedata.FieldSet
	fields = fields.Set(livedata.FieldBid, mid-spread)
	fields = fields.Set(livedata.FieldAsk, mid+spread)
	fields = fields.Set(livedata.FieldLast, mid)
	fields = fields.Set(livedata.FieldVolume, s.volume[symbol])
	return fields
}

var _ Adapter = (*Simulated)(nil)
