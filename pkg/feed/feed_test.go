package feed

import (
	"context"
	"testing"
	"time"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

func TestSimulatedTickShape(t *testing.T) {
	sim := NewSimulated(SimulatedConfig{
		Symbols: []string{"AAPL"},
		Seed:    42,
	})

	fields := sim.Tick("AAPL")

	bid, hasBid := fields.Float64(livedata.FieldBid)
	ask, hasAsk := fields.Float64(livedata.FieldAsk)
	last, hasLast := fields.Float64(livedata.FieldLast)
	if !hasBid || !hasAsk || !hasLast {
		t.Fatalf("tick missing price fields: %v", fields.Names())
	}
	if bid >= ask {
		t.Errorf("bid %v >= ask %v", bid, ask)
	}
	if last <= bid || last >= ask {
		t.Errorf("last %v outside spread [%v, %v]", last, bid, ask)
	}
	if _, ok := fields.Get(livedata.FieldVolume); !ok {
		t.Error("tick missing VOLUME")
	}
}

func TestSimulatedDeterministicWithSeed(t *testing.T) {
	a := NewSimulated(SimulatedConfig{Symbols: []string{"AAPL"}, Seed: 7})
	b := NewSimulated(SimulatedConfig{Symbols: []string{"AAPL"}, Seed: 7})

	for i := 0; i < 10; i++ {
		ta, _ := a.Tick("AAPL").Float64(livedata.FieldLast)
		tb, _ := b.Tick("AAPL").Float64(livedata.FieldLast)
		if ta != tb {
			t.Fatalf("tick %d diverged: %v vs %v", i, ta, tb)
		}
	}
}

func TestSimulatedRunUntilCancel(t *testing.T) {
	sim := NewSimulated(SimulatedConfig{
		Symbols:  []string{"AAPL", "MSFT"},
		Interval: time.Millisecond,
		Seed:     1,
	})

	ticks := make(chan string, 100)
	sink := SinkFunc(func(itemID string, _ livedata.FieldSet) {
		select {
		case ticks <- itemID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, sink) }()

	// Both symbols tick within a reasonable window.
	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-ticks:
			seen[id] = true
		case <-deadline:
			t.Fatalf("symbols seen = %v, want both", seen)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestStatsAdapterCounts(t *testing.T) {
	sim := NewSimulated(SimulatedConfig{
		Symbols:  []string{"AAPL"},
		Interval: time.Millisecond,
		Seed:     3,
	})
	stats := NewStatsAdapter(sim)

	if stats.RemoteConnectionDescription() != "simulated" {
		t.Errorf("RemoteConnectionDescription() = %q", stats.RemoteConnectionDescription())
	}

	arrived := make(chan struct{}, 10)
	sink := SinkFunc(func(string, livedata.FieldSet) {
		select {
		case arrived <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- stats.Run(ctx, sink) }()

	for i := 0; i < 3; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("ticks did not arrive")
		}
	}
	cancel()
	<-done

	if stats.TotalTicks() < 3 {
		t.Errorf("TotalTicks() = %d, want >= 3", stats.TotalTicks())
	}
	if stats.TicksFor("AAPL") < 3 {
		t.Errorf("TicksFor(AAPL) = %d, want >= 3", stats.TicksFor("AAPL"))
	}
	if symbols := stats.Symbols(); len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("Symbols() = %v, want [AAPL]", symbols)
	}
}
