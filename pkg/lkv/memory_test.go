package lkv

import (
	"testing"

	"github.com/tickstream-protocol/tickstream-go/pkg/livedata"
)

func TestMemoryStoreEmpty(t *testing.T) {
	store := NewMemoryStore()

	fields, ok := store.Get()
	if ok {
		t.Error("Get() = true on empty store, want false")
	}
	if fields != nil {
		t.Errorf("Get() = %v on empty store, want nil", fields)
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()

	var fields livedata.FieldSet
	fields = fields.Set(livedata.FieldBid, 99.5)
	store.Put(fields)

	got, ok := store.Get()
	if !ok {
		t.Fatal("Get() = false after Put")
	}
	if v, _ := got.Float64(livedata.FieldBid); v != 99.5 {
		t.Errorf("BID = %v, want 99.5", v)
	}

	// A later Put replaces, never merges.
	var next livedata.FieldSet
	next = next.Set(livedata.FieldAsk, 100.5)
	store.Put(next)

	got, _ = store.Get()
	if _, ok := got.Get(livedata.FieldBid); ok {
		t.Error("BID survived a replacing Put")
	}
	if v, _ := got.Float64(livedata.FieldAsk); v != 100.5 {
		t.Errorf("ASK = %v, want 100.5", v)
	}
}

func TestMemoryStoreCopyIsolation(t *testing.T) {
	store := NewMemoryStore()

	var fields livedata.FieldSet
	fields = fields.Set("A", 1.0)
	store.Put(fields)

	// Mutating the caller's slice after Put must not leak in.
	fields.Set("A", 2.0)
	got, _ := store.Get()
	if v, _ := got.Float64("A"); v != 1.0 {
		t.Errorf("stored A = %v after caller mutation, want 1.0", v)
	}

	// Mutating the returned slice must not leak back.
	got.Set("A", 3.0)
	again, _ := store.Get()
	if v, _ := again.Float64("A"); v != 1.0 {
		t.Errorf("stored A = %v after reader mutation, want 1.0", v)
	}
}

func TestMemoryProviderSameKeySameStore(t *testing.T) {
	provider := NewMemoryProvider()

	spec := livedata.NewSpec("StandardRules", "AAPL")
	first := provider.NewInstance(spec)
	second := provider.NewInstance(spec)

	if first != second {
		t.Error("NewInstance returned different stores for the same key")
	}

	other := provider.NewInstance(livedata.NewSpec("OtherRules", "AAPL"))
	if other == first {
		t.Error("NewInstance shared a store across schemes")
	}
}

func TestMemoryProviderEnumerateKnownIDs(t *testing.T) {
	provider := NewMemoryProvider()
	provider.RegisterKnownID("MSFT")
	provider.NewInstance(livedata.NewSpec("StandardRules", "AAPL"))
	provider.NewInstance(livedata.NewSpec("OtherRules", "AAPL"))

	ids := provider.EnumerateKnownIDs("StandardRules")
	want := []string{"AAPL", "MSFT"}
	if len(ids) != len(want) {
		t.Fatalf("EnumerateKnownIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
