// Package registry — registry_test.go
//
// Test coverage:
//   - New() pre-seeds "." and "!" with Negative state.
//   - GetOrInsert creates exactly one entry under concurrent first-touch.
//   - With() mutates the fsm value in place.
//   - Insert() always replaces (warm start).

package registry_test

import (
	"sync"
	"testing"

	"github.com/aleozlx/sprinkler/internal/anomaly"
	"github.com/aleozlx/sprinkler/internal/meter"
	"github.com/aleozlx/sprinkler/internal/registry"
)

func TestNewPreSeedsWellKnownKeys(t *testing.T) {
	r := registry.New(15)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	for _, key := range []string{registry.CatchAllKey, registry.ReservedFloodKey} {
		e, ok := r.Get(key)
		if !ok {
			t.Fatalf("missing pre-seeded key %q", key)
		}
		if e.FSM.Kind() != anomaly.KindNegative {
			t.Errorf("pre-seeded key %q fsm = %v, want Negative", key, e.FSM)
		}
	}
}

func TestGetOrInsertIsRaceFree(t *testing.T) {
	r := registry.New(15)
	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	entries := make([]*registry.Entry, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			entries[i] = r.GetOrInsert("pod-x", registry.Seed{DividerInterval: 5, Initial: anomaly.Fixing(1)})
		}(i)
	}
	wg.Wait()
	first := entries[0]
	for i, e := range entries {
		if e != first {
			t.Fatalf("worker %d got a different entry than worker 0 for the same key", i)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d after inserting one new key, want 3", r.Len())
	}
}

func TestWithMutatesInPlace(t *testing.T) {
	r := registry.New(15)
	r.With(registry.CatchAllKey, registry.Seed{}, func(m *meter.EventRateMeter, d *meter.FrequencyDivider, fsm *anomaly.Anomaly) {
		*fsm = anomaly.Positive()
	})
	e, _ := r.Get(registry.CatchAllKey)
	if e.FSM.Kind() != anomaly.KindPositive {
		t.Errorf("fsm after With() = %v, want Positive", e.FSM)
	}
}

func TestInsertAlwaysReplaces(t *testing.T) {
	r := registry.New(15)
	first := r.GetOrInsert("podA", registry.Seed{DividerInterval: 5, Initial: anomaly.Negative()})
	second := r.Insert("podA", registry.Seed{DividerInterval: 5, Initial: anomaly.Fixing(1)})
	if first == second {
		t.Fatal("Insert() should replace the existing entry, not return it")
	}
	e, _ := r.Get("podA")
	if e.FSM.Kind() != anomaly.KindFixing {
		t.Errorf("fsm after warm-start Insert() = %v, want Fixing(1)", e.FSM)
	}
}
