package metrics

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistryUpsertGet(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get(putSuccess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty registry error = %v, want ErrNotFound", err)
	}

	first := Metrics{Name: putSuccess.Name(), OpType: "PUT", SampleType: SampleSuccess, SampleCount: 1}
	if _, replaced, err := r.Upsert(putSuccess, first); err != nil || replaced {
		t.Errorf("first upsert = (replaced %v, %v)", replaced, err)
	}
	second := first
	second.SampleCount = 2
	prev, replaced, err := r.Upsert(putSuccess, second)
	if err != nil || !replaced || prev.SampleCount != 1 {
		t.Errorf("second upsert = (%+v, %v, %v)", prev, replaced, err)
	}

	got, err := r.Get(putSuccess)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", got.SampleCount)
	}

	byName, err := r.GetByName("PUT-success")
	if err != nil || byName.SampleCount != 2 {
		t.Errorf("GetByName = %+v, %v", byName, err)
	}
	if _, err := r.GetByName("DELETE-success"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName miss error = %v, want ErrNotFound", err)
	}
	if _, err := r.GetByName("bogus"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("GetByName bad name error = %v, want ErrInvalidType", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const writers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := Type{Op: fmt.Sprintf("op%d", w), Sample: SampleSuccess}
			for i := 1; i <= rounds; i++ {
				r.Upsert(key, Metrics{
					Name:             key.Name(),
					OpType:           key.Op,
					SampleType:       key.Sample,
					SampleCount:      int64(i),
					TotalSampleCount: int64(i),
				})
			}
		}(w)
	}
	for rd := 0; rd < 4; rd++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				for _, m := range r.Snapshot() {
					if m.SampleCount != m.TotalSampleCount {
						t.Errorf("torn read: %+v", m)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if len(snap) != writers {
		t.Fatalf("snapshot len = %d, want %d", len(snap), writers)
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Name > snap[i].Name {
			t.Errorf("snapshot not sorted: %s > %s", snap[i-1].Name, snap[i].Name)
		}
	}
	for _, m := range snap {
		if m.SampleCount != rounds {
			t.Errorf("%s final SampleCount = %d, want %d", m.Name, m.SampleCount, rounds)
		}
	}
}

func TestRegistryUpsertRejectsForeignKey(t *testing.T) {
	r := NewRegistry()
	get := Type{Op: "GET", Sample: SampleSuccess}
	m := Metrics{Name: putSuccess.Name(), OpType: "PUT", SampleType: SampleSuccess, SampleCount: 3}

	if _, _, err := r.Upsert(get, m); !errors.Is(err, ErrMixedTypes) {
		t.Fatalf("Upsert under %s error = %v, want ErrMixedTypes", get.Name(), err)
	}
	if _, err := r.Get(get); !errors.Is(err, ErrNotFound) {
		t.Errorf("mismatched value was stored: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
