package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soundwall/api/internal/model"
)

func newTestSession(id string) *model.JobSession {
	return &model.JobSession{
		SessionID:    id,
		SoundID:      42,
		ColorSchemes: []string{"A", "B"},
		Variants: map[string]*model.VariantJob{
			"A": {ColorScheme: "A"},
			"B": {ColorScheme: "B"},
		},
		Status:    model.StatusGenerating,
		Remaining: 2,
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "sid", newTestSession("sid")); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SoundID != 42 || len(got.Variants) != 2 {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := s.Delete(ctx, "sid"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "sid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

// Mutating a returned snapshot must not leak into the stored value.
func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "sid", newTestSession("sid")); err != nil {
		t.Fatalf("set: %v", err)
	}

	snap, _ := s.Get(ctx, "sid")
	snap.Variants["A"].Percentage = 99
	snap.TotalPercentage = 99

	fresh, _ := s.Get(ctx, "sid")
	if fresh.Variants["A"].Percentage != 0 || fresh.TotalPercentage != 0 {
		t.Errorf("snapshot mutation leaked into store: %+v", fresh)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Update(context.Background(), "nope", func(*model.JobSession) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateErrorLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "sid", newTestSession("sid")); err != nil {
		t.Fatalf("set: %v", err)
	}

	boom := errors.New("boom")
	_, err := s.Update(ctx, "sid", func(sess *model.JobSession) error {
		sess.Variants["A"].Percentage = 50
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.Get(ctx, "sid")
	if got.Variants["A"].Percentage != 0 {
		t.Errorf("failed update was applied: %+v", got.Variants["A"])
	}
}

// Two variants hammering the same session concurrently: every
// increment from both sides must survive the interleaving.
func TestMemoryStoreConcurrentUpdatesNotLost(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "sid", newTestSession("sid")); err != nil {
		t.Fatalf("set: %v", err)
	}

	const perVariant = 100
	var wg sync.WaitGroup
	for _, scheme := range []string{"A", "B"} {
		wg.Add(1)
		go func(scheme string) {
			defer wg.Done()
			for i := 0; i < perVariant; i++ {
				_, err := s.Update(ctx, "sid", func(sess *model.JobSession) error {
					sess.Variants[scheme].Percentage++
					return nil
				})
				if err != nil {
					t.Errorf("update %s: %v", scheme, err)
					return
				}
			}
		}(scheme)
	}
	wg.Wait()

	got, _ := s.Get(ctx, "sid")
	if got.Variants["A"].Percentage != perVariant {
		t.Errorf("variant A lost updates: %d", got.Variants["A"].Percentage)
	}
	if got.Variants["B"].Percentage != perVariant {
		t.Errorf("variant B lost updates: %d", got.Variants["B"].Percentage)
	}
}
