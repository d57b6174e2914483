package counter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileCounterLoadMissingFile(t *testing.T) {
	c := NewFileCounter(filepath.Join(t.TempDir(), "counter.json"))
	total, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0 for missing file, got %d", total)
	}
}

func TestFileCounterIncrementPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "counter.json")

	c := NewFileCounter(path)
	if _, err := c.Increment(ctx, 4); err != nil {
		t.Fatalf("increment: %v", err)
	}
	total, err := c.Increment(ctx, 2)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 6 {
		t.Errorf("expected total 6, got %d", total)
	}

	// A fresh instance must see the committed value.
	reopened := NewFileCounter(path)
	total, err = reopened.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if total != 6 {
		t.Errorf("expected 6 after reopen, got %d", total)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var rec struct {
		ImagesProduced int64 `json:"images_produced"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("counter file is not valid JSON: %v", err)
	}
	if rec.ImagesProduced != 6 {
		t.Errorf("file records %d, want 6", rec.ImagesProduced)
	}
}

func TestFileCounterConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	c := NewFileCounter(filepath.Join(t.TempDir(), "counter.json"))

	const jobs = 50
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Increment(ctx, 2); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	total, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if total != jobs*2 {
		t.Errorf("lost increments: got %d, want %d", total, jobs*2)
	}
}
