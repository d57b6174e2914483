package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Counter is the durable running total of images produced across all
// jobs. Increment must be atomic under concurrent job completions.
type Counter interface {
	Load(ctx context.Context) (int64, error)
	Increment(ctx context.Context, by int64) (int64, error)
}

type counterRecord struct {
	ImagesProduced int64 `json:"images_produced"`
}

// FileCounter keeps the total in a JSON file, committed with a
// temp-file write plus rename so a crash never leaves a torn record.
type FileCounter struct {
	mu     sync.Mutex
	path   string
	total  int64
	loaded bool
}

func NewFileCounter(path string) *FileCounter {
	return &FileCounter{path: path}
}

func (c *FileCounter) Load(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return 0, err
	}
	return c.total, nil
}

func (c *FileCounter) Increment(ctx context.Context, by int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return 0, err
	}
	next := c.total + by
	if err := c.write(next); err != nil {
		return 0, err
	}
	c.total = next
	return next, nil
}

func (c *FileCounter) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.total = 0
			c.loaded = true
			return nil
		}
		return fmt.Errorf("read counter: %w", err)
	}
	var rec counterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode counter: %w", err)
	}
	c.total = rec.ImagesProduced
	c.loaded = true
	return nil
}

func (c *FileCounter) write(total int64) error {
	data, err := json.Marshal(counterRecord{ImagesProduced: total})
	if err != nil {
		return fmt.Errorf("encode counter: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create counter dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".counter-*")
	if err != nil {
		return fmt.Errorf("create counter temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write counter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close counter temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit counter: %w", err)
	}
	return nil
}
