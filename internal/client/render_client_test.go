package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/soundwall/api/internal/config"
)

func newTestRenderClient(t *testing.T, handler http.Handler) *RenderClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRenderClient(&config.RenderConfig{
		ServiceURL:     srv.URL,
		PollIntervalMS: 1,
		TimeoutSec:     5,
	})
}

func scriptedStatus(script []renderStatusResponse) http.Handler {
	var step int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/render", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"task_id": "task-1", "status": "queued"}`)
	})
	mux.HandleFunc("/v1/render/status/task-1", func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&step, 1)) - 1
		if i >= len(script) {
			i = len(script) - 1
		}
		s := script[i]
		fmt.Fprintf(w, `{"task_id": "task-1", "status": %q, "progress": %d, "error": %q}`,
			s.Status, s.Progress, s.Error)
	})
	return mux
}

func TestRenderReportsNonDecreasingProgress(t *testing.T) {
	c := newTestRenderClient(t, scriptedStatus([]renderStatusResponse{
		{Status: "processing", Progress: 10},
		{Status: "processing", Progress: 40},
		{Status: "processing", Progress: 40},
		{Status: "processing", Progress: 80},
		{Status: "completed", Progress: 100},
	}))

	var seen []int
	err := c.Render(context.Background(), &RenderRequest{ColorScheme: "A"}, func(p int) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := []int{10, 40, 80, 100}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress = %v, want %v", seen, want)
		}
	}
}

func TestRenderForcesHundredOnCompletion(t *testing.T) {
	c := newTestRenderClient(t, scriptedStatus([]renderStatusResponse{
		{Status: "processing", Progress: 50},
		{Status: "completed", Progress: 97},
	}))

	var last int
	err := c.Render(context.Background(), &RenderRequest{}, func(p int) { last = p })
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if last != 100 {
		t.Errorf("last progress = %d, want 100", last)
	}
}

func TestRenderFailedStatus(t *testing.T) {
	c := newTestRenderClient(t, scriptedStatus([]renderStatusResponse{
		{Status: "processing", Progress: 20},
		{Status: "failed", Progress: 20, Error: "ffmpeg exited 1"},
	}))

	err := c.Render(context.Background(), &RenderRequest{}, nil)
	if err == nil || !strings.Contains(err.Error(), "ffmpeg exited 1") {
		t.Errorf("err = %v, want render failure with cause", err)
	}
}

func TestRenderServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/render", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	c := newTestRenderClient(t, mux)

	if err := c.Render(context.Background(), &RenderRequest{}, nil); err == nil {
		t.Error("expected submission error")
	}
}

func TestRenderContextCancelled(t *testing.T) {
	c := newTestRenderClient(t, scriptedStatus([]renderStatusResponse{
		{Status: "processing", Progress: 1},
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Render(ctx, &RenderRequest{}, nil)
	if err == nil {
		t.Error("expected error after cancellation")
	}
}
