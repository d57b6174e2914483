package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/soundwall/api/internal/client"
	"github.com/soundwall/api/internal/counter"
	"github.com/soundwall/api/internal/handler"
	"github.com/soundwall/api/internal/imaging"
	"github.com/soundwall/api/internal/model"
	"github.com/soundwall/api/internal/service"
	"github.com/soundwall/api/internal/store"
	"github.com/soundwall/api/internal/worker"
)

// testApp holds all components needed for testing
type testApp struct {
	app        *fiber.App
	dataDir    string
	sessions   store.SessionStore
	counter    counter.Counter
	dispatcher *worker.GoDispatcher
	hub        *captureHub
	handler    *handler.WallpaperHandler
	schemes    []string
}

// captureHub stands in for the WebSocket hub: events are collected
// instead of being written to connections.
type captureHub struct {
	events chan interface{}
}

func (h *captureHub) Publish(sessionID string, event interface{}) {
	select {
	case h.events <- event:
	default:
	}
}

// setupApp wires the same components as main.go with in-memory
// backends and the built-in fakes: the fake sound provider, the mock
// renderer and no object storage.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	dataDir := t.TempDir()
	sessions := store.NewMemoryStore()
	imageCounter := counter.NewFileCounter(filepath.Join(dataDir, "counter.json"))
	hub := &captureHub{events: make(chan interface{}, 256)}
	schemes := []string{"Freesound2", "iTunes"}

	tracker := service.NewProgressTracker(sessions, imageCounter, hub, "http://localhost:5000/", "")
	renderer := client.NewMockRenderer()
	renderer.StepDelay = 0
	variantWorker := worker.NewVariantWorker(renderer, imaging.NewResizer(), nil, tracker, 50)
	dispatcher := worker.NewGoDispatcher(variantWorker)

	wallpaperService := service.NewWallpaperService(
		sessions,
		client.NewFakeProvider(dataDir),
		dispatcher,
		hub,
		dataDir,
		schemes,
		service.Limits{MinDimension: 10, MaxDimension: 6000, MaxFFTSize: 65536},
	)
	wallpaperHandler := handler.NewWallpaperHandler(wallpaperService, validator.New(), hub)
	statsHandler := handler.NewStatsHandler(imageCounter)
	imageHandler := handler.NewImageHandler(dataDir)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		total, err := imageCounter.Load(c.Context())
		if err != nil {
			total = 0
		}
		return c.JSON(fiber.Map{
			"timestamp":       time.Now().Unix(),
			"color_schemes":   schemes,
			"images_produced": total,
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"freesound": false,
				"render":    false,
				"r2":        false,
				"redis":     false,
			},
		})
	})
	app.Get("/api/stats", statsHandler.Stats)
	app.Get("/img/:filename", imageHandler.Serve)

	return &testApp{
		app:        app,
		dataDir:    dataDir,
		sessions:   sessions,
		counter:    imageCounter,
		dispatcher: dispatcher,
		hub:        hub,
		handler:    wallpaperHandler,
		schemes:    schemes,
	}
}

// createWallpaper runs a job end to end through the message handler,
// the way a create_wallpaper frame would, and waits for the variants.
func (ta *testApp) createWallpaper(t *testing.T, sessionID, payload string) {
	t.Helper()
	ta.handler.HandleCreateWallpaper(sessionID, []byte(payload))
	ta.dispatcher.Wait()
}

// waitForEvent waits for the next published event of the wanted type.
func (ta *testApp) waitForEvent(t *testing.T, match func(interface{}) bool) interface{} {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ta.hub.events:
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func (ta *testApp) session(t *testing.T, sessionID string) *model.JobSession {
	t.Helper()
	snap, err := ta.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session %s: %v", sessionID, err)
	}
	return snap
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus fails the test if the response status differs.
func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}
