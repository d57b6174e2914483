package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/soundwall/api/internal/client"
	"github.com/soundwall/api/internal/model"
	"github.com/soundwall/api/internal/service"
)

// TaskTypeRenderVariant is the asynq task type for one variant's work
const TaskTypeRenderVariant = "wallpaper:render_variant"

// QueueRender is the asynq queue variant tasks run on
const QueueRender = "render"

// Thumbnailer produces a fixed-height thumbnail beside the given image
type Thumbnailer interface {
	Thumbnail(path string, height int) (string, error)
}

// VariantWorker runs the rendering pipeline for one color scheme:
// render both images with progress reporting, build thumbnails,
// optionally mirror everything to object storage, then count the
// variant off. Any failure is variant-scoped and surfaced through the
// tracker, never swallowed.
type VariantWorker struct {
	renderer    client.Renderer
	thumbnailer Thumbnailer
	storage     client.StorageClient
	tracker     *service.ProgressTracker
	thumbHeight int
}

// NewVariantWorker creates a new variant worker. storage may be nil,
// in which case artifacts are served from the local data dir only.
func NewVariantWorker(renderer client.Renderer, thumbnailer Thumbnailer, storage client.StorageClient, tracker *service.ProgressTracker, thumbHeight int) *VariantWorker {
	return &VariantWorker{
		renderer:    renderer,
		thumbnailer: thumbnailer,
		storage:     storage,
		tracker:     tracker,
		thumbHeight: thumbHeight,
	}
}

// ProcessTask handles an asynq-dispatched variant task
func (w *VariantWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task model.VariantTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal variant task: %w", err)
	}
	return w.Run(ctx, &task)
}

// Run executes the variant pipeline to completion.
func (w *VariantWorker) Run(ctx context.Context, task *model.VariantTask) error {
	log.Printf("Rendering variant %s for session %s", task.ColorScheme, task.SessionID)

	req := &client.RenderRequest{
		SourcePath:      task.SourcePath,
		WaveformPath:    task.WaveformPath,
		SpectrogramPath: task.SpectrogramPath,
		Width:           task.Width,
		Height:          task.Height,
		FFTSize:         task.FFTSize,
		ColorScheme:     task.ColorScheme,
	}
	onProgress := func(pct int) {
		w.tracker.Report(ctx, task.SessionID, task.ColorScheme, pct)
	}

	if err := w.renderer.Render(ctx, req, onProgress); err != nil {
		err = fmt.Errorf("rendering %s failed: %w", task.ColorScheme, err)
		w.tracker.FailVariant(ctx, task.SessionID, task.ColorScheme, err)
		return err
	}

	thumbWave, err := w.thumbnailer.Thumbnail(task.WaveformPath, w.thumbHeight)
	if err != nil {
		err = fmt.Errorf("thumbnailing %s failed: %w", task.ColorScheme, err)
		w.tracker.FailVariant(ctx, task.SessionID, task.ColorScheme, err)
		return err
	}
	thumbSpec, err := w.thumbnailer.Thumbnail(task.SpectrogramPath, w.thumbHeight)
	if err != nil {
		err = fmt.Errorf("thumbnailing %s failed: %w", task.ColorScheme, err)
		w.tracker.FailVariant(ctx, task.SessionID, task.ColorScheme, err)
		return err
	}

	artifacts := &model.VariantArtifacts{
		WaveformThumbnailURL:    w.tracker.ImageURL(filepath.Base(thumbWave)),
		SpectrogramThumbnailURL: w.tracker.ImageURL(filepath.Base(thumbSpec)),
	}

	if w.storage != nil {
		if err := w.mirror(ctx, task, thumbWave, thumbSpec, artifacts); err != nil {
			err = fmt.Errorf("storing %s artifacts failed: %w", task.ColorScheme, err)
			w.tracker.FailVariant(ctx, task.SessionID, task.ColorScheme, err)
			return err
		}
	}

	if err := w.tracker.CompleteVariant(ctx, task.SessionID, task.ColorScheme, artifacts); err != nil {
		return err
	}
	log.Printf("Variant %s for session %s done", task.ColorScheme, task.SessionID)
	return nil
}

// mirror uploads the variant's four images and rewrites the artifact
// URLs to their public object-storage locations.
func (w *VariantWorker) mirror(ctx context.Context, task *model.VariantTask, thumbWave, thumbSpec string, artifacts *model.VariantArtifacts) error {
	uploads := []struct {
		path        string
		contentType string
		dest        *string
	}{
		{task.WaveformPath, "image/png", &artifacts.WaveformURL},
		{task.SpectrogramPath, "image/jpeg", &artifacts.SpectrogramURL},
		{thumbWave, "image/png", &artifacts.WaveformThumbnailURL},
		{thumbSpec, "image/jpeg", &artifacts.SpectrogramThumbnailURL},
	}
	for _, u := range uploads {
		f, err := os.Open(u.path)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("wallpapers/%s/%s", task.SessionID, filepath.Base(u.path))
		url, err := w.storage.Upload(ctx, key, f, u.contentType)
		f.Close()
		if err != nil {
			return err
		}
		*u.dest = url
	}
	return nil
}
