package client

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MockRenderer steps through the progress scale and writes flat
// placeholder images, used when no rendering service is configured so
// the whole pipeline still runs locally.
type MockRenderer struct {
	StepDelay time.Duration
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{StepDelay: 150 * time.Millisecond}
}

func (m *MockRenderer) Render(ctx context.Context, req *RenderRequest, onProgress ProgressFunc) error {
	log.Printf("[Render] mock rendering %s (%dx%d)", req.ColorScheme, req.Width, req.Height)

	for _, pct := range []int{0, 25, 50, 75} {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if onProgress != nil {
			onProgress(pct)
		}
		if m.StepDelay > 0 {
			time.Sleep(m.StepDelay)
		}
	}

	fill := schemeColor(req.ColorScheme)
	if err := writePlaceholder(req.WaveformPath, req.Width, req.Height, fill); err != nil {
		return fmt.Errorf("write waveform placeholder: %w", err)
	}
	if err := writePlaceholder(req.SpectrogramPath, req.Width, req.Height, fill); err != nil {
		return fmt.Errorf("write spectrogram placeholder: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

func schemeColor(scheme string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(scheme))
	v := h.Sum32()
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
}

func writePlaceholder(path string, width, height int, fill color.RGBA) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".jpg") || strings.HasSuffix(strings.ToLower(path), ".jpeg") {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	}
	return png.Encode(f, img)
}
