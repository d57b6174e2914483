package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/soundwall/api/internal/config"
)

// ProgressFunc receives rendering progress in [0,100]
type ProgressFunc func(percentage int)

// RenderRequest describes one variant's rendering work. Paths are in
// the data dir shared with the rendering service.
type RenderRequest struct {
	SourcePath      string `json:"source_path"`
	WaveformPath    string `json:"waveform_path"`
	SpectrogramPath string `json:"spectrogram_path"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FFTSize         int    `json:"fft_size"`
	ColorScheme     string `json:"color_scheme"`
}

// Renderer defines the interface for waveform/spectrogram rendering.
// Implementations invoke onProgress with non-decreasing percentages,
// terminating with 100 once both images exist.
type Renderer interface {
	Render(ctx context.Context, req *RenderRequest, onProgress ProgressFunc) error
}

// RenderClient implements Renderer against the rendering microservice
type RenderClient struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewRenderClient creates a new rendering service client
func NewRenderClient(cfg *config.RenderConfig) *RenderClient {
	return &RenderClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:      cfg.ServiceURL,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		maxWait:      time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

type renderTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type renderStatusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Render submits the task and polls its status at a fixed cadence,
// reporting progress on change until the service finishes. The number
// of callback invocations is bounded by the progress scale, not by the
// size of the rendered output.
func (c *RenderClient) Render(ctx context.Context, req *RenderRequest, onProgress ProgressFunc) error {
	var task renderTaskResponse
	if err := c.post(ctx, "/v1/render", req, &task); err != nil {
		return err
	}

	deadline := time.Now().Add(c.maxWait)
	last := -1

	for time.Now().Before(deadline) {
		var status renderStatusResponse
		if err := c.get(ctx, fmt.Sprintf("/v1/render/status/%s", task.TaskID), &status); err != nil {
			return err
		}

		if status.Progress > last && onProgress != nil {
			onProgress(status.Progress)
			last = status.Progress
		}

		switch status.Status {
		case "completed", "success":
			if last < 100 && onProgress != nil {
				onProgress(100)
			}
			return nil
		case "failed", "error":
			if status.Error != "" {
				return fmt.Errorf("rendering failed: %s", status.Error)
			}
			return fmt.Errorf("rendering failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return fmt.Errorf("rendering timed out after %v", c.maxWait)
}

// post sends a POST request with JSON body
func (c *RenderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *RenderClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *RenderClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Render] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
