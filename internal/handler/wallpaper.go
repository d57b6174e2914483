package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/soundwall/api/internal/client"
	"github.com/soundwall/api/internal/model"
	"github.com/soundwall/api/internal/service"
)

// Error codes carried in job_failed events
const (
	CodeInvalidParams = "INVALID_PARAMS"
	CodeAssetError    = "ASSET_ERROR"
	CodeServiceError  = "SERVICE_ERROR"
)

// WallpaperHandler turns inbound create_wallpaper messages into jobs.
// Pre-start failures are reported here, as exactly one job_failed
// event; everything after a successful start is reported by the
// progress tracker.
type WallpaperHandler struct {
	service   *service.WallpaperService
	validator *validator.Validate
	notifier  service.Notifier
}

func NewWallpaperHandler(svc *service.WallpaperService, v *validator.Validate, n service.Notifier) *WallpaperHandler {
	return &WallpaperHandler{
		service:   svc,
		validator: v,
		notifier:  n,
	}
}

// HandleCreateWallpaper implements the hub's message handler for
// create_wallpaper. It runs on the connection's read goroutine, which
// matches the job model: one orchestration call runs synchronously
// through preparation, then returns while the variants render.
func (h *WallpaperHandler) HandleCreateWallpaper(sessionID string, payload []byte) {
	var req model.CreateWallpaperRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.fail(sessionID, CodeInvalidParams, "Invalid request: "+err.Error())
		return
	}

	params, err := req.Parse()
	if err != nil {
		h.fail(sessionID, CodeInvalidParams, "Invalid request: "+err.Error())
		return
	}
	if err := h.validator.Struct(params); err != nil {
		h.fail(sessionID, CodeInvalidParams, "Invalid request parameters")
		return
	}

	if err := h.service.CreateWallpaper(context.Background(), sessionID, params); err != nil {
		code, message := describeError(err)
		h.fail(sessionID, code, message)
	}
}

func (h *WallpaperHandler) fail(sessionID, code, message string) {
	log.Printf("Wallpaper job for session %s not started: %s", sessionID, message)
	h.notifier.Publish(sessionID, model.FailedEvent{
		Type: model.WSEventTypeFailed,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// describeError maps a job-start failure to an error code and a
// human-readable message.
func describeError(err error) (string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidParams):
		return CodeInvalidParams, "Invalid request parameters: " + err.Error()
	case errors.Is(err, client.ErrSoundNotFound):
		return CodeAssetError, "Sound not found on Freesound"
	case errors.Is(err, client.ErrSoundTooLong):
		return CodeAssetError, "This sound is too long to make a wallpaper from"
	case errors.Is(err, client.ErrAuthExpired):
		return CodeAssetError, "Could not authenticate with Freesound"
	case errors.Is(err, client.ErrProviderUnavailable):
		return CodeAssetError, "Freesound is currently unavailable, please try again later"
	default:
		return CodeServiceError, "Could not start wallpaper generation: " + err.Error()
	}
}
