package model

import (
	"encoding/json"
	"fmt"
)

// Request defaults, matching the historical client contract
const (
	DefaultSoundID = 1234
	DefaultWidth   = 100
	DefaultHeight  = 100
	DefaultFFTSize = 2048
)

// CreateWallpaperRequest is the raw create_wallpaper message payload.
// Numeric fields arrive as JSON numbers; anything that does not parse
// as an integer is an invalid-params error before any worker starts.
type CreateWallpaperRequest struct {
	SoundID json.Number `json:"sound_id"`
	Width   json.Number `json:"width"`
	Height  json.Number `json:"height"`
	FFTSize json.Number `json:"fft_size"`
}

// WallpaperParams are the parsed, validated job parameters.
// Width and height carry no validate tags: out-of-range values are
// clamped by the orchestrator, not rejected.
type WallpaperParams struct {
	SoundID int64 `validate:"min=1"`
	Width   int
	Height  int
	FFTSize int `validate:"min=32,max=65536"`
}

// Parse applies defaults for absent fields and converts the rest,
// failing on anything that is not an integer.
func (r *CreateWallpaperRequest) Parse() (*WallpaperParams, error) {
	soundID, err := parseField("sound_id", r.SoundID, DefaultSoundID)
	if err != nil {
		return nil, err
	}
	width, err := parseField("width", r.Width, DefaultWidth)
	if err != nil {
		return nil, err
	}
	height, err := parseField("height", r.Height, DefaultHeight)
	if err != nil {
		return nil, err
	}
	fftSize, err := parseField("fft_size", r.FFTSize, DefaultFFTSize)
	if err != nil {
		return nil, err
	}
	return &WallpaperParams{
		SoundID: soundID,
		Width:   int(width),
		Height:  int(height),
		FFTSize: int(fftSize),
	}, nil
}

func parseField(name string, raw json.Number, def int64) (int64, error) {
	if raw.String() == "" {
		return def, nil
	}
	v, err := raw.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer: %q", name, raw.String())
	}
	return v, nil
}
