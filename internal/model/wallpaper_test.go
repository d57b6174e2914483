package model

import (
	"encoding/json"
	"testing"
)

func parseRequest(t *testing.T, raw string) (*WallpaperParams, error) {
	t.Helper()
	var req CreateWallpaperRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return req.Parse()
}

func TestParseAppliesDefaults(t *testing.T) {
	params, err := parseRequest(t, `{}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.SoundID != DefaultSoundID {
		t.Errorf("sound id = %d, want %d", params.SoundID, DefaultSoundID)
	}
	if params.Width != DefaultWidth || params.Height != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", params.Width, params.Height, DefaultWidth, DefaultHeight)
	}
	if params.FFTSize != DefaultFFTSize {
		t.Errorf("fft = %d, want %d", params.FFTSize, DefaultFFTSize)
	}
}

func TestParseExplicitValues(t *testing.T) {
	params, err := parseRequest(t, `{"sound_id": 17, "width": 1920, "height": 1080, "fft_size": 4096}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.SoundID != 17 || params.Width != 1920 || params.Height != 1080 || params.FFTSize != 4096 {
		t.Errorf("params = %+v", params)
	}
}

func TestParseRejectsNonIntegers(t *testing.T) {
	for _, raw := range []string{
		`{"sound_id": 1.5}`,
		`{"width": 3.14}`,
		`{"fft_size": "big"}`,
	} {
		var req CreateWallpaperRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue // rejected before parsing, also fine
		}
		if _, err := req.Parse(); err == nil {
			t.Errorf("Parse(%s): expected error", raw)
		}
	}
}

func TestRecomputeTotalCountsUnreportedAsZero(t *testing.T) {
	s := &JobSession{
		ColorSchemes: []string{"A", "B", "C"},
		Variants: map[string]*VariantJob{
			"A": {ColorScheme: "A", Percentage: 90},
		},
	}
	s.RecomputeTotal()
	if s.TotalPercentage != 30 {
		t.Errorf("total = %v, want 30", s.TotalPercentage)
	}
}

func TestCloneIsDeep(t *testing.T) {
	msg := "oops"
	s := &JobSession{
		SessionID:    "x",
		ColorSchemes: []string{"A"},
		Variants:     map[string]*VariantJob{"A": {ColorScheme: "A"}},
		Previews:     map[string]string{"hq": "http://example.com/p.mp3"},
		Error:        &msg,
	}
	c := s.Clone()
	c.Variants["A"].Percentage = 50
	c.ColorSchemes[0] = "Z"
	c.Previews["hq"] = "changed"
	*c.Error = "changed"

	if s.Variants["A"].Percentage != 0 {
		t.Error("variant mutation leaked into original")
	}
	if s.ColorSchemes[0] != "A" {
		t.Error("scheme mutation leaked into original")
	}
	if s.Previews["hq"] != "http://example.com/p.mp3" {
		t.Error("preview mutation leaked into original")
	}
	if *s.Error != "oops" {
		t.Error("error mutation leaked into original")
	}
}

func TestTerminalStatuses(t *testing.T) {
	cases := map[SessionStatus]bool{
		StatusPreparing:  false,
		StatusGenerating: false,
		StatusAllDone:    true,
		StatusFailed:     true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
