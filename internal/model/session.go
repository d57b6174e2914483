package model

import "time"

// SessionStatus is the lifecycle state of a wallpaper job
type SessionStatus string

const (
	StatusPreparing  SessionStatus = "preparing"
	StatusGenerating SessionStatus = "generating"
	StatusAllDone    SessionStatus = "all_done"
	StatusFailed     SessionStatus = "failed"
)

// Terminal reports whether no further forward transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusAllDone || s == StatusFailed
}

// VariantJob tracks one color scheme's rendering within a session.
// It is mutated only through SessionStore.Update from the worker that
// owns the variant.
type VariantJob struct {
	ColorScheme             string `json:"colorScheme"`
	Percentage              int    `json:"percentage"`
	WaveformFilename        string `json:"waveformFilename"`
	SpectrogramFilename     string `json:"spectrogramFilename"`
	WaveformURL             string `json:"waveformUrl,omitempty"`
	SpectrogramURL          string `json:"spectrogramUrl,omitempty"`
	WaveformThumbnailURL    string `json:"waveformThumbnailUrl,omitempty"`
	SpectrogramThumbnailURL string `json:"spectrogramThumbnailUrl,omitempty"`
	Done                    bool   `json:"done"`
	Failed                  bool   `json:"failed,omitempty"`
}

// JobSession represents one client-initiated wallpaper generation request.
// The session id is the client's websocket connection id.
type JobSession struct {
	SessionID       string                 `json:"sessionId"`
	SoundID         int64                  `json:"soundId"`
	SoundName       string                 `json:"soundName,omitempty"`
	Attribution     string                 `json:"attribution,omitempty"`
	Previews        map[string]string      `json:"previews,omitempty"`
	Width           int                    `json:"width"`
	Height          int                    `json:"height"`
	FFTSize         int                    `json:"fftSize"`
	ColorSchemes    []string               `json:"colorSchemes"`
	Variants        map[string]*VariantJob `json:"variants"`
	TotalPercentage float64                `json:"totalPercentage"`
	Status          SessionStatus          `json:"status"`
	Error           *string                `json:"error,omitempty"`
	Remaining       int                    `json:"remaining"`
	ImagesProduced  int64                  `json:"imagesProduced,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with
// the store's authoritative value.
func (s *JobSession) Clone() *JobSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.Previews != nil {
		out.Previews = make(map[string]string, len(s.Previews))
		for k, v := range s.Previews {
			out.Previews[k] = v
		}
	}
	if s.ColorSchemes != nil {
		out.ColorSchemes = append([]string(nil), s.ColorSchemes...)
	}
	if s.Variants != nil {
		out.Variants = make(map[string]*VariantJob, len(s.Variants))
		for k, v := range s.Variants {
			vc := *v
			out.Variants[k] = &vc
		}
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// RecomputeTotal sets TotalPercentage to the mean of all variants'
// percentages, counting not-yet-reported variants as 0.
func (s *JobSession) RecomputeTotal() {
	if len(s.ColorSchemes) == 0 {
		s.TotalPercentage = 0
		return
	}
	var sum int
	for _, scheme := range s.ColorSchemes {
		if v, ok := s.Variants[scheme]; ok {
			sum += v.Percentage
		}
	}
	s.TotalPercentage = float64(sum) / float64(len(s.ColorSchemes))
}

// VariantTask is the unit of work dispatched per (session, color scheme).
type VariantTask struct {
	SessionID       string `json:"sessionId"`
	ColorScheme     string `json:"colorScheme"`
	SourcePath      string `json:"sourcePath"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FFTSize         int    `json:"fftSize"`
	WaveformPath    string `json:"waveformPath"`
	SpectrogramPath string `json:"spectrogramPath"`
}

// VariantArtifacts carries the finished variant's URLs back into the
// session. Primary URLs are only set when artifacts were mirrored to
// object storage; otherwise the locally stamped URLs stand.
type VariantArtifacts struct {
	WaveformURL             string
	SpectrogramURL          string
	WaveformThumbnailURL    string
	SpectrogramThumbnailURL string
}
