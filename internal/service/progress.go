package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/soundwall/api/internal/counter"
	"github.com/soundwall/api/internal/model"
	"github.com/soundwall/api/internal/store"
)

// Notifier delivers an event to the client behind a session id.
// Delivery is fire-and-forget; a disconnected client simply misses it.
type Notifier interface {
	Publish(sessionID string, event interface{})
}

// ProgressTracker is the progress callback target for every
// (session, variant) pair. All session mutation goes through the
// store's Update so concurrent variants never lose each other's
// writes, and the finalization decision is taken inside the same
// critical section that records it.
type ProgressTracker struct {
	store    store.SessionStore
	counter  counter.Counter
	notifier Notifier
	baseURL  string
	appRoot  string
}

func NewProgressTracker(sessions store.SessionStore, c counter.Counter, n Notifier, baseURL, appRoot string) *ProgressTracker {
	return &ProgressTracker{
		store:    sessions,
		counter:  c,
		notifier: n,
		baseURL:  baseURL,
		appRoot:  appRoot,
	}
}

// ImageURL builds the public URL an image filename is served under.
func (t *ProgressTracker) ImageURL(filename string) string {
	base := strings.TrimRight(t.baseURL, "/")
	if t.appRoot != "" {
		base += "/" + strings.Trim(t.appRoot, "/")
	}
	return base + "/img/" + filename
}

// Report records one variant's progress: the variant percentage moves
// monotonically, the total is recomputed as the mean over all
// variants, and image URLs are stamped the moment the variant reaches
// 100. One store write covers the whole session.
func (t *ProgressTracker) Report(ctx context.Context, sessionID, scheme string, percentage int) {
	var muted bool
	snap, err := t.store.Update(ctx, sessionID, func(s *model.JobSession) error {
		v, ok := s.Variants[scheme]
		if !ok {
			return fmt.Errorf("unknown color scheme %q", scheme)
		}
		if percentage < 0 {
			percentage = 0
		} else if percentage > 100 {
			percentage = 100
		}
		if percentage > v.Percentage && !v.Failed {
			v.Percentage = percentage
		}
		if v.Percentage == 100 && v.WaveformURL == "" {
			v.WaveformURL = t.ImageURL(v.WaveformFilename)
			v.SpectrogramURL = t.ImageURL(v.SpectrogramFilename)
		}
		s.RecomputeTotal()
		muted = s.Status.Terminal()
		return nil
	})
	if err != nil {
		log.Printf("Failed to record progress for %s/%s: %v", sessionID, scheme, err)
		return
	}
	if muted {
		return
	}
	t.notifier.Publish(sessionID, model.ProgressEvent{
		Type:    model.WSEventTypeProgress,
		Session: snap,
	})
}

// CompleteVariant marks a variant fully done (primary images and
// thumbnails exist) and counts it off. Exactly one caller observes the
// remaining count hit zero while the job is still generating; only
// that caller performs the finalization.
func (t *ProgressTracker) CompleteVariant(ctx context.Context, sessionID, scheme string, artifacts *model.VariantArtifacts) error {
	var (
		finalize bool
		muted    bool
	)
	snap, err := t.store.Update(ctx, sessionID, func(s *model.JobSession) error {
		v, ok := s.Variants[scheme]
		if !ok {
			return fmt.Errorf("unknown color scheme %q", scheme)
		}
		v.Percentage = 100
		if v.WaveformURL == "" {
			v.WaveformURL = t.ImageURL(v.WaveformFilename)
			v.SpectrogramURL = t.ImageURL(v.SpectrogramFilename)
		}
		if artifacts != nil {
			if artifacts.WaveformURL != "" {
				v.WaveformURL = artifacts.WaveformURL
			}
			if artifacts.SpectrogramURL != "" {
				v.SpectrogramURL = artifacts.SpectrogramURL
			}
			v.WaveformThumbnailURL = artifacts.WaveformThumbnailURL
			v.SpectrogramThumbnailURL = artifacts.SpectrogramThumbnailURL
		}
		if !v.Done {
			v.Done = true
			if s.Remaining > 0 {
				s.Remaining--
			}
			if s.Remaining == 0 && s.Status == model.StatusGenerating {
				finalize = true
			}
		}
		s.RecomputeTotal()
		muted = s.Status.Terminal()
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete variant %s/%s: %w", sessionID, scheme, err)
	}

	if !muted {
		v := snap.Variants[scheme]
		t.notifier.Publish(sessionID, model.ThumbnailsEvent{
			Type:                    model.WSEventTypeThumbnails,
			ColorScheme:             scheme,
			WaveformThumbnailURL:    v.WaveformThumbnailURL,
			SpectrogramThumbnailURL: v.SpectrogramThumbnailURL,
			Session:                 snap,
		})
	}

	if finalize {
		return t.finalize(ctx, sessionID, snap)
	}
	return nil
}

// finalize runs at most once per job: it commits the counter
// increment, stamps the new total into the session and publishes the
// final event.
func (t *ProgressTracker) finalize(ctx context.Context, sessionID string, snap *model.JobSession) error {
	total, err := t.counter.Increment(ctx, int64(2*len(snap.ColorSchemes)))
	if err != nil {
		t.FailJob(ctx, sessionID, "STORAGE_ERROR", fmt.Sprintf("Could not record completion: %v", err))
		return fmt.Errorf("increment counter: %w", err)
	}

	final, err := t.store.Update(ctx, sessionID, func(s *model.JobSession) error {
		s.Status = model.StatusAllDone
		s.TotalPercentage = 100
		s.ImagesProduced = total
		now := time.Now()
		s.CompletedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", sessionID, err)
	}

	log.Printf("Wallpaper job %s completed, %d images produced in total", sessionID, total)
	t.notifier.Publish(sessionID, model.AllDoneEvent{
		Type:           model.WSEventTypeAllDone,
		Session:        final,
		ImagesProduced: total,
	})
	return nil
}

// FailVariant records a variant-scoped failure. The first failure
// moves the whole job to failed and publishes its one failure event;
// sibling variants keep producing artifacts but no further events.
func (t *ProgressTracker) FailVariant(ctx context.Context, sessionID, scheme string, cause error) {
	var first bool
	snap, err := t.store.Update(ctx, sessionID, func(s *model.JobSession) error {
		v, ok := s.Variants[scheme]
		if !ok {
			return fmt.Errorf("unknown color scheme %q", scheme)
		}
		v.Failed = true
		if !s.Status.Terminal() {
			s.Status = model.StatusFailed
			msg := cause.Error()
			s.Error = &msg
			first = true
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to record failure for %s/%s: %v", sessionID, scheme, err)
		return
	}
	log.Printf("Variant %s of job %s failed: %v", scheme, sessionID, cause)
	if first {
		t.notifier.Publish(sessionID, model.FailedEvent{
			Type: model.WSEventTypeFailed,
			Error: model.WSError{
				Code:    "RENDER_FAILED",
				Message: cause.Error(),
			},
			Session: snap,
		})
	}
}

// FailJob marks the whole session failed (used for storage errors
// during finalization). Publishes at most one failure event.
func (t *ProgressTracker) FailJob(ctx context.Context, sessionID, code, message string) {
	var first bool
	snap, err := t.store.Update(ctx, sessionID, func(s *model.JobSession) error {
		if !s.Status.Terminal() {
			s.Status = model.StatusFailed
			msg := message
			s.Error = &msg
			first = true
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to mark job %s failed: %v", sessionID, err)
		return
	}
	if first {
		t.notifier.Publish(sessionID, model.FailedEvent{
			Type:    model.WSEventTypeFailed,
			Error:   model.WSError{Code: code, Message: message},
			Session: snap,
		})
	}
}
