package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/bits"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundwall/api/internal/audio"
	"github.com/soundwall/api/internal/client"
	"github.com/soundwall/api/internal/model"
	"github.com/soundwall/api/internal/store"
)

// ErrInvalidParams marks malformed job parameters; the job never starts
var ErrInvalidParams = errors.New("invalid parameters")

// VariantDispatcher schedules one variant's rendering as an
// independent unit of work.
type VariantDispatcher interface {
	Dispatch(ctx context.Context, task *model.VariantTask) error
}

// Limits for a wallpaper job, sourced from configuration
type Limits struct {
	MinDimension int
	MaxDimension int
	MaxFFTSize   int
}

// WallpaperService drives a job from request validation through
// variant fan-out. Progress and completion are handled by the
// ProgressTracker the dispatched workers call back into.
type WallpaperService struct {
	sessions   store.SessionStore
	provider   client.AssetProvider
	dispatcher VariantDispatcher
	notifier   Notifier
	dataDir    string
	schemes    []string
	limits     Limits
}

func NewWallpaperService(
	sessions store.SessionStore,
	provider client.AssetProvider,
	dispatcher VariantDispatcher,
	notifier Notifier,
	dataDir string,
	schemes []string,
	limits Limits,
) *WallpaperService {
	return &WallpaperService{
		sessions:   sessions,
		provider:   provider,
		dispatcher: dispatcher,
		notifier:   notifier,
		dataDir:    dataDir,
		schemes:    schemes,
		limits:     limits,
	}
}

// CreateWallpaper validates the request, prepares the source sound and
// fans out one worker per enabled color scheme. It returns before
// rendering finishes; everything after this call reaches the client
// through the session's notification channel. A returned error means
// the job never started and the caller owns reporting it.
func (s *WallpaperService) CreateWallpaper(ctx context.Context, sessionID string, params *model.WallpaperParams) error {
	if len(s.schemes) == 0 {
		return fmt.Errorf("%w: no color schemes enabled", ErrInvalidParams)
	}
	if params.SoundID <= 0 {
		return fmt.Errorf("%w: sound id must be positive", ErrInvalidParams)
	}
	if params.FFTSize <= 0 || bits.OnesCount(uint(params.FFTSize)) != 1 || params.FFTSize > s.limits.MaxFFTSize {
		return fmt.Errorf("%w: fft size must be a power of two up to %d", ErrInvalidParams, s.limits.MaxFFTSize)
	}

	width := clamp(params.Width, s.limits.MinDimension, s.limits.MaxDimension)
	height := clamp(params.Height, s.limits.MinDimension, s.limits.MaxDimension)

	log.Printf("Creating wallpaper for session %s: sound=%d size=%dx%d fft=%d",
		sessionID, params.SoundID, width, height, params.FFTSize)

	info, sourcePath, err := s.provider.Resolve(ctx, params.SoundID)
	if err != nil {
		return err
	}
	wavPath, err := audio.EnsureWAV(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("prepare audio: %w", err)
	}

	session := s.newSession(sessionID, info, params, width, height)
	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	tasks := s.buildTasks(session, wavPath)
	if _, err := s.sessions.Update(ctx, sessionID, func(sess *model.JobSession) error {
		sess.Status = model.StatusGenerating
		return nil
	}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	for _, task := range tasks {
		if err := s.dispatcher.Dispatch(ctx, task); err != nil {
			s.markFailed(ctx, sessionID, fmt.Sprintf("Could not schedule rendering: %v", err))
			return fmt.Errorf("dispatch variant %s: %w", task.ColorScheme, err)
		}
	}

	snap, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		s.notifier.Publish(sessionID, model.ProgressEvent{
			Type:    model.WSEventTypeProgress,
			Session: snap,
		})
	}
	return nil
}

func (s *WallpaperService) newSession(sessionID string, info *client.SoundInfo, params *model.WallpaperParams, width, height int) *model.JobSession {
	// Short random basename keeps repeated jobs for the same sound apart
	base := strings.SplitN(uuid.New().String(), "-", 2)[0]

	session := &model.JobSession{
		SessionID:    sessionID,
		SoundID:      params.SoundID,
		SoundName:    info.Name,
		Attribution:  info.Username,
		Previews:     info.Previews,
		Width:        width,
		Height:       height,
		FFTSize:      params.FFTSize,
		ColorSchemes: append([]string(nil), s.schemes...),
		Variants:     make(map[string]*model.VariantJob, len(s.schemes)),
		Status:       model.StatusPreparing,
		Remaining:    len(s.schemes),
		CreatedAt:    time.Now(),
	}
	for _, scheme := range s.schemes {
		session.Variants[scheme] = &model.VariantJob{
			ColorScheme:         scheme,
			WaveformFilename:    fmt.Sprintf("%d_w_%s_%s.png", params.SoundID, base, scheme),
			SpectrogramFilename: fmt.Sprintf("%d_s_%s_%s.jpg", params.SoundID, base, scheme),
		}
	}
	return session
}

func (s *WallpaperService) buildTasks(session *model.JobSession, wavPath string) []*model.VariantTask {
	tasks := make([]*model.VariantTask, 0, len(session.ColorSchemes))
	for _, scheme := range session.ColorSchemes {
		v := session.Variants[scheme]
		tasks = append(tasks, &model.VariantTask{
			SessionID:       session.SessionID,
			ColorScheme:     scheme,
			SourcePath:      wavPath,
			Width:           session.Width,
			Height:          session.Height,
			FFTSize:         session.FFTSize,
			WaveformPath:    filepath.Join(s.dataDir, v.WaveformFilename),
			SpectrogramPath: filepath.Join(s.dataDir, v.SpectrogramFilename),
		})
	}
	return tasks
}

func (s *WallpaperService) markFailed(ctx context.Context, sessionID, message string) {
	_, err := s.sessions.Update(ctx, sessionID, func(sess *model.JobSession) error {
		if !sess.Status.Terminal() {
			sess.Status = model.StatusFailed
			sess.Error = &message
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to mark session %s failed: %v", sessionID, err)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
