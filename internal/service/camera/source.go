package camera

import (
	"context"
	"image"
	"time"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
)

// Capturer reads raw frames from a video device.
type Capturer interface {
	// Capture returns the next frame, or false when none is available right now.
	Capture() (*image.RGBA, bool)
	Close() error
}

// FrameHandler processes one captured frame. It runs on the capture goroutine.
type FrameHandler func(ctx context.Context, f *model.Frame)

// Source pulls frames from a Capturer at a fixed rate.
type Source struct {
	capturer Capturer
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSource creates a Source ticking fps times per second.
func NewSource(capturer Capturer, fps int, logger *logger.Logger, m *metrics.Metrics) *Source {
	if fps <= 0 {
		fps = 1
	}
	return &Source{
		capturer: capturer,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run captures until ctx is cancelled, calling handle for every frame obtained.
// Handling happens inline, so a slow handler lowers the effective frame rate rather
// than queueing frames.
func (s *Source) Run(ctx context.Context, handle FrameHandler) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("📹 Capture loop started (interval %v)", s.interval)

	var seq uint64
	available := true
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("🛑 Capture loop stopped")
			return nil
		case <-ticker.C:
		}

		img, ok := s.capturer.Capture()
		if !ok {
			s.metrics.CaptureFailed()
			if available {
				s.logger.Warning("Video source unavailable, waiting for frames")
				available = false
			}
			continue
		}
		if !available {
			s.logger.Info("Video source available again")
			available = true
		}

		seq++
		s.metrics.FrameCaptured()
		handle(ctx, &model.Frame{Image: img, Seq: seq, CapturedAt: s.now()})
	}
}
