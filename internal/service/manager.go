// Package service wires the per-frame detection pipeline.
package service

import (
	"context"
	"image"
	"time"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
	"weaponwatch/internal/repository"
	"weaponwatch/internal/service/annotate"
	"weaponwatch/internal/service/camera"
	"weaponwatch/internal/service/incident"
)

// Detector is the object detection collaborator.
type Detector interface {
	Detect(ctx context.Context, img *image.RGBA) ([]model.Detection, error)
}

// Evaluator decides whether a detection becomes an incident.
type Evaluator interface {
	Evaluate(ctx context.Context, det model.Detection, sourceID string, now time.Time) (model.Incident, incident.Outcome)
}

// SnapshotWriter stores the frame of an accepted incident under its image reference.
type SnapshotWriter interface {
	Save(ref string, img image.Image) error
}

// Publisher distributes accepted incidents.
type Publisher interface {
	Publish(inc model.Incident)
}

// Manager runs every captured frame through detection, annotation, deduplication,
// persistence and fan-out. HandleFrame is called from a single capture goroutine.
type Manager struct {
	sourceID     string
	detector     Detector
	annotator    *annotate.Annotator
	evaluator    Evaluator
	snapshots    SnapshotWriter
	incidents    repository.IncidentRepository
	publisher    Publisher
	current      *camera.CurrentFrame
	storeTimeout time.Duration
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// Pipeline groups the collaborators of a Manager.
type Pipeline struct {
	SourceID     string
	Detector     Detector
	Annotator    *annotate.Annotator
	Evaluator    Evaluator
	Snapshots    SnapshotWriter
	Incidents    repository.IncidentRepository
	Publisher    Publisher
	Current      *camera.CurrentFrame
	StoreTimeout time.Duration
}

func NewManager(p Pipeline, logger *logger.Logger, m *metrics.Metrics) *Manager {
	timeout := p.StoreTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	manager := &Manager{
		sourceID:     p.SourceID,
		detector:     p.Detector,
		annotator:    p.Annotator,
		evaluator:    p.Evaluator,
		snapshots:    p.Snapshots,
		incidents:    p.Incidents,
		publisher:    p.Publisher,
		current:      p.Current,
		storeTimeout: timeout,
		logger:       logger,
		metrics:      m,
	}

	manager.logger.Info("🎬 Manager started for source %s", p.SourceID)
	return manager
}

// HandleFrame processes one frame. Each accepted incident is persisted and published
// before the next detection of the same frame is evaluated. The annotated frame becomes
// the current frame last.
func (m *Manager) HandleFrame(ctx context.Context, frame *model.Frame) {
	detections, err := m.detector.Detect(ctx, frame.Image)
	if err != nil {
		m.logger.Error("Error detecting objects on frame %d: %v", frame.Seq, err)
		m.current.Publish(frame)
		return
	}

	for _, det := range detections {
		m.metrics.Detection(det.Label)
	}

	annotated := m.annotator.Annotate(frame.Image, detections)

	now := frame.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}

	for _, det := range detections {
		inc, outcome := m.evaluator.Evaluate(ctx, det, m.sourceID, now)
		if outcome != incident.Accepted {
			continue
		}
		m.accept(ctx, inc, annotated)
	}

	m.current.Publish(frame.WithImage(annotated))
}

// accept stores the snapshot and record of inc, then publishes it. Storage failures are
// logged and the incident is published anyway.
func (m *Manager) accept(ctx context.Context, inc model.Incident, img *image.RGBA) {
	m.logger.Info("🚨 Incident %s: %s (%.2f) on %s at %s", inc.ID, inc.Label, inc.Confidence, inc.SourceName, inc.Location)

	if err := m.snapshots.Save(inc.Image, img); err != nil {
		m.metrics.StoreError("snapshot")
		m.logger.Error("Failed to save snapshot for incident %s: %v", inc.ID, err)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
	err := m.incidents.Save(saveCtx, inc)
	cancel()
	if err != nil {
		m.metrics.StoreError("save")
		m.logger.Error("Failed to persist incident %s, delivering anyway: %v", inc.ID, err)
	}

	m.publisher.Publish(inc)
}
