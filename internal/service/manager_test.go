package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
	"weaponwatch/internal/service/annotate"
	"weaponwatch/internal/service/camera"
	"weaponwatch/internal/service/fanout"
	"weaponwatch/internal/service/incident"
	"weaponwatch/internal/service/toggle"
)

// ========================================
// Fakes
// ========================================

// journal records the order of side effects across collaborators.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

type scriptedDetector struct {
	detections []model.Detection
	err        error
}

func (d *scriptedDetector) Detect(context.Context, *image.RGBA) ([]model.Detection, error) {
	return d.detections, d.err
}

type memIncidents struct {
	j       *journal
	saved   []model.Incident
	saveErr error
}

func (r *memIncidents) Save(_ context.Context, inc model.Incident) error {
	r.j.add("save:" + inc.Label)
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, inc)
	return nil
}

func (r *memIncidents) MostRecent(_ context.Context, label, sourceID string) (*model.Incident, error) {
	for i := len(r.saved) - 1; i >= 0; i-- {
		if r.saved[i].Label == label && r.saved[i].SourceID == sourceID {
			inc := r.saved[i]
			return &inc, nil
		}
	}
	return nil, nil
}

func (r *memIncidents) Query(context.Context, dto.IncidentFilter) ([]model.Incident, error) {
	return r.saved, nil
}

func (r *memIncidents) CountAll(context.Context) (int, error) { return len(r.saved), nil }

func (r *memIncidents) AggregateByPeriod(context.Context, dto.Granularity) ([]dto.PeriodCount, error) {
	return nil, nil
}

func (r *memIncidents) AggregateByField(context.Context, dto.Field) ([]dto.CategoryCount, error) {
	return nil, nil
}

type memSnapshots struct {
	j    *journal
	refs []string
}

func (s *memSnapshots) Save(ref string, _ image.Image) error {
	s.j.add("snapshot")
	s.refs = append(s.refs, ref)
	return nil
}

type journalLive struct{ j *journal }

func (l journalLive) Broadcast(inc model.Incident) error {
	l.j.add("live:" + inc.Label)
	return nil
}

type journalAlerts struct{ j *journal }

func (a journalAlerts) Enqueue(inc model.Incident) (model.Incident, bool) {
	a.j.add("alert:" + inc.Label)
	return model.Incident{}, false
}

type journalEvaluator struct {
	j     *journal
	inner *incident.Deduplicator
}

func (e journalEvaluator) Evaluate(ctx context.Context, det model.Detection, sourceID string, now time.Time) (model.Incident, incident.Outcome) {
	inc, outcome := e.inner.Evaluate(ctx, det, sourceID, now)
	e.j.add("eval:" + det.Label + ":" + outcome.String())
	return inc, outcome
}

type staticSources struct{}

func (staticSources) SourceInfo(id string) model.SourceInfo {
	return model.SourceInfo{Name: id, Location: "Unknown"}
}

type harness struct {
	j         *journal
	detector  *scriptedDetector
	incidents *memIncidents
	snapshots *memSnapshots
	gate      *toggle.Toggle
	current   *camera.CurrentFrame
	manager   *Manager
}

func newHarness() *harness {
	j := &journal{}
	h := &harness{
		j:         j,
		detector:  &scriptedDetector{},
		incidents: &memIncidents{j: j},
		snapshots: &memSnapshots{j: j},
		gate:      toggle.New(true),
		current:   camera.NewCurrentFrame(),
	}

	log := logger.Discard()
	dedup := incident.NewDeduplicator(incident.Policy{
		WeaponLabels: []string{"pistol", "knife"},
		Threshold:    0.78,
		Window:       10 * time.Second,
		ImagePrefix:  "/incidents",
	}, h.incidents, staticSources{}, log, nil)

	h.manager = NewManager(Pipeline{
		SourceID:  "Camera 1",
		Detector:  h.detector,
		Annotator: annotate.New([]string{"pistol", "knife"}),
		Evaluator: journalEvaluator{j: j, inner: dedup},
		Snapshots: h.snapshots,
		Incidents: h.incidents,
		Publisher: fanout.NewHub(journalLive{j}, journalAlerts{j}, h.gate, log),
		Current:   h.current,
	}, log, nil)
	return h
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

func frameAt(seq uint64, at time.Time) *model.Frame {
	return &model.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 64)), Seq: seq, CapturedAt: at}
}

// ========================================
// Tests
// ========================================

func TestManager_PersistAndPublishBeforeNextDetection(t *testing.T) {
	h := newHarness()
	h.detector.detections = []model.Detection{
		{Label: "pistol", Confidence: 0.9, Box: image.Rect(1, 1, 10, 10)},
		{Label: "neutral", Confidence: 0.95, Box: image.Rect(20, 20, 30, 30)},
		{Label: "knife", Confidence: 0.8, Box: image.Rect(30, 30, 40, 40)},
	}

	h.manager.HandleFrame(context.Background(), frameAt(1, t0))

	assert.Equal(t, []string{
		"eval:pistol:accepted", "snapshot", "save:pistol", "live:pistol", "alert:pistol",
		"eval:neutral:ineligible",
		"eval:knife:accepted", "snapshot", "save:knife", "live:knife", "alert:knife",
	}, h.j.entries)

	cur, ok := h.current.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(1), cur.Seq)
}

func TestManager_DuplicateStreamAcrossFrames(t *testing.T) {
	h := newHarness()
	h.detector.detections = []model.Detection{{Label: "pistol", Confidence: 0.9}}

	for i, offset := range []time.Duration{0, 3 * time.Second, 12 * time.Second} {
		h.manager.HandleFrame(context.Background(), frameAt(uint64(i+1), t0.Add(offset)))
	}

	require.Len(t, h.incidents.saved, 2)
	assert.Equal(t, "2024-01-01_12-00-00", h.incidents.saved[0].Timestamp)
	assert.Equal(t, "2024-01-01_12-00-12", h.incidents.saved[1].Timestamp)
}

func TestManager_ToggleOffStillPersistsAndStreams(t *testing.T) {
	h := newHarness()
	h.gate.Set(false)
	h.detector.detections = []model.Detection{{Label: "pistol", Confidence: 0.9}}

	h.manager.HandleFrame(context.Background(), frameAt(1, t0))

	assert.Equal(t, []string{"eval:pistol:accepted", "snapshot", "save:pistol", "live:pistol"}, h.j.entries)
	assert.Len(t, h.incidents.saved, 1)
}

func TestManager_StoreFailureStillPublishes(t *testing.T) {
	h := newHarness()
	h.incidents.saveErr = errors.New("disk full")
	h.detector.detections = []model.Detection{{Label: "knife", Confidence: 0.99}}

	h.manager.HandleFrame(context.Background(), frameAt(1, t0))

	assert.Contains(t, h.j.entries, "live:knife")
	assert.Contains(t, h.j.entries, "alert:knife")
	require.Len(t, h.snapshots.refs, 1)
}

func TestManager_DetectorErrorPublishesRawFrame(t *testing.T) {
	h := newHarness()
	h.detector.err = errors.New("network not loaded")

	h.manager.HandleFrame(context.Background(), frameAt(7, t0))

	assert.Empty(t, h.j.entries)
	cur, ok := h.current.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(7), cur.Seq)
}

func TestManager_NoDetections(t *testing.T) {
	h := newHarness()

	h.manager.HandleFrame(context.Background(), frameAt(3, t0))

	assert.Empty(t, h.j.entries)
	assert.Equal(t, uint64(3), h.current.Seq())
}
