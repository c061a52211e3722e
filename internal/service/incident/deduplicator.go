// Package incident decides which detections become incidents.
package incident

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
)

// Outcome is the result of evaluating one detection.
type Outcome int

const (
	// Ineligible: label outside the weapon set or confidence under the threshold.
	Ineligible Outcome = iota
	// Duplicate: an incident for the same pair was accepted within the window.
	Duplicate
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Ineligible:
		return "ineligible"
	case Duplicate:
		return "duplicate"
	case Accepted:
		return "accepted"
	}
	return "unknown"
}

// RecencyLookup answers "most recent incident for (label, source)". It returns nil, nil
// when there is none.
type RecencyLookup interface {
	MostRecent(ctx context.Context, label, sourceID string) (*model.Incident, error)
}

// SourceResolver maps a source id to display metadata.
type SourceResolver interface {
	SourceInfo(sourceID string) model.SourceInfo
}

// Policy configures eligibility and suppression.
type Policy struct {
	WeaponLabels []string
	Threshold    float64
	Window       time.Duration
	// ImagePrefix is prepended to "<id>.jpg" to build the snapshot reference.
	ImagePrefix string
	// LookupTimeout bounds a store recency lookup; past it the detection fails open.
	LookupTimeout time.Duration
}

// DefaultLookupTimeout applies when Policy.LookupTimeout is not positive.
const DefaultLookupTimeout = 2 * time.Second

// Deduplicator is safe for concurrent use. Evaluations of the same (label, source) pair
// are serialized, so check-then-record is atomic within the process.
type Deduplicator struct {
	weapons     map[string]bool
	threshold   float64
	window      time.Duration
	imagePrefix string
	timeout     time.Duration

	store   RecencyLookup
	sources SourceResolver
	recency *RecencyIndex

	locks   map[string]*sync.Mutex
	locksMu sync.RWMutex

	newID   func() string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewDeduplicator creates a Deduplicator backed by store for recency lookups that miss
// the in-memory index.
func NewDeduplicator(policy Policy, store RecencyLookup, sources SourceResolver, logger *logger.Logger, m *metrics.Metrics) *Deduplicator {
	weapons := make(map[string]bool, len(policy.WeaponLabels))
	for _, l := range policy.WeaponLabels {
		weapons[l] = true
	}
	timeout := policy.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Deduplicator{
		weapons:     weapons,
		threshold:   policy.Threshold,
		window:      policy.Window,
		imagePrefix: policy.ImagePrefix,
		timeout:     timeout,
		store:       store,
		sources:     sources,
		recency:     NewRecencyIndex(policy.Window),
		locks:       make(map[string]*sync.Mutex),
		newID:       uuid.NewString,
		logger:      logger,
		metrics:     m,
	}
}

// Eligible reports whether det may become an incident at all.
func (d *Deduplicator) Eligible(det model.Detection) bool {
	return d.weapons[det.Label] && det.Confidence >= d.threshold
}

// Evaluate decides whether det, seen on sourceID at now, is a new incident. The returned
// Incident is only meaningful when the outcome is Accepted.
//
// If the recency lookup fails the detection is accepted (fail-open): a possible duplicate
// alert is preferred over a missed one.
func (d *Deduplicator) Evaluate(ctx context.Context, det model.Detection, sourceID string, now time.Time) (model.Incident, Outcome) {
	if !d.Eligible(det) {
		d.metrics.DetectionSuppressed(metrics.ReasonIneligible)
		return model.Incident{}, Ineligible
	}

	key := Key(det.Label, sourceID)
	lock := d.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Timestamps are stored at second resolution, so the window is checked on that scale too.
	at := now.Truncate(time.Second)

	if last, ok := d.lastAccepted(ctx, det.Label, sourceID, key); ok && at.Sub(last) < d.window {
		d.metrics.DetectionSuppressed(metrics.ReasonDuplicate)
		d.logger.Info("Suppressed duplicate %s on %s (last incident %s ago)", det.Label, sourceID, at.Sub(last))
		return model.Incident{}, Duplicate
	}

	id := d.newID()
	info := d.sources.SourceInfo(sourceID)
	inc := model.Incident{
		ID:         id,
		Timestamp:  model.FormatTimestamp(at),
		SourceID:   sourceID,
		SourceName: info.Name,
		Location:   info.Location,
		Label:      det.Label,
		Confidence: math.Round(det.Confidence*100) / 100,
		Image:      d.imagePrefix + "/" + id + ".jpg",
	}

	d.recency.Record(key, at)
	d.metrics.IncidentAccepted(det.Label)
	return inc, Accepted
}

// lastAccepted consults the index first and the store on a miss. The store lookup runs
// under its own deadline so a stalled database cannot hold the pair lock indefinitely.
func (d *Deduplicator) lastAccepted(ctx context.Context, label, sourceID, key string) (time.Time, bool) {
	if t, ok := d.recency.Last(key); ok {
		return t, true
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	prev, err := d.store.MostRecent(lookupCtx, label, sourceID)
	cancel()
	if err != nil {
		d.metrics.RecencyDegraded()
		d.logger.Warning("Recency lookup failed for %s on %s, accepting detection: %v", label, sourceID, err)
		return time.Time{}, false
	}
	if prev == nil {
		return time.Time{}, false
	}

	t, err := prev.Time()
	if err != nil {
		d.logger.Warning("Unparseable timestamp %q on incident %s: %v", prev.Timestamp, prev.ID, err)
		return time.Time{}, false
	}
	return t, true
}

// keyLock returns the mutex of key, creating it when absent.
func (d *Deduplicator) keyLock(key string) *sync.Mutex {
	d.locksMu.RLock()
	lock, exists := d.locks[key]
	d.locksMu.RUnlock()

	if exists {
		return lock
	}

	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	// Double-check (may have been created by another goroutine)
	if lock, exists := d.locks[key]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	d.locks[key] = lock
	return lock
}
