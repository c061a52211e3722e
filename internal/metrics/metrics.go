// Package metrics provides the Prometheus metrics of the detection pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weaponwatch"

// Suppression reasons.
const (
	ReasonIneligible = "ineligible"
	ReasonDuplicate  = "duplicate"
)

// Delivery results.
const (
	DeliverySent        = "sent"
	DeliveryUnreachable = "unreachable"
	DeliveryDisabled    = "disabled"
)

// Metrics holds every pipeline metric. A nil *Metrics records nothing.
type Metrics struct {
	framesCaptured      prometheus.Counter
	captureFailures     prometheus.Counter
	detections          *prometheus.CounterVec
	incidentsAccepted   *prometheus.CounterVec
	detectionsSuppressed *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec
	recencyDegraded     prometheus.Counter
	liveSubscribers     prometheus.Gauge
	liveDropped         prometheus.Counter
	alertQueueDepth     prometheus.Gauge
	alertQueueDropped   prometheus.Counter
	alertDeliveries     *prometheus.CounterVec
	registry            *prometheus.Registry
}

// New creates the pipeline metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.framesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_captured_total",
		Help:      "Total number of frames read from the video source",
	})
	m.captureFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_failures_total",
		Help:      "Total number of capture ticks that produced no frame",
	})
	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detections_total",
		Help:      "Total number of detections reported by the detector",
	}, []string{"label"})
	m.incidentsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incidents_accepted_total",
		Help:      "Total number of detections accepted as incidents",
	}, []string{"label"})
	m.detectionsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detections_suppressed_total",
		Help:      "Total number of detections not turned into incidents",
	}, []string{"reason"})
	m.storeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Total number of failed incident store operations",
	}, []string{"op"})
	m.recencyDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recency_degraded_total",
		Help:      "Total number of duplicate checks that failed open",
	})
	m.liveSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers",
		Help:      "Current number of live incident subscribers",
	})
	m.liveDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_subscribers_dropped_total",
		Help:      "Total number of live subscribers dropped for being slow or broken",
	})
	m.alertQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "alert_queue_depth",
		Help:      "Current number of incidents waiting for alert delivery",
	})
	m.alertQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_queue_dropped_total",
		Help:      "Total number of incidents evicted from a full alert queue",
	})
	m.alertDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_deliveries_total",
		Help:      "Total number of alert deliveries by result",
	}, []string{"result"})
}

func (m *Metrics) FrameCaptured() {
	if m != nil {
		m.framesCaptured.Inc()
	}
}

func (m *Metrics) CaptureFailed() {
	if m != nil {
		m.captureFailures.Inc()
	}
}

func (m *Metrics) Detection(label string) {
	if m != nil {
		m.detections.WithLabelValues(label).Inc()
	}
}

func (m *Metrics) IncidentAccepted(label string) {
	if m != nil {
		m.incidentsAccepted.WithLabelValues(label).Inc()
	}
}

// DetectionSuppressed counts a detection dropped for reason (ReasonIneligible or ReasonDuplicate).
func (m *Metrics) DetectionSuppressed(reason string) {
	if m != nil {
		m.detectionsSuppressed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) StoreError(op string) {
	if m != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) RecencyDegraded() {
	if m != nil {
		m.recencyDegraded.Inc()
	}
}

func (m *Metrics) SetLiveSubscribers(n int) {
	if m != nil {
		m.liveSubscribers.Set(float64(n))
	}
}

func (m *Metrics) LiveSubscriberDropped() {
	if m != nil {
		m.liveDropped.Inc()
	}
}

func (m *Metrics) SetAlertQueueDepth(n int) {
	if m != nil {
		m.alertQueueDepth.Set(float64(n))
	}
}

func (m *Metrics) AlertDropped() {
	if m != nil {
		m.alertQueueDropped.Inc()
	}
}

// AlertDelivery counts one delivery attempt by result.
func (m *Metrics) AlertDelivery(result string) {
	if m != nil {
		m.alertDeliveries.WithLabelValues(result).Inc()
	}
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.framesCaptured.Collect(ch)
	m.captureFailures.Collect(ch)
	m.detections.Collect(ch)
	m.incidentsAccepted.Collect(ch)
	m.detectionsSuppressed.Collect(ch)
	m.storeErrors.Collect(ch)
	m.recencyDegraded.Collect(ch)
	m.liveSubscribers.Collect(ch)
	m.liveDropped.Collect(ch)
	m.alertQueueDepth.Collect(ch)
	m.alertQueueDropped.Collect(ch)
	m.alertDeliveries.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesCaptured.Describe(ch)
	m.captureFailures.Describe(ch)
	m.detections.Describe(ch)
	m.incidentsAccepted.Describe(ch)
	m.detectionsSuppressed.Describe(ch)
	m.storeErrors.Describe(ch)
	m.recencyDegraded.Describe(ch)
	m.liveSubscribers.Describe(ch)
	m.liveDropped.Describe(ch)
	m.alertQueueDepth.Describe(ch)
	m.alertQueueDropped.Describe(ch)
	m.alertDeliveries.Describe(ch)
}
