package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err, "second registration on the same registry should fail")
}

func TestMetrics_Record(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.FrameCaptured()
	m.FrameCaptured()
	m.Detection("pistol")
	m.IncidentAccepted("pistol")
	m.DetectionSuppressed(ReasonDuplicate)
	m.StoreError("save")
	m.SetLiveSubscribers(3)
	m.SetAlertQueueDepth(5)
	m.AlertDelivery(DeliveryUnreachable)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.framesCaptured))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.detections.WithLabelValues("pistol")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.incidentsAccepted.WithLabelValues("pistol")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.detectionsSuppressed.WithLabelValues(ReasonDuplicate)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.storeErrors.WithLabelValues("save")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.liveSubscribers))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.alertQueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.alertDeliveries.WithLabelValues(DeliveryUnreachable)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameCaptured()
		m.CaptureFailed()
		m.Detection("knife")
		m.RecencyDegraded()
		m.LiveSubscriberDropped()
		m.AlertDropped()
	})
}
