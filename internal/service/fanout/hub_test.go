package fanout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
	"weaponwatch/internal/service/toggle"
)

type recordingLive struct {
	ids []string
	err error
}

func (r *recordingLive) Broadcast(inc model.Incident) error {
	r.ids = append(r.ids, inc.ID)
	return r.err
}

type recordingAlerts struct {
	ids []string
}

func (r *recordingAlerts) Enqueue(inc model.Incident) (model.Incident, bool) {
	r.ids = append(r.ids, inc.ID)
	return model.Incident{}, false
}

type recordingEmitter struct {
	ids []string
	err error
}

func (r *recordingEmitter) Name() string { return "test" }

func (r *recordingEmitter) Emit(inc model.Incident) error {
	r.ids = append(r.ids, inc.ID)
	return r.err
}

func TestHub_PublishToAllSinks(t *testing.T) {
	live, alerts, emitter := &recordingLive{}, &recordingAlerts{}, &recordingEmitter{}
	hub := NewHub(live, alerts, toggle.New(true), logger.Discard(), emitter)

	hub.Publish(model.Incident{ID: "1"})
	hub.Publish(model.Incident{ID: "2"})

	assert.Equal(t, []string{"1", "2"}, live.ids)
	assert.Equal(t, []string{"1", "2"}, alerts.ids)
	assert.Equal(t, []string{"1", "2"}, emitter.ids)
}

func TestHub_ToggleCheckedAtPublishTime(t *testing.T) {
	live, alerts := &recordingLive{}, &recordingAlerts{}
	gate := toggle.New(true)
	hub := NewHub(live, alerts, gate, logger.Discard())

	hub.Publish(model.Incident{ID: "on"})
	gate.Set(false)
	hub.Publish(model.Incident{ID: "off"})
	gate.Set(true)
	hub.Publish(model.Incident{ID: "on-again"})

	assert.Equal(t, []string{"on", "off", "on-again"}, live.ids, "live delivery ignores the toggle")
	assert.Equal(t, []string{"on", "on-again"}, alerts.ids)
}

func TestHub_SinkFailuresAreIsolated(t *testing.T) {
	live := &recordingLive{err: errors.New("marshal failed")}
	alerts := &recordingAlerts{}
	failing := &recordingEmitter{err: errors.New("not connected")}
	ok := &recordingEmitter{}
	hub := NewHub(live, alerts, toggle.New(true), logger.Discard(), failing, ok)

	hub.Publish(model.Incident{ID: "1"})

	assert.Equal(t, []string{"1"}, alerts.ids)
	assert.Equal(t, []string{"1"}, failing.ids)
	assert.Equal(t, []string{"1"}, ok.ids)
}
