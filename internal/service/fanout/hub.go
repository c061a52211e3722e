// Package fanout delivers every accepted incident to each sink independently.
package fanout

import (
	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
)

// LiveSink receives every incident, in publish order.
type LiveSink interface {
	Broadcast(inc model.Incident) error
}

// AlertSink receives incidents while notifications are enabled. Enqueue must not block.
type AlertSink interface {
	Enqueue(inc model.Incident) (evicted model.Incident, dropped bool)
}

// Emitter is an optional extra sink such as a message broker.
type Emitter interface {
	Name() string
	Emit(inc model.Incident) error
}

// Gate reports whether external alerting is enabled.
type Gate interface {
	Enabled() bool
}

// Hub is the single publish point of the pipeline. A failure in one sink never
// prevents delivery to the others.
type Hub struct {
	live     LiveSink
	alerts   AlertSink
	gate     Gate
	emitters []Emitter
	logger   *logger.Logger
}

// NewHub creates a Hub. emitters may be empty.
func NewHub(live LiveSink, alerts AlertSink, gate Gate, logger *logger.Logger, emitters ...Emitter) *Hub {
	return &Hub{
		live:     live,
		alerts:   alerts,
		gate:     gate,
		emitters: emitters,
		logger:   logger,
	}
}

// Publish hands inc to the live sink, then to the alert sink if the gate is open at this
// moment, then to every emitter. It returns once every sink has accepted or refused it.
func (h *Hub) Publish(inc model.Incident) {
	if err := h.live.Broadcast(inc); err != nil {
		h.logger.Error("Live broadcast of incident %s failed: %v", inc.ID, err)
	}

	if h.gate.Enabled() {
		h.alerts.Enqueue(inc)
	} else {
		h.logger.Info("Notifications disabled, skipping alert for incident %s", inc.ID)
	}

	for _, e := range h.emitters {
		if err := e.Emit(inc); err != nil {
			h.logger.Warning("%s emit of incident %s failed: %v", e.Name(), inc.ID, err)
		}
	}
}
