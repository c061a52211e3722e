// Package alert delivers incidents to the external alert channel asynchronously.
package alert

import (
	"sync"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
)

// Queue is a bounded FIFO of incidents awaiting delivery. When full, the oldest
// pending incident is evicted to make room for the new one.
type Queue struct {
	mu      sync.Mutex
	ch      chan model.Incident
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewQueue creates a queue holding at most size incidents.
func NewQueue(size int, logger *logger.Logger, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:      make(chan model.Incident, size),
		logger:  logger,
		metrics: m,
	}
}

// Enqueue adds inc without blocking. It returns the evicted incident, if any.
func (q *Queue) Enqueue(inc model.Incident) (model.Incident, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var evicted model.Incident
	dropped := false
	for {
		select {
		case q.ch <- inc:
			q.metrics.SetAlertQueueDepth(len(q.ch))
			return evicted, dropped
		default:
		}

		// Full: evict the head. The dispatcher may have drained it concurrently,
		// in which case the next send succeeds.
		select {
		case old := <-q.ch:
			evicted, dropped = old, true
			q.metrics.AlertDropped()
			q.logger.Warning("Alert queue full, dropped incident %s (%s on %s)", old.ID, old.Label, old.SourceName)
		default:
		}
	}
}

// C is the receive side drained by the dispatcher.
func (q *Queue) C() <-chan model.Incident {
	return q.ch
}

// Len returns the number of pending incidents.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
