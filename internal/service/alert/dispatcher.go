package alert

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
	"weaponwatch/internal/repository"
)

// Deliverer is the external alert channel.
type Deliverer interface {
	Enabled() bool
	Deliver(ctx context.Context, destination string, inc model.Incident) error
}

// forgetter is implemented by channels caching per-destination state.
type forgetter interface {
	Forget(destinations ...string)
}

// Dispatcher drains the queue in FIFO order and delivers each incident to every
// known destination. It is the only consumer of the queue.
type Dispatcher struct {
	queue        *Queue
	destinations repository.DestinationRepository
	channel      Deliverer
	limiter      *rate.Limiter
	storeTimeout time.Duration
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// NewDispatcher creates a dispatcher sending at most perSecond messages per second.
func NewDispatcher(queue *Queue, destinations repository.DestinationRepository, channel Deliverer, perSecond float64, logger *logger.Logger, m *metrics.Metrics) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{
		queue:        queue,
		destinations: destinations,
		channel:      channel,
		limiter:      rate.NewLimiter(limit, 1),
		storeTimeout: 5 * time.Second,
		logger:       logger,
		metrics:      m,
	}
}

// Run blocks until ctx is cancelled. Incidents still queued at that point are not delivered.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("📨 Alert dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("🛑 Alert dispatcher stopped (%d pending)", d.queue.Len())
			return nil
		case inc := <-d.queue.C():
			d.metrics.SetAlertQueueDepth(d.queue.Len())
			d.Dispatch(ctx, inc)
		}
	}
}

// Dispatch delivers one incident and prunes every destination that turned out unreachable.
func (d *Dispatcher) Dispatch(ctx context.Context, inc model.Incident) {
	if !d.channel.Enabled() {
		d.metrics.AlertDelivery(metrics.DeliveryDisabled)
		d.logger.Info("Alert channel not configured, skipping incident %s", inc.ID)
		return
	}

	destinations, err := d.destinations.List(ctx)
	if err != nil {
		d.logger.Error("Failed to list alert destinations: %v", err)
		return
	}
	if len(destinations) == 0 {
		d.logger.Info("No subscribers for incident alerts")
		return
	}

	var unreachable []string
	for _, dest := range destinations {
		// Wait fails once ctx is cancelled; destinations found unreachable so far are
		// still removed below.
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.Info("Alert delivery for incident %s interrupted: %v", inc.ID, err)
			break
		}

		err := d.channel.Deliver(ctx, dest, inc)
		switch {
		case err == nil:
			d.metrics.AlertDelivery(metrics.DeliverySent)
			d.logger.Info("Alert for incident %s sent to %s", inc.ID, dest)
		case errors.Is(err, ErrUnreachable):
			d.metrics.AlertDelivery(metrics.DeliveryUnreachable)
			d.logger.Warning("Removing unreachable destination %s: %v", dest, err)
			unreachable = append(unreachable, dest)
		default:
			d.logger.Error("Failed to deliver incident %s to %s: %v", inc.ID, dest, err)
		}
	}

	if len(unreachable) == 0 {
		return
	}

	// Removal must persist even when Run is being cancelled.
	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.storeTimeout)
	defer cancel()
	if err := d.destinations.RemoveBatch(removeCtx, unreachable); err != nil {
		d.logger.Error("Failed to remove %d unreachable destinations: %v", len(unreachable), err)
		return
	}
	if f, ok := d.channel.(forgetter); ok {
		f.Forget(unreachable...)
	}
}
