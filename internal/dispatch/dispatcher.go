package dispatch

import (
	"context"
	"fmt"

	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/retry"
)

// Dispatcher routes notifications to the configured gateway with bounded
// retries. Delivery failures after all attempts are surfaced to the
// caller; the caller decides whether the reminder state advances.
type Dispatcher struct {
	gateway  Gateway
	logger   *logger.Logger
	retryCfg retry.Config
	metrics  *Metrics
}

// New creates a dispatcher in front of the given gateway.
func New(gateway Gateway, log *logger.Logger, retryCfg retry.Config, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		gateway:  gateway,
		logger:   log,
		retryCfg: retryCfg,
		metrics:  metrics,
	}
}

// Send delivers the notification, retrying transient failures.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	err := retry.Do(ctx, func() error {
		return d.gateway.Push(ctx, n)
	}, d.retryCfg)

	if err != nil {
		d.metrics.sent(d.gateway.Name(), string(n.Kind), "failed")
		d.logger.Error("notification delivery failed", err,
			logger.Field{Key: "channel", Value: d.gateway.Name()},
			logger.Field{Key: "target", Value: n.Target},
			logger.Field{Key: "kind", Value: string(n.Kind)})
		return fmt.Errorf("dispatch to %s: %w", d.gateway.Name(), err)
	}

	d.metrics.sent(d.gateway.Name(), string(n.Kind), "delivered")
	d.logger.Debug("notification delivered",
		logger.Field{Key: "channel", Value: d.gateway.Name()},
		logger.Field{Key: "target", Value: n.Target},
		logger.Field{Key: "kind", Value: string(n.Kind)})
	return nil
}
