// Package notifier publishes settlement state changes to external indexers:
// structured logs, a Redis channel, and a websocket feed. Emission is
// fire-and-forget; a lost notification never affects settlement outcomes.
package notifier

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/pkg/config"
	"github.com/attendfi/attendfi-api/pkg/jobs"
)

// Notifier fans notifications out through a background queue so emitters
// never block on slow sinks.
type Notifier struct {
	queue   *jobs.Queue
	redis   *redis.Client
	hub     *Hub
	channel string
	logger  *zap.Logger
}

// New constructs a notifier. The Redis client and hub are optional; absent
// sinks are skipped.
func New(redisClient *redis.Client, hub *Hub, cfg config.NotificationsConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}
	buffer := cfg.BufferSize
	if buffer < 1 {
		buffer = 256
	}
	n := &Notifier{redis: redisClient, hub: hub, channel: cfg.Channel, logger: logger}
	n.queue = jobs.NewQueue("notifications", n.deliver, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: buffer,
		MaxRetries: 2,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Emit queues one notification for delivery. Never blocks the caller beyond
// the queue buffer; overflow is logged and dropped.
func (n *Notifier) Emit(notification models.Notification) {
	n.logger.Info("notification",
		zap.String("type", string(notification.Type)),
		zap.Int64("event_id", notification.EventID),
		zap.String("address", notification.Address),
		zap.Int64("amount", notification.Amount))
	if err := n.queue.Enqueue(jobs.Job{
		ID:      notification.ID,
		Type:    string(notification.Type),
		Payload: notification,
	}); err != nil {
		n.logger.Warn("notification dropped", zap.String("id", notification.ID), zap.Error(err))
	}
}

func (n *Notifier) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		n.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	data, err := json.Marshal(notification)
	if err != nil {
		n.logger.Warn("notification marshal failed", zap.String("id", notification.ID), zap.Error(err))
		return nil
	}
	if n.redis != nil {
		if err := n.redis.Publish(ctx, n.channel, data).Err(); err != nil {
			return err
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(data)
	}
	return nil
}
