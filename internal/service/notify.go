package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
)

const JobEventsChannel = "songgen:job-events"

// Notifier receives job lifecycle events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event model.JobEvent) error
}

// MultiNotifier fans an event out to every notifier and reports the
// first failure after all have been tried.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event model.JobEvent) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RedisNotifier publishes events on a redis channel so API instances can
// relay events produced by standalone workers.
type RedisNotifier struct {
	redis   *redis.Client
	channel string
}

func NewRedisNotifier(redisClient *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: redisClient, channel: JobEventsChannel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event model.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.redis.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Relay subscribes to the channel and forwards every event to sink until
// ctx is cancelled.
func (n *RedisNotifier) Relay(ctx context.Context, sink Notifier) error {
	sub := n.redis.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	log := logger.WithComponent("relay")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).Warn("Dropping malformed job event")
				continue
			}
			if err := sink.Notify(ctx, event); err != nil {
				log.WithError(err).WithField("job_id", event.JobID).Warn("Failed to relay job event")
			}
		}
	}
}

// notify sends an event and logs, never returns, a failure.
func notify(ctx context.Context, n Notifier, event model.JobEvent) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		logger.WithJob(event.JobID).WithError(err).Warnf("Notification %s failed", event.Type)
	}
}
