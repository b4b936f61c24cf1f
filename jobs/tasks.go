package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/capiplan/capiplan/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDeliverNotifications carries a drained notification batch to
	// the delivery worker.
	TaskTypeDeliverNotifications = "notify:deliver"
)

// DeliverNotificationsPayload wraps one drained batch.
type DeliverNotificationsPayload struct {
	Batch []notify.Notification `json:"batch"`
}

// NewDeliverNotificationsTask constructs the Asynq task.
func NewDeliverNotificationsTask(payload DeliverNotificationsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDeliverNotifications, data), nil
}

// Deliverer is the delivery collaborator handed to Queue.Process. It ships
// drained batches to the worker through Asynq; an enqueue failure propagates
// so the queue requeues the batch.
type Deliverer struct {
	client *asynq.Client
}

// NewDeliverer constructs a Deliverer.
func NewDeliverer(redisOpts asynq.RedisClientOpt) *Deliverer {
	return &Deliverer{client: asynq.NewClient(redisOpts)}
}

// Handle implements notify.Handler.
func (d *Deliverer) Handle(batch []notify.Notification) error {
	task, err := NewDeliverNotificationsTask(DeliverNotificationsPayload{Batch: batch})
	if err != nil {
		return err
	}
	_, err = d.client.Enqueue(task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases the underlying client.
func (d *Deliverer) Close() error {
	return d.client.Close()
}

// IdempotencyGuard suppresses duplicate deliveries. The dispatcher promises
// at-least-once and never deduplicates, so the delivery side keeps a
// short-lived seen-set in redis.
type IdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyGuard constructs the guard.
func NewIdempotencyGuard(rdb *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{rdb: rdb, ttl: ttl}
}

// FirstDelivery reports whether this notification id has not been delivered
// yet, claiming it atomically.
func (g *IdempotencyGuard) FirstDelivery(ctx context.Context, id string) (bool, error) {
	return g.rdb.SetNX(ctx, "notify:delivered:"+id, 1, g.ttl).Result()
}

// DeliveryHandler processes TaskTypeDeliverNotifications tasks: it filters
// already-delivered notifications and persists the rest as delivered.
func DeliveryHandler(store notify.Store, guard *IdempotencyGuard) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DeliverNotificationsPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		fresh := payload.Batch[:0]
		for _, n := range payload.Batch {
			first, err := guard.FirstDelivery(ctx, n.ID.String())
			if err != nil {
				return fmt.Errorf("jobs: idempotency check: %w", err)
			}
			if first {
				fresh = append(fresh, n)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		return store.SaveDelivered(ctx, fresh)
	}
}
