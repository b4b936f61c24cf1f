package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/notify"
	_ "github.com/capiplan/capiplan/testing"
)

type memoryStore struct {
	delivered []notify.Notification
	read      map[uuid.UUID]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{read: make(map[uuid.UUID]bool)}
}

func (s *memoryStore) SaveDelivered(ctx context.Context, batch []notify.Notification) error {
	s.delivered = append(s.delivered, batch...)
	return nil
}

func (s *memoryStore) ListForRecipient(ctx context.Context, companyID int64, role string, userID int64, limit int) ([]notify.Notification, error) {
	var out []notify.Notification
	for _, n := range s.delivered {
		if n.CompanyID != companyID {
			continue
		}
		if n.RecipientRole != "" && n.RecipientRole != role {
			continue
		}
		if n.RecipientID != 0 && n.RecipientID != userID {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *memoryStore) MarkRead(ctx context.Context, companyID int64, id uuid.UUID) error {
	s.read[id] = true
	return nil
}

func sampleBatch(n int) []notify.Notification {
	out := make([]notify.Notification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, notify.Notification{
			ID:         uuid.New(),
			CompanyID:  1,
			Kind:       notify.KindInvestmentSubmitted,
			EntityType: "investment",
			EntityID:   uuid.NewString(),
			CreatedAt:  time.Now(),
		})
	}
	return out
}

func TestIdempotencyGuardClaimsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewIdempotencyGuard(rdb, time.Hour)

	ctx := context.Background()
	id := uuid.NewString()

	first, err := guard.FirstDelivery(ctx, id)
	require.NoError(t, err)
	require.True(t, first)

	second, err := guard.FirstDelivery(ctx, id)
	require.NoError(t, err)
	require.False(t, second)
}

func TestDeliveryHandlerFiltersDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewIdempotencyGuard(rdb, time.Hour)
	store := newMemoryStore()
	handler := DeliveryHandler(store, guard)

	batch := sampleBatch(3)
	task, err := NewDeliverNotificationsTask(DeliverNotificationsPayload{Batch: batch})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Len(t, store.delivered, 3)

	// Redelivery of the same batch, the at-least-once case, is a no-op.
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, store.delivered, 3)
}

func TestDeliveryHandlerMixedBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewIdempotencyGuard(rdb, time.Hour)
	store := newMemoryStore()
	handler := DeliveryHandler(store, guard)

	old := sampleBatch(2)
	task, err := NewDeliverNotificationsTask(DeliverNotificationsPayload{Batch: old})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	mixed := append(append([]notify.Notification(nil), old[0]), sampleBatch(1)...)
	task, err = NewDeliverNotificationsTask(DeliverNotificationsPayload{Batch: mixed})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, store.delivered, 3, "only the fresh notification lands a second time")
}

func TestDeliveryHandlerSkipsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewIdempotencyGuard(rdb, time.Hour)
	store := newMemoryStore()
	handler := DeliveryHandler(store, guard)

	task := asynq.NewTask(TaskTypeDeliverNotifications, []byte("{"))
	err := handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, store.delivered)
}
