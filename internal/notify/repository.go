package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists delivered notifications so recipients can read them later.
// The in-flight queue stays in memory; only delivery outcomes are durable.
type Store interface {
	SaveDelivered(ctx context.Context, batch []Notification) error
	ListForRecipient(ctx context.Context, companyID int64, role string, userID int64, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, companyID int64, id uuid.UUID) error
}

// PGStore is the postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs the store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// SaveDelivered writes each notification with the delivered flag set. Inserts
// are idempotent on the notification id so redelivered batches do not
// duplicate rows.
func (s *PGStore) SaveDelivered(ctx context.Context, batch []Notification) error {
	if s == nil || s.pool == nil {
		return errors.New("notify: store not initialised")
	}
	for _, n := range batch {
		_, err := s.pool.Exec(ctx, `INSERT INTO notifications
(id, company_id, recipient_role, recipient_id, kind, entity_type, entity_id, created_at, delivered)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
ON CONFLICT (id) DO NOTHING`,
			n.ID, n.CompanyID, n.RecipientRole, n.RecipientID, string(n.Kind),
			n.EntityType, n.EntityID, n.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListForRecipient returns delivered notifications addressed to the user or
// any of its roles, newest first.
func (s *PGStore) ListForRecipient(ctx context.Context, companyID int64, role string, userID int64, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT id, company_id, recipient_role, recipient_id, kind, entity_type, entity_id, created_at, delivered
FROM notifications
WHERE company_id = $1 AND (recipient_id = $2 OR ($3 <> '' AND recipient_role = $3))
ORDER BY created_at DESC
LIMIT $4`, companyID, userID, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.CompanyID, &n.RecipientRole, &n.RecipientID,
			&kind, &n.EntityType, &n.EntityID, &n.CreatedAt, &n.Delivered); err != nil {
			return nil, err
		}
		n.Kind = Kind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead moves a notification into the recipient's read history.
func (s *PGStore) MarkRead(ctx context.Context, companyID int64, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW()
WHERE company_id = $1 AND id = $2 AND read_at IS NULL`, companyID, id)
	return err
}
