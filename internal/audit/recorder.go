// Package audit keeps the immutable transition history. Every status change
// and confirmation action records one entry, sufficient to reconstruct an
// entity's history.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one immutable transition record.
type Entry struct {
	ID         int64
	CompanyID  int64
	Entity     string
	EntityID   string
	PrevStatus string
	NewStatus  string
	Action     string
	ActorID    int64
	Meta       map[string]any
	OccurredAt time.Time
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// PGRecorder writes entries into audit_log.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a postgres-backed Recorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record persists the entry. Entries are append-only; there is no update path.
func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_log
(company_id, entity, entity_id, prev_status, new_status, action, actor_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		entry.CompanyID, entry.Entity, entry.EntityID, entry.PrevStatus, entry.NewStatus,
		entry.Action, entry.ActorID, metaJSON, entry.OccurredAt)
	return err
}

// NopRecorder discards entries. Useful for tooling that replays snapshots.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
