package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineFilters narrow the audit timeline query.
type TimelineFilters struct {
	CompanyID int64
	Entity    string
	EntityID  string
	ActorID   int64
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// PagingInfo carries cursorless paging state.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging info.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// Service reads the audit timeline.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs the timeline service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Timeline returns audit entries for a company, newest first, with paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("audit: service not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.pool.Query(ctx, `SELECT id, company_id, entity, entity_id, prev_status, new_status, action, actor_id, occurred_at
FROM audit_log
WHERE company_id = $1
  AND ($2 = '' OR entity = $2)
  AND ($3 = '' OR entity_id = $3)
  AND ($4 = 0 OR actor_id = $4)
  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
  AND ($6::timestamptz IS NULL OR occurred_at <= $6)
ORDER BY occurred_at DESC, id DESC
LIMIT $7 OFFSET $8`,
		filters.CompanyID, filters.Entity, filters.EntityID, filters.ActorID,
		nullableTime(filters.From), nullableTime(filters.To), pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Entity, &e.EntityID,
			&e.PrevStatus, &e.NewStatus, &e.Action, &e.ActorID, &e.OccurredAt); err != nil {
			return Result{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: entries, Paging: paging}, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
