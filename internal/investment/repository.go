package investment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/capiplan/capiplan/internal/platform/db"
	"github.com/capiplan/capiplan/internal/shared"
)

// Repository defines investment data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, companyID int64, id uuid.UUID) (Investment, error)
	List(ctx context.Context, companyID int64, req ListRequest) ([]Investment, error)
	ActiveApproval(ctx context.Context, id uuid.UUID) (Approval, error)
	ListApprovals(ctx context.Context, id uuid.UUID) ([]Approval, error)
}

// TxRepository defines writes performed inside a transaction.
type TxRepository interface {
	Insert(ctx context.Context, inv Investment) error
	Update(ctx context.Context, inv Investment) error
	DeleteDraft(ctx context.Context, companyID int64, id uuid.UUID) error
	InsertApproval(ctx context.Context, approval Approval) (int64, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NewRepository constructs the postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const investmentColumns = `id, company_id, name, category, financing, amount::text, status, planned_payments, created_by, revision, created_at, updated_at`

func scanInvestment(row pgx.Row) (Investment, error) {
	var inv Investment
	var amount string
	var plan []byte
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Name, &inv.Category, &inv.Financing,
		&amount, &inv.Status, &plan, &inv.CreatedBy, &inv.Revision, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Investment{}, shared.ErrNotFound
		}
		return Investment{}, err
	}
	inv.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Investment{}, err
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &inv.PlannedPayments); err != nil {
			return Investment{}, err
		}
	}
	return inv, nil
}

func (r *pgRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (Investment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+investmentColumns+`
FROM investments WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanInvestment(row)
}

func (r *pgRepository) List(ctx context.Context, companyID int64, req ListRequest) ([]Investment, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+investmentColumns+`
FROM investments
WHERE company_id=$1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR category = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`, companyID, string(req.Status), string(req.Category), limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanApproval(row pgx.Row) (Approval, error) {
	var a Approval
	err := row.Scan(&a.ID, &a.InvestmentID, &a.ApproverID, &a.Decision,
		&a.Comment, &a.Conditions, &a.ValidUntil, &a.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, shared.ErrNotFound
		}
		return Approval{}, err
	}
	return a, nil
}

const approvalColumns = `id, investment_id, approver_id, decision, comment, conditions, valid_until, decided_at`

func (r *pgRepository) ActiveApproval(ctx context.Context, id uuid.UUID) (Approval, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+approvalColumns+`
FROM investment_approvals WHERE investment_id=$1 ORDER BY decided_at DESC, id DESC LIMIT 1`, id)
	return scanApproval(row)
}

func (r *pgRepository) ListApprovals(ctx context.Context, id uuid.UUID) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+approvalColumns+`
FROM investment_approvals WHERE investment_id=$1 ORDER BY decided_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgTxRepository) Insert(ctx context.Context, inv Investment) error {
	plan, err := json.Marshal(inv.PlannedPayments)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO investments
(id, company_id, name, category, financing, amount, status, planned_payments, created_by, revision, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.CompanyID, inv.Name, inv.Category, inv.Financing,
		inv.Amount.String(), inv.Status, plan, inv.CreatedBy, inv.Revision, inv.CreatedAt, inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

// Update persists a snapshot and bumps the revision. A stale revision means a
// concurrent writer got there first.
func (r *pgTxRepository) Update(ctx context.Context, inv Investment) error {
	plan, err := json.Marshal(inv.PlannedPayments)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE investments
SET name=$3, category=$4, financing=$5, amount=$6, status=$7, planned_payments=$8,
    revision=revision+1, updated_at=$9
WHERE company_id=$1 AND id=$2 AND revision=$10`,
		inv.CompanyID, inv.ID, inv.Name, inv.Category, inv.Financing,
		inv.Amount.String(), inv.Status, plan, inv.UpdatedAt, inv.Revision)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRevisionConflict
	}
	return nil
}

func (r *pgTxRepository) DeleteDraft(ctx context.Context, companyID int64, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM investments
WHERE company_id=$1 AND id=$2 AND status=$3`, companyID, id, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertApproval(ctx context.Context, approval Approval) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO investment_approvals
(investment_id, approver_id, decision, comment, conditions, valid_until, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		approval.InvestmentID, approval.ApproverID, approval.Decision,
		approval.Comment, approval.Conditions, approval.ValidUntil, approval.DecidedAt).Scan(&id)
	return id, err
}
