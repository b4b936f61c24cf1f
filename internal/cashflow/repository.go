package cashflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/capiplan/capiplan/internal/platform/db"
	"github.com/capiplan/capiplan/internal/shared"
)

// Repository defines cashflow data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, companyID int64, id uuid.UUID) (Cashflow, error)
	List(ctx context.Context, companyID int64, req ListRequest) ([]Cashflow, error)
	ListByInvestment(ctx context.Context, companyID int64, investmentID uuid.UUID) ([]Cashflow, error)
}

// TxRepository defines writes performed inside a transaction.
type TxRepository interface {
	Insert(ctx context.Context, cf Cashflow) error
	Update(ctx context.Context, cf Cashflow) error
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

const cashflowColumns = `id, investment_id, company_id, amount::text, due_date, month, year, status, confirmed_by_cm, confirmed_by_gf, booking_ref, revision, created_at, updated_at`

func scanCashflow(row pgx.Row) (Cashflow, error) {
	var cf Cashflow
	var amount string
	err := row.Scan(&cf.ID, &cf.InvestmentID, &cf.CompanyID, &amount, &cf.DueDate,
		&cf.Month, &cf.Year, &cf.Status, &cf.ConfirmedByCM, &cf.ConfirmedByGF,
		&cf.BookingRef, &cf.Revision, &cf.CreatedAt, &cf.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cashflow{}, shared.ErrNotFound
		}
		return Cashflow{}, err
	}
	cf.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Cashflow{}, err
	}
	return cf, nil
}

func (r *pgRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (Cashflow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cashflowColumns+`
FROM cashflows WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanCashflow(row)
}

func (r *pgRepository) List(ctx context.Context, companyID int64, req ListRequest) ([]Cashflow, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+cashflowColumns+`
FROM cashflows
WHERE company_id=$1
  AND ($2 = '' OR status = $2)
  AND ($3 = 0 OR year = $3)
  AND ($4 = 0 OR month = $4)
ORDER BY due_date ASC, id ASC
LIMIT $5 OFFSET $6`, companyID, string(req.Status), req.Year, req.Month, limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cashflow
	for rows.Next() {
		cf, err := scanCashflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

func (r *pgRepository) ListByInvestment(ctx context.Context, companyID int64, investmentID uuid.UUID) ([]Cashflow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cashflowColumns+`
FROM cashflows WHERE company_id=$1 AND investment_id=$2 ORDER BY due_date ASC, id ASC`,
		companyID, investmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cashflow
	for rows.Next() {
		cf, err := scanCashflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

func (r *pgTxRepository) Insert(ctx context.Context, cf Cashflow) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cashflows
(id, investment_id, company_id, amount, due_date, month, year, status, confirmed_by_cm, confirmed_by_gf, booking_ref, revision, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		cf.ID, cf.InvestmentID, cf.CompanyID, cf.Amount.String(), cf.DueDate,
		cf.Month, cf.Year, cf.Status, cf.ConfirmedByCM, cf.ConfirmedByGF,
		cf.BookingRef, cf.Revision, cf.CreatedAt, cf.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

// Update persists a snapshot guarded by the revision column.
func (r *pgTxRepository) Update(ctx context.Context, cf Cashflow) error {
	tag, err := r.tx.Exec(ctx, `UPDATE cashflows
SET amount=$3, due_date=$4, month=$5, year=$6, status=$7,
    confirmed_by_cm=$8, confirmed_by_gf=$9, booking_ref=$10,
    revision=revision+1, updated_at=$11
WHERE company_id=$1 AND id=$2 AND revision=$12`,
		cf.CompanyID, cf.ID, cf.Amount.String(), cf.DueDate, cf.Month, cf.Year,
		cf.Status, cf.ConfirmedByCM, cf.ConfirmedByGF, cf.BookingRef,
		cf.UpdatedAt, cf.Revision)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRevisionConflict
	}
	return nil
}
