package cascade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/cashflow"
	"github.com/capiplan/capiplan/internal/investment"
	"github.com/capiplan/capiplan/internal/schedule"
	"github.com/capiplan/capiplan/internal/shared"
)

type memoryCashflowRepo struct {
	cashflows map[uuid.UUID]cashflow.Cashflow
	failAfter int // fail the nth insert, 0 disables
	inserts   int
}

type memoryCashflowTx struct {
	repo *memoryCashflowRepo
	// staged rows only land in the repo when the callback succeeds,
	// mirroring the transactional contract.
	staged []cashflow.Cashflow
}

func newMemoryCashflowRepo() *memoryCashflowRepo {
	return &memoryCashflowRepo{cashflows: make(map[uuid.UUID]cashflow.Cashflow)}
}

func (r *memoryCashflowRepo) WithTx(ctx context.Context, fn func(context.Context, cashflow.TxRepository) error) error {
	tx := &memoryCashflowTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, cf := range tx.staged {
		r.cashflows[cf.ID] = cf
	}
	return nil
}

func (r *memoryCashflowRepo) Get(ctx context.Context, companyID int64, id uuid.UUID) (cashflow.Cashflow, error) {
	cf, ok := r.cashflows[id]
	if !ok || cf.CompanyID != companyID {
		return cashflow.Cashflow{}, shared.ErrNotFound
	}
	return cf, nil
}

func (r *memoryCashflowRepo) List(ctx context.Context, companyID int64, req cashflow.ListRequest) ([]cashflow.Cashflow, error) {
	return nil, nil
}

func (r *memoryCashflowRepo) ListByInvestment(ctx context.Context, companyID int64, investmentID uuid.UUID) ([]cashflow.Cashflow, error) {
	var out []cashflow.Cashflow
	for _, cf := range r.cashflows {
		if cf.CompanyID == companyID && cf.InvestmentID == investmentID {
			out = append(out, cf)
		}
	}
	return out, nil
}

func (t *memoryCashflowTx) Insert(ctx context.Context, cf cashflow.Cashflow) error {
	t.repo.inserts++
	if t.repo.failAfter > 0 && t.repo.inserts >= t.repo.failAfter {
		return errors.New("disk full")
	}
	t.staged = append(t.staged, cf)
	return nil
}

func (t *memoryCashflowTx) Update(ctx context.Context, cf cashflow.Cashflow) error {
	t.staged = append(t.staged, cf)
	return nil
}

type stubInvestmentRepo struct {
	investment investment.Investment
}

func (s stubInvestmentRepo) WithTx(ctx context.Context, fn func(context.Context, investment.TxRepository) error) error {
	return errors.New("not implemented")
}

func (s stubInvestmentRepo) Get(ctx context.Context, companyID int64, id uuid.UUID) (investment.Investment, error) {
	if s.investment.ID != id {
		return investment.Investment{}, shared.ErrNotFound
	}
	return s.investment, nil
}

func (s stubInvestmentRepo) List(ctx context.Context, companyID int64, req investment.ListRequest) ([]investment.Investment, error) {
	return nil, nil
}

func (s stubInvestmentRepo) ActiveApproval(ctx context.Context, id uuid.UUID) (investment.Approval, error) {
	return investment.Approval{}, shared.ErrNotFound
}

func (s stubInvestmentRepo) ListApprovals(ctx context.Context, id uuid.UUID) ([]investment.Approval, error) {
	return nil, nil
}

func activeInvestment() investment.Investment {
	return investment.Investment{
		ID:        uuid.New(),
		CompanyID: 1,
		Name:      "CNC milling machine",
		Status:    investment.StatusActive,
		Amount:    decimal.NewFromInt(50000),
		CreatedBy: 11,
		PlannedPayments: []investment.PlannedPayment{
			{DueDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(20000)},
			{DueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(10000)},
			{DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(20000)},
		},
	}
}

func newTestCoordinator(repo *memoryCashflowRepo, inv investment.Investment) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCoordinator(repo, stubInvestmentRepo{investment: inv}, schedule.NewPlanGenerator(), logger)
	c.WithNow(func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) })
	return c
}

func TestSeedCreatesOneCashflowPerPayment(t *testing.T) {
	repo := newMemoryCashflowRepo()
	inv := activeInvestment()
	c := newTestCoordinator(repo, inv)

	require.NoError(t, c.Seed(context.Background(), inv))

	rows, err := repo.ListByInvestment(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, cf := range rows {
		require.Equal(t, cashflow.StatusPending, cf.Status)
		require.Equal(t, int(cf.DueDate.Month()), cf.Month)
		require.Equal(t, cf.DueDate.Year(), cf.Year)
	}
}

func TestSeedIsAllOrNothing(t *testing.T) {
	repo := newMemoryCashflowRepo()
	repo.failAfter = 2
	inv := activeInvestment()
	c := newTestCoordinator(repo, inv)

	err := c.Seed(context.Background(), inv)
	require.Error(t, err)
	require.Empty(t, repo.cashflows, "a partial schedule must never materialise")
}

func TestSeedRejectsEmptyPlan(t *testing.T) {
	repo := newMemoryCashflowRepo()
	inv := activeInvestment()
	inv.PlannedPayments = nil
	c := newTestCoordinator(repo, inv)

	require.Error(t, c.Seed(context.Background(), inv))
}

func TestSettled(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCashflowRepo()
	inv := activeInvestment()
	c := newTestCoordinator(repo, inv)

	settled, err := c.Settled(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.True(t, settled, "no cashflows counts as settled")

	require.NoError(t, c.Seed(ctx, inv))
	settled, err = c.Settled(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.False(t, settled)

	for id, cf := range repo.cashflows {
		cf.Status = cashflow.StatusConfirmed
		repo.cashflows[id] = cf
	}
	settled, err = c.Settled(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.True(t, settled)

	// One cancelled row among confirmed ones still settles.
	for id, cf := range repo.cashflows {
		cf.Status = cashflow.StatusCancelled
		repo.cashflows[id] = cf
		break
	}
	settled, err = c.Settled(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.True(t, settled)
}

func TestAuthorResolvesCreator(t *testing.T) {
	repo := newMemoryCashflowRepo()
	inv := activeInvestment()
	c := newTestCoordinator(repo, inv)

	author, err := c.Author(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(11), author)

	_, err = c.Author(context.Background(), 1, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}
