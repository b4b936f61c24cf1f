package cashflow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/audit"
	"github.com/capiplan/capiplan/internal/notify"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

type memoryRepo struct {
	cashflows map[uuid.UUID]Cashflow
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{cashflows: make(map[uuid.UUID]Cashflow)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, companyID int64, id uuid.UUID) (Cashflow, error) {
	cf, ok := r.cashflows[id]
	if !ok || cf.CompanyID != companyID {
		return Cashflow{}, shared.ErrNotFound
	}
	return cf, nil
}

func (r *memoryRepo) List(ctx context.Context, companyID int64, req ListRequest) ([]Cashflow, error) {
	var out []Cashflow
	for _, cf := range r.cashflows {
		if cf.CompanyID != companyID {
			continue
		}
		if req.Status != "" && cf.Status != req.Status {
			continue
		}
		if req.Year != 0 && cf.Year != req.Year {
			continue
		}
		if req.Month != 0 && cf.Month != req.Month {
			continue
		}
		out = append(out, cf)
	}
	return out, nil
}

func (r *memoryRepo) ListByInvestment(ctx context.Context, companyID int64, investmentID uuid.UUID) ([]Cashflow, error) {
	var out []Cashflow
	for _, cf := range r.cashflows {
		if cf.CompanyID == companyID && cf.InvestmentID == investmentID {
			out = append(out, cf)
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(ctx context.Context, cf Cashflow) error {
	if _, ok := t.repo.cashflows[cf.ID]; ok {
		return shared.ErrDuplicate
	}
	t.repo.cashflows[cf.ID] = cf
	return nil
}

func (t *memoryTx) Update(ctx context.Context, cf Cashflow) error {
	current, ok := t.repo.cashflows[cf.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Revision != cf.Revision {
		return shared.ErrRevisionConflict
	}
	cf.Revision++
	t.repo.cashflows[cf.ID] = cf
	return nil
}

type stubDirectory struct {
	author int64
}

func (s stubDirectory) Author(ctx context.Context, companyID int64, investmentID uuid.UUID) (int64, error) {
	return s.author, nil
}

var (
	manager  = shared.Actor{ID: 31, CompanyID: 1, Roles: []string{rbac.RoleCashflowManager}}
	director = shared.Actor{ID: 41, CompanyID: 1, Roles: []string{rbac.RoleManagingDirector}}
	bookkeep = shared.Actor{ID: 51, CompanyID: 1, Roles: []string{rbac.RoleAccounting}}
)

func newTestService(repo Repository, queue *notify.Queue) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, rbac.NewResolver(), stubDirectory{author: 11}, audit.NopRecorder{}, queue, logger)
	svc.WithNow(func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) })
	return svc
}

func seedCashflow(repo *memoryRepo) Cashflow {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cf := Cashflow{
		ID:           uuid.New(),
		InvestmentID: uuid.New(),
		CompanyID:    1,
		Amount:       decimal.NewFromInt(-10000),
		DueDate:      due,
		Month:        int(due.Month()),
		Year:         due.Year(),
		Status:       StatusPending,
	}
	repo.cashflows[cf.ID] = cf
	return cf
}

func TestConfirmSlotsAreRoleBound(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo, notify.NewQueue())
	cf := seedCashflow(repo)

	_, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerGF)
	require.True(t, shared.IsPermissionDenied(err), "the CM role must not fill the GF slot")
	_, err = svc.Confirm(ctx, director, cf.ID, ConfirmerCM)
	require.True(t, shared.IsPermissionDenied(err), "the GF role must not fill the CM slot")
}

func TestHandshakeNotifications(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	queue := notify.NewQueue()
	svc := newTestService(repo, queue)
	cf := seedCashflow(repo)

	first, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.NoError(t, err)
	require.Equal(t, StatusPreConfirmed, first.Status)
	require.Equal(t, 1, queue.Len(), "pre-confirmation pings the outstanding role")

	second, err := svc.Confirm(ctx, director, cf.ID, ConfirmerGF)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, second.Status)
	require.Equal(t, 2, queue.Len(), "full confirmation pings accounting")
}

func TestPostponeRestartsHandshake(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	queue := notify.NewQueue()
	svc := newTestService(repo, queue)
	cf := seedCashflow(repo)

	_, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.NoError(t, err)

	newDue := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	moved, err := svc.Postpone(ctx, director, cf.ID, newDue)
	require.NoError(t, err)
	require.Equal(t, StatusPending, moved.Status)
	require.False(t, moved.ConfirmedByCM)
	require.Equal(t, newDue, moved.DueDate)
	require.Equal(t, 3, queue.Len(), "postpone notifies both confirming roles")
}

func TestBookNotifiesAuthor(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	queue := notify.NewQueue()
	svc := newTestService(repo, queue)
	cf := seedCashflow(repo)

	_, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, director, cf.ID, ConfirmerGF)
	require.NoError(t, err)

	booked, err := svc.Book(ctx, bookkeep, cf.ID, "JRN-2026-044")
	require.NoError(t, err)
	require.True(t, booked.Booked())
	require.Equal(t, StatusConfirmed, booked.Status)

	batch, err := queue.Process(func(batch []notify.Notification) error { return nil })
	require.NoError(t, err)
	last := batch[len(batch)-1]
	require.Equal(t, notify.KindCashflowBooked, last.Kind)
	require.Equal(t, int64(11), last.RecipientID)
}

func TestCancelBeforeConfirmation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo, notify.NewQueue())
	cf := seedCashflow(repo)

	cancelled, err := svc.Cancel(ctx, director, cf.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.True(t, shared.IsIllegalTransition(err))
}

type stubObserver struct {
	counts map[string]int
}

func (o *stubObserver) ObserveTransition(entity, status string) {
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[entity+"/"+status]++
}

func TestTransitionsAreObserved(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo, notify.NewQueue())
	observer := &stubObserver{}
	svc.WithObserver(observer)
	cf := seedCashflow(repo)

	_, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, director, cf.ID, ConfirmerGF)
	require.NoError(t, err)

	require.Equal(t, 1, observer.counts["cashflow/"+string(StatusPreConfirmed)])
	require.Equal(t, 1, observer.counts["cashflow/"+string(StatusConfirmed)])
}

func TestRevisionConflictSurfaces(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo, notify.NewQueue())
	cf := seedCashflow(repo)

	_, err := svc.Confirm(ctx, manager, cf.ID, ConfirmerCM)
	require.NoError(t, err)

	// cf still carries the pre-confirm revision; a write based on it loses.
	tx := &memoryTx{repo: repo}
	err = tx.Update(ctx, cf)
	require.ErrorIs(t, err, shared.ErrRevisionConflict)
}
