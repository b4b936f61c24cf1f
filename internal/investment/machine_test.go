package investment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/shared"
)

func draftInvestment() Investment {
	return Investment{
		Status: StatusDraft,
		Amount: decimal.NewFromInt(50000),
		PlannedPayments: []PlannedPayment{
			{DueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(10000)},
			{DueDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(20000)},
			{DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(20000)},
		},
	}
}

func TestSubmitRequiresDraft(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{StatusSubmitted, StatusApproved, StatusRejected, StatusActive, StatusClosed} {
		inv := draftInvestment()
		inv.Status = status
		_, err := submit(inv, now)
		require.True(t, shared.IsIllegalTransition(err), "submit from %s must be illegal", status)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	now := time.Now()

	inv := draftInvestment()
	inv.Amount = decimal.Zero
	_, err := submit(inv, now)
	require.True(t, shared.IsPreconditionFailed(err))

	inv = draftInvestment()
	inv.PlannedPayments = nil
	_, err = submit(inv, now)
	require.True(t, shared.IsPreconditionFailed(err))

	inv = draftInvestment()
	next, err := submit(inv, now)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, next.Status)
	require.Equal(t, StatusDraft, inv.Status, "failed or successful transitions never mutate the input")
}

func TestDecisionsRequireSubmitted(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{StatusDraft, StatusApproved, StatusRejected, StatusActive, StatusClosed} {
		inv := draftInvestment()
		inv.Status = status
		_, err := approve(inv, now)
		require.True(t, shared.IsIllegalTransition(err), "approve from %s must be illegal", status)
		_, err = reject(inv, now)
		require.True(t, shared.IsIllegalTransition(err), "reject from %s must be illegal", status)
	}
}

func TestTerminalStatusesAdmitNothing(t *testing.T) {
	now := time.Now()
	require.True(t, StatusRejected.Terminal())
	require.True(t, StatusClosed.Terminal())
	for _, status := range []Status{StatusRejected, StatusClosed} {
		inv := draftInvestment()
		inv.Status = status
		for name, fn := range map[string]func(Investment, time.Time) (Investment, error){
			"submit":   submit,
			"approve":  approve,
			"reject":   reject,
			"activate": activate,
			"close":    closeOut,
		} {
			_, err := fn(inv, now)
			require.Error(t, err, "%s from %s must fail", name, status)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	now := time.Now()
	inv := draftInvestment()

	submitted, err := submit(inv, now)
	require.NoError(t, err)
	approved, err := approve(submitted, now)
	require.NoError(t, err)
	active, err := activate(approved, now)
	require.NoError(t, err)
	require.Equal(t, StatusActive, active.Status)
	closed, err := closeOut(active, now)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
}
