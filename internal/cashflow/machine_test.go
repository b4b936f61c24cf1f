package cashflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capiplan/capiplan/internal/shared"
)

func pendingCashflow() Cashflow {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Cashflow{
		Amount:  decimal.NewFromInt(-10000),
		DueDate: due,
		Month:   int(due.Month()),
		Year:    due.Year(),
		Status:  StatusPending,
	}
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusPending, deriveStatus(false, false))
	require.Equal(t, StatusPreConfirmed, deriveStatus(true, false))
	require.Equal(t, StatusPreConfirmed, deriveStatus(false, true))
	require.Equal(t, StatusConfirmed, deriveStatus(true, true))
}

func TestConfirmationOrderDoesNotMatter(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()

	a, err := confirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	a, err = confirm(a, ConfirmerGF, now)
	require.NoError(t, err)

	b, err := confirm(cf, ConfirmerGF, now)
	require.NoError(t, err)
	b, err = confirm(b, ConfirmerCM, now)
	require.NoError(t, err)

	require.Equal(t, StatusConfirmed, a.Status)
	require.Equal(t, a.Status, b.Status)
	require.Equal(t, a.ConfirmedByCM, b.ConfirmedByCM)
	require.Equal(t, a.ConfirmedByGF, b.ConfirmedByGF)
}

func TestConfirmIsIdempotentPerSlot(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()

	once, err := confirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	twice, err := confirm(once, ConfirmerCM, now)
	require.NoError(t, err)
	require.Equal(t, once.Status, twice.Status)
}

func TestUnconfirmStepsBack(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()

	cf, err := confirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	cf, err = confirm(cf, ConfirmerGF, now)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, cf.Status)

	cf, err = unconfirm(cf, ConfirmerGF, now)
	require.NoError(t, err)
	require.Equal(t, StatusPreConfirmed, cf.Status)

	cf, err = unconfirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	require.Equal(t, StatusPending, cf.Status)
}

func TestPostponeResetsBothFlags(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()
	cf, err := confirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	cf, err = confirm(cf, ConfirmerGF, now)
	require.NoError(t, err)

	newDue := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	moved, err := postpone(cf, newDue, now)
	require.NoError(t, err)
	require.False(t, moved.ConfirmedByCM)
	require.False(t, moved.ConfirmedByGF)
	require.Equal(t, StatusPending, moved.Status)
	require.Equal(t, newDue, moved.DueDate)
	require.Equal(t, 6, moved.Month)
	require.Equal(t, 2026, moved.Year)
}

func TestCancelRules(t *testing.T) {
	now := time.Now()

	cf := pendingCashflow()
	cancelled, err := cancel(cf, now)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = cancel(cancelled, now)
	require.True(t, shared.IsIllegalTransition(err))

	confirmed := pendingCashflow()
	confirmed, err = confirm(confirmed, ConfirmerCM, now)
	require.NoError(t, err)
	confirmed, err = confirm(confirmed, ConfirmerGF, now)
	require.NoError(t, err)
	_, err = cancel(confirmed, now)
	require.True(t, shared.IsIllegalTransition(err), "a fully confirmed cashflow cannot be cancelled")
}

func TestCancelledAdmitsNoConfirmation(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()
	cf, err := cancel(cf, now)
	require.NoError(t, err)

	_, err = confirm(cf, ConfirmerCM, now)
	require.True(t, shared.IsIllegalTransition(err))
	_, err = unconfirm(cf, ConfirmerGF, now)
	require.True(t, shared.IsIllegalTransition(err))
	_, err = postpone(cf, time.Now().AddDate(0, 1, 0), now)
	require.True(t, shared.IsIllegalTransition(err))
}

func TestBookingFreezesTheRecord(t *testing.T) {
	now := time.Now()
	cf := pendingCashflow()

	_, err := book(cf, "JRN-100", now)
	require.True(t, shared.IsPreconditionFailed(err), "only confirmed cashflows can be booked")

	cf, err = confirm(cf, ConfirmerCM, now)
	require.NoError(t, err)
	cf, err = confirm(cf, ConfirmerGF, now)
	require.NoError(t, err)

	_, err = book(cf, "", now)
	require.True(t, shared.IsPreconditionFailed(err), "a booking reference is required")

	booked, err := book(cf, "JRN-100", now)
	require.NoError(t, err)
	require.True(t, booked.Booked())

	_, err = book(booked, "JRN-101", now)
	require.True(t, shared.IsPreconditionFailed(err))
	_, err = unconfirm(booked, ConfirmerGF, now)
	require.True(t, shared.IsPreconditionFailed(err))
	_, err = postpone(booked, now.AddDate(0, 1, 0), now)
	require.True(t, shared.IsPreconditionFailed(err))
	_, err = cancel(booked, now)
	require.True(t, shared.IsIllegalTransition(err))
}
