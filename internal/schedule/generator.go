// Package schedule is the boundary to the payment schedule collaborator.
// The engine never computes financing math itself; it consumes an already
// ordered list of (due date, amount) pairs.
package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/capiplan/capiplan/internal/investment"
)

// Entry is one scheduled payment.
type Entry struct {
	DueDate time.Time
	Amount  decimal.Decimal
}

// Generator produces the payment schedule for an investment.
type Generator interface {
	Schedule(ctx context.Context, inv investment.Investment) ([]Entry, error)
}

// PlanGenerator reads the payment plan rows the author entered on the draft.
type PlanGenerator struct{}

// NewPlanGenerator constructs the default generator.
func NewPlanGenerator() PlanGenerator {
	return PlanGenerator{}
}

// Schedule returns the planned payments ordered by due date.
func (PlanGenerator) Schedule(_ context.Context, inv investment.Investment) ([]Entry, error) {
	if len(inv.PlannedPayments) == 0 {
		return nil, errors.New("schedule: investment has no planned payments")
	}
	entries := make([]Entry, 0, len(inv.PlannedPayments))
	for _, p := range inv.PlannedPayments {
		if p.DueDate.IsZero() {
			return nil, errors.New("schedule: planned payment without due date")
		}
		entries = append(entries, Entry{DueDate: p.DueDate, Amount: p.Amount})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
	return entries, nil
}
