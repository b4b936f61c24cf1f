package investment

import (
	"time"

	"github.com/capiplan/capiplan/internal/shared"
)

// The transition core is pure: each function takes a snapshot and returns a
// new snapshot or an error, never mutating the input. Persistence and side
// effects belong to the Service.

func illegal(from, to Status) error {
	return &shared.IllegalTransitionError{Entity: "investment", From: string(from), To: string(to)}
}

// submit moves a draft into the approval queue.
func submit(inv Investment, now time.Time) (Investment, error) {
	if inv.Status != StatusDraft {
		return Investment{}, illegal(inv.Status, StatusSubmitted)
	}
	if !inv.Amount.IsPositive() {
		return Investment{}, &shared.PreconditionFailedError{Reason: "total amount must be greater than zero"}
	}
	if len(inv.PlannedPayments) == 0 {
		return Investment{}, &shared.PreconditionFailedError{Reason: "at least one scheduled payment is required"}
	}
	inv.Status = StatusSubmitted
	inv.UpdatedAt = now
	return inv, nil
}

// approve records the positive decision. APPROVED is transient: the service
// activates in the same transaction so no investment is ever observed
// stranded there.
func approve(inv Investment, now time.Time) (Investment, error) {
	if inv.Status != StatusSubmitted {
		return Investment{}, illegal(inv.Status, StatusApproved)
	}
	inv.Status = StatusApproved
	inv.UpdatedAt = now
	return inv, nil
}

func reject(inv Investment, now time.Time) (Investment, error) {
	if inv.Status != StatusSubmitted {
		return Investment{}, illegal(inv.Status, StatusRejected)
	}
	inv.Status = StatusRejected
	inv.UpdatedAt = now
	return inv, nil
}

func activate(inv Investment, now time.Time) (Investment, error) {
	if inv.Status != StatusApproved {
		return Investment{}, illegal(inv.Status, StatusActive)
	}
	inv.Status = StatusActive
	inv.UpdatedAt = now
	return inv, nil
}

// closeOut finalises an active investment. The settlement precondition
// (every cashflow confirmed or cancelled) is checked by the service before
// this transition is applied.
func closeOut(inv Investment, now time.Time) (Investment, error) {
	if inv.Status != StatusActive {
		return Investment{}, illegal(inv.Status, StatusClosed)
	}
	inv.Status = StatusClosed
	inv.UpdatedAt = now
	return inv, nil
}
