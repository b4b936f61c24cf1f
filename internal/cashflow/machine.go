package cashflow

import (
	"time"

	"github.com/capiplan/capiplan/internal/shared"
)

// Pure transition core. Each function returns a new snapshot; a failed
// operation never mutates the input. Status is always recomputed from the
// flags on the confirmation path, never written directly.

func illegal(from, to Status) error {
	return &shared.IllegalTransitionError{Entity: "cashflow", From: string(from), To: string(to)}
}

func frozen() error {
	return &shared.PreconditionFailedError{Reason: "cashflow is booked and frozen"}
}

// confirm sets the slot's flag and recomputes the aggregate status.
func confirm(cf Cashflow, by Confirmer, now time.Time) (Cashflow, error) {
	if cf.Status == StatusCancelled {
		return Cashflow{}, illegal(cf.Status, StatusConfirmed)
	}
	if cf.Booked() {
		return Cashflow{}, frozen()
	}
	switch by {
	case ConfirmerCM:
		cf.ConfirmedByCM = true
	case ConfirmerGF:
		cf.ConfirmedByGF = true
	default:
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "unknown confirmer slot"}
	}
	cf.Status = deriveStatus(cf.ConfirmedByCM, cf.ConfirmedByGF)
	cf.UpdatedAt = now
	return cf, nil
}

// unconfirm clears the slot's flag, the correction path. Symmetric to
// confirm until booking freezes the record.
func unconfirm(cf Cashflow, by Confirmer, now time.Time) (Cashflow, error) {
	if cf.Status == StatusCancelled {
		return Cashflow{}, illegal(cf.Status, StatusPending)
	}
	if cf.Booked() {
		return Cashflow{}, frozen()
	}
	switch by {
	case ConfirmerCM:
		cf.ConfirmedByCM = false
	case ConfirmerGF:
		cf.ConfirmedByGF = false
	default:
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "unknown confirmer slot"}
	}
	cf.Status = deriveStatus(cf.ConfirmedByCM, cf.ConfirmedByGF)
	cf.UpdatedAt = now
	return cf, nil
}

// postpone replaces the due date and restarts the handshake. Stale approvals
// must never survive a changed date, so both flags always reset.
func postpone(cf Cashflow, newDueDate time.Time, now time.Time) (Cashflow, error) {
	if cf.Status == StatusCancelled {
		return Cashflow{}, illegal(cf.Status, StatusPostponed)
	}
	if cf.Booked() {
		return Cashflow{}, frozen()
	}
	cf.ConfirmedByCM = false
	cf.ConfirmedByGF = false
	cf.DueDate = newDueDate
	cf.Month = int(newDueDate.Month())
	cf.Year = newDueDate.Year()
	// POSTPONED is momentary: the snapshot lands directly on PENDING.
	cf.Status = StatusPending
	cf.UpdatedAt = now
	return cf, nil
}

// cancel terminates a cashflow that is neither confirmed nor booked.
func cancel(cf Cashflow, now time.Time) (Cashflow, error) {
	if cf.Status == StatusConfirmed || cf.Status == StatusCancelled {
		return Cashflow{}, illegal(cf.Status, StatusCancelled)
	}
	if cf.Booked() {
		return Cashflow{}, frozen()
	}
	cf.Status = StatusCancelled
	cf.UpdatedAt = now
	return cf, nil
}

// book attaches the accounting reference, freezing the record.
func book(cf Cashflow, reference string, now time.Time) (Cashflow, error) {
	if cf.Status != StatusConfirmed {
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "only confirmed cashflows can be booked"}
	}
	if cf.Booked() {
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "cashflow already booked"}
	}
	if reference == "" {
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "booking reference required"}
	}
	cf.BookingRef = reference
	cf.UpdatedAt = now
	return cf, nil
}
