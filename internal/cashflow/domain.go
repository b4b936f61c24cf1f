// Package cashflow tracks the scheduled payments derived from an active
// investment and their two-party confirmation handshake.
package cashflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates cashflow lifecycle statuses. PLANNED and POSTPONED are
// momentary bookkeeping states; at rest a cashflow is PENDING_CONFIRMATION,
// PRE_CONFIRMED, CONFIRMED or CANCELLED.
type Status string

const (
	StatusPlanned      Status = "PLANNED"
	StatusPending      Status = "PENDING_CONFIRMATION"
	StatusPreConfirmed Status = "PRE_CONFIRMED"
	StatusConfirmed    Status = "CONFIRMED"
	StatusPostponed    Status = "POSTPONED"
	StatusCancelled    Status = "CANCELLED"
)

// Confirmer identifies one of the two confirmation slots.
type Confirmer string

const (
	// ConfirmerCM is the Cashflow Manager slot: operational readiness.
	ConfirmerCM Confirmer = "CM"
	// ConfirmerGF is the Managing Director slot: managerial authorization.
	ConfirmerGF Confirmer = "GF"
)

// Cashflow is one scheduled payment. Direction follows the sign of Amount.
type Cashflow struct {
	ID            uuid.UUID
	InvestmentID  uuid.UUID
	CompanyID     int64
	Amount        decimal.Decimal
	DueDate       time.Time
	Month         int
	Year          int
	Status        Status
	ConfirmedByCM bool
	ConfirmedByGF bool
	BookingRef    string
	Revision      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Booked reports whether an accounting reference is attached. Booked
// cashflows are frozen: no flag may change afterwards.
func (c Cashflow) Booked() bool {
	return c.BookingRef != ""
}

// deriveStatus maps the two confirmation flags onto the aggregate status.
// It is a pure function of the flags; arrival order never matters.
func deriveStatus(cm, gf bool) Status {
	switch {
	case cm && gf:
		return StatusConfirmed
	case cm || gf:
		return StatusPreConfirmed
	default:
		return StatusPending
	}
}

// ListRequest filters cashflow listings within a company partition.
type ListRequest struct {
	InvestmentID uuid.UUID
	Status       Status
	Year         int
	Month        int
	Limit        int
	Offset       int
}
