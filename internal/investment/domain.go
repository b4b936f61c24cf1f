package investment

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates investment lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED_FOR_APPROVAL"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusActive    Status = "ACTIVE"
	StatusClosed    Status = "CLOSED"
)

// Category enumerates investment categories.
type Category string

const (
	CategoryMachinery  Category = "MACHINERY"
	CategoryVehicle    Category = "VEHICLE"
	CategoryIT         Category = "IT_EQUIPMENT"
	CategoryRealEstate Category = "REAL_ESTATE"
	CategoryOther      Category = "OTHER"
)

// FinancingType distinguishes usage-based from ownership-based financing.
type FinancingType string

const (
	FinancingLease       FinancingType = "LEASE"
	FinancingRent        FinancingType = "RENT"
	FinancingPurchase    FinancingType = "PURCHASE"
	FinancingInstallment FinancingType = "INSTALLMENT"
)

// Decision enumerates approval outcomes.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// PlannedPayment is one row of the payment plan entered on a draft. The
// cascade turns these rows into cashflow instances on activation.
type PlannedPayment struct {
	DueDate time.Time
	Amount  decimal.Decimal
}

// Investment is a capital investment request scoped to a company partition.
type Investment struct {
	ID              uuid.UUID
	CompanyID       int64
	Name            string
	Category        Category
	Financing       FinancingType
	Amount          decimal.Decimal
	Status          Status
	PlannedPayments []PlannedPayment
	CreatedBy       int64
	Revision        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Approval is an append-only decision record. The newest record per
// investment is the active decision; older rows remain as history.
type Approval struct {
	ID           int64
	InvestmentID uuid.UUID
	ApproverID   int64
	Decision     Decision
	Comment      string
	Conditions   string
	ValidUntil   *time.Time
	DecidedAt    time.Time
}

// CreateInput captures a new draft investment.
type CreateInput struct {
	CompanyID       int64
	Name            string
	Category        Category
	Financing       FinancingType
	Amount          decimal.Decimal
	PlannedPayments []PlannedPayment
	CreatedBy       int64
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("investment: company id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("investment: name required")
	}
	if !in.Category.valid() {
		return errors.New("investment: unknown category")
	}
	if !in.Financing.valid() {
		return errors.New("investment: unknown financing type")
	}
	if in.Amount.IsNegative() {
		return errors.New("investment: amount must not be negative")
	}
	if in.CreatedBy == 0 {
		return errors.New("investment: creator required")
	}
	return nil
}

// UpdateDraftInput carries partial edits, permitted only while DRAFT.
type UpdateDraftInput struct {
	Name            string
	Category        Category
	Financing       FinancingType
	Amount          decimal.Decimal
	PlannedPayments []PlannedPayment
}

// DecisionInput captures an approve/reject action.
type DecisionInput struct {
	Comment    string
	Conditions string
	ValidUntil *time.Time
}

// ListRequest filters investment listings within a company partition.
type ListRequest struct {
	Status   Status
	Category Category
	Limit    int
	Offset   int
}

func (c Category) valid() bool {
	switch c {
	case CategoryMachinery, CategoryVehicle, CategoryIT, CategoryRealEstate, CategoryOther:
		return true
	}
	return false
}

func (f FinancingType) valid() bool {
	switch f {
	case FinancingLease, FinancingRent, FinancingPurchase, FinancingInstallment:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusClosed
}
