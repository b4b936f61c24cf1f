package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/capiplan/capiplan/internal/rbac"
)

// Builders below translate lifecycle events into the notifications the
// dispatch table in the workflow design mandates. Recipients are role
// selectors unless an event concerns one concrete user.

func base(companyID int64, kind Kind, entityType, entityID string, now time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  now,
	}
}

// InvestmentSubmitted notifies the approver roles.
func InvestmentSubmitted(companyID int64, investmentID string, now time.Time) []Notification {
	n := base(companyID, KindInvestmentSubmitted, "investment", investmentID, now)
	n.RecipientRole = rbac.RoleApprover
	return []Notification{n}
}

// InvestmentDecided notifies the author of the approve/reject outcome.
func InvestmentDecided(companyID int64, investmentID string, authorID int64, approved bool, now time.Time) []Notification {
	kind := KindInvestmentRejected
	if approved {
		kind = KindInvestmentApproved
	}
	n := base(companyID, kind, "investment", investmentID, now)
	n.RecipientID = authorID
	return []Notification{n}
}

// CashflowPreConfirmed notifies the confirming role that has not acted yet.
func CashflowPreConfirmed(companyID int64, cashflowID string, confirmedByCM bool, now time.Time) []Notification {
	n := base(companyID, KindCashflowPreConfirmed, "cashflow", cashflowID, now)
	if confirmedByCM {
		n.RecipientRole = rbac.RoleManagingDirector
	} else {
		n.RecipientRole = rbac.RoleCashflowManager
	}
	return []Notification{n}
}

// CashflowConfirmed notifies accounting that the cashflow is settled.
func CashflowConfirmed(companyID int64, cashflowID string, now time.Time) []Notification {
	n := base(companyID, KindCashflowConfirmed, "cashflow", cashflowID, now)
	n.RecipientRole = rbac.RoleAccounting
	return []Notification{n}
}

// CashflowInterrupted notifies both confirming roles about a postpone or
// cancel, which invalidates any confirmation either of them gave.
func CashflowInterrupted(companyID int64, cashflowID string, cancelled bool, now time.Time) []Notification {
	kind := KindCashflowPostponed
	if cancelled {
		kind = KindCashflowCancelled
	}
	cm := base(companyID, kind, "cashflow", cashflowID, now)
	cm.RecipientRole = rbac.RoleCashflowManager
	gf := base(companyID, kind, "cashflow", cashflowID, now)
	gf.RecipientRole = rbac.RoleManagingDirector
	return []Notification{cm, gf}
}

// CashflowBooked notifies the investment author that accounting booked the
// payment.
func CashflowBooked(companyID int64, cashflowID string, authorID int64, now time.Time) []Notification {
	n := base(companyID, KindCashflowBooked, "cashflow", cashflowID, now)
	n.RecipientID = authorID
	return []Notification{n}
}
