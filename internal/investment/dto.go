package investment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type plannedPaymentPayload struct {
	DueDate string `json:"due_date" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
}

type createRequest struct {
	Name            string                  `json:"name" validate:"required,max=200"`
	Category        string                  `json:"category" validate:"required"`
	Financing       string                  `json:"financing" validate:"required"`
	Amount          string                  `json:"amount" validate:"required"`
	PlannedPayments []plannedPaymentPayload `json:"planned_payments" validate:"dive"`
}

type updateRequest struct {
	Name            string                  `json:"name" validate:"omitempty,max=200"`
	Category        string                  `json:"category"`
	Financing       string                  `json:"financing"`
	Amount          string                  `json:"amount"`
	PlannedPayments []plannedPaymentPayload `json:"planned_payments" validate:"omitempty,dive"`
}

type decisionRequest struct {
	Comment    string `json:"comment" validate:"max=2000"`
	Conditions string `json:"conditions" validate:"max=2000"`
	ValidUntil string `json:"valid_until"`
}

type investmentResponse struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Category        string                  `json:"category"`
	Financing       string                  `json:"financing"`
	Amount          string                  `json:"amount"`
	Status          string                  `json:"status"`
	PlannedPayments []plannedPaymentPayload `json:"planned_payments"`
	CreatedBy       int64                   `json:"created_by"`
	Revision        int64                   `json:"revision"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type detailResponse struct {
	Investment     investmentResponse `json:"investment"`
	Approvals      []approvalResponse `json:"approvals,omitempty"`
	ActiveApproval *approvalResponse  `json:"active_approval,omitempty"`
}

type approvalResponse struct {
	ID         int64      `json:"id"`
	ApproverID int64      `json:"approver_id"`
	Decision   string     `json:"decision"`
	Comment    string     `json:"comment,omitempty"`
	Conditions string     `json:"conditions,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	DecidedAt  time.Time  `json:"decided_at"`
}

func parsePayments(payloads []plannedPaymentPayload) ([]PlannedPayment, error) {
	if payloads == nil {
		return nil, nil
	}
	out := make([]PlannedPayment, 0, len(payloads))
	for i, p := range payloads {
		due, err := time.Parse("2006-01-02", p.DueDate)
		if err != nil {
			return nil, fmt.Errorf("investment: payment %d: invalid due date %q", i+1, p.DueDate)
		}
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("investment: payment %d: invalid amount %q", i+1, p.Amount)
		}
		out = append(out, PlannedPayment{DueDate: due, Amount: amount})
	}
	return out, nil
}

func toResponse(inv Investment) investmentResponse {
	payments := make([]plannedPaymentPayload, 0, len(inv.PlannedPayments))
	for _, p := range inv.PlannedPayments {
		payments = append(payments, plannedPaymentPayload{
			DueDate: p.DueDate.Format("2006-01-02"),
			Amount:  p.Amount.String(),
		})
	}
	return investmentResponse{
		ID:              inv.ID.String(),
		Name:            inv.Name,
		Category:        string(inv.Category),
		Financing:       string(inv.Financing),
		Amount:          inv.Amount.String(),
		Status:          string(inv.Status),
		PlannedPayments: payments,
		CreatedBy:       inv.CreatedBy,
		Revision:        inv.Revision,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

func toApprovalResponse(a Approval) approvalResponse {
	return approvalResponse{
		ID:         a.ID,
		ApproverID: a.ApproverID,
		Decision:   string(a.Decision),
		Comment:    a.Comment,
		Conditions: a.Conditions,
		ValidUntil: a.ValidUntil,
		DecidedAt:  a.DecidedAt,
	}
}
