// Package cascade orchestrates cross-entity effects of primary transitions:
// activating an investment seeds its cashflow schedule, and closing one is
// gated on every cashflow being settled.
package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/capiplan/capiplan/internal/cashflow"
	"github.com/capiplan/capiplan/internal/investment"
	"github.com/capiplan/capiplan/internal/schedule"
)

// Coordinator wires the investment and cashflow modules together without
// either importing the other. Confirmation or cancellation of a cashflow
// never changes the investment automatically; closing stays an explicit
// action.
type Coordinator struct {
	cashflows   cashflow.Repository
	investments investment.Repository
	generator   schedule.Generator
	logger      *slog.Logger
	now         func() time.Time
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(cashflows cashflow.Repository, investments investment.Repository, generator schedule.Generator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cashflows:   cashflows,
		investments: investments,
		generator:   generator,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (c *Coordinator) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Seed creates one cashflow per schedule entry inside a single transaction:
// either the whole schedule materialises or none of it does. Rows are
// created in PLANNED and land on PENDING_CONFIRMATION in the same write;
// PLANNED is bookkeeping a user should never observe.
func (c *Coordinator) Seed(ctx context.Context, inv investment.Investment) error {
	entries, err := c.generator.Schedule(ctx, inv)
	if err != nil {
		return fmt.Errorf("cascade: generate schedule: %w", err)
	}
	now := c.now()
	rows := make([]cashflow.Cashflow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, cashflow.Cashflow{
			ID:           uuid.New(),
			InvestmentID: inv.ID,
			CompanyID:    inv.CompanyID,
			Amount:       entry.Amount,
			DueDate:      entry.DueDate,
			Month:        int(entry.DueDate.Month()),
			Year:         entry.DueDate.Year(),
			Status:       cashflow.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	err = c.cashflows.WithTx(ctx, func(ctx context.Context, tx cashflow.TxRepository) error {
		for _, row := range rows {
			if err := tx.Insert(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cascade: seed %d cashflows: %w", len(rows), err)
	}
	c.logger.Info("cashflow schedule seeded",
		slog.String("investment", inv.ID.String()),
		slog.Int("count", len(rows)))
	return nil
}

// Settled reports whether every cashflow of the investment is confirmed or
// cancelled. An investment without cashflows counts as settled.
func (c *Coordinator) Settled(ctx context.Context, companyID int64, investmentID uuid.UUID) (bool, error) {
	rows, err := c.cashflows.ListByInvestment(ctx, companyID, investmentID)
	if err != nil {
		return false, err
	}
	for _, cf := range rows {
		if cf.Status != cashflow.StatusConfirmed && cf.Status != cashflow.StatusCancelled {
			return false, nil
		}
	}
	return true, nil
}

// Author resolves the creator of an investment for notification addressing.
func (c *Coordinator) Author(ctx context.Context, companyID int64, investmentID uuid.UUID) (int64, error) {
	inv, err := c.investments.Get(ctx, companyID, investmentID)
	if err != nil {
		return 0, err
	}
	return inv.CreatedBy, nil
}
