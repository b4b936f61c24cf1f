package investment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/capiplan/capiplan/internal/audit"
	"github.com/capiplan/capiplan/internal/notify"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

// Cascade seeds derived cashflows on activation and answers the settlement
// precondition on close.
type Cascade interface {
	Seed(ctx context.Context, inv Investment) error
	Settled(ctx context.Context, companyID int64, investmentID uuid.UUID) (bool, error)
}

// TransitionObserver counts successful status transitions.
type TransitionObserver interface {
	ObserveTransition(entity, status string)
}

// Service applies investment transitions and their side effects. The caller
// serializes writes per investment id; the service itself takes no locks.
type Service struct {
	repo     Repository
	resolver *rbac.Resolver
	cascade  Cascade
	recorder audit.Recorder
	queue    *notify.Queue
	logger   *slog.Logger
	observer TransitionObserver
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, resolver *rbac.Resolver, cascade Cascade, recorder audit.Recorder, queue *notify.Queue, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		cascade:  cascade,
		recorder: recorder,
		queue:    queue,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver wires the transition counter.
func (s *Service) WithObserver(observer TransitionObserver) {
	s.observer = observer
}

func (s *Service) require(actor shared.Actor, capability string) error {
	if !s.resolver.HasCapability(actor.Roles, capability) {
		return &shared.PermissionDeniedError{Capability: capability}
	}
	return nil
}

func (s *Service) record(ctx context.Context, inv Investment, prev Status, action string, actorID int64, at time.Time) {
	entry := audit.Entry{
		CompanyID:  inv.CompanyID,
		Entity:     "investment",
		EntityID:   inv.ID.String(),
		PrevStatus: string(prev),
		NewStatus:  string(inv.Status),
		Action:     action,
		ActorID:    actorID,
		OccurredAt: at,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error("record audit entry", slog.Any("error", err), slog.String("action", action))
	}
	if s.observer != nil {
		s.observer.ObserveTransition(entry.Entity, entry.NewStatus)
	}
}

// Create stores a new draft investment.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInput) (Investment, error) {
	if err := s.require(actor, shared.CapInvestmentCreate); err != nil {
		return Investment{}, err
	}
	in.CompanyID = actor.CompanyID
	in.CreatedBy = actor.ID
	if err := in.Validate(); err != nil {
		return Investment{}, err
	}
	now := s.now()
	inv := Investment{
		ID:              uuid.New(),
		CompanyID:       in.CompanyID,
		Name:            in.Name,
		Category:        in.Category,
		Financing:       in.Financing,
		Amount:          in.Amount,
		Status:          StatusDraft,
		PlannedPayments: in.PlannedPayments,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, inv)
	})
	if err != nil {
		return Investment{}, err
	}
	s.record(ctx, inv, "", "create", actor.ID, now)
	return inv, nil
}

// UpdateDraft applies partial edits. Only the creator may touch a draft and
// no other status is editable at all.
func (s *Service) UpdateDraft(ctx context.Context, actor shared.Actor, id uuid.UUID, in UpdateDraftInput) (Investment, error) {
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Investment{}, err
	}
	if inv.Status != StatusDraft {
		return Investment{}, &shared.PreconditionFailedError{Reason: "only drafts are editable"}
	}
	if inv.CreatedBy != actor.ID && !s.resolver.HasCapability(actor.Roles, shared.CapUsersEdit) {
		return Investment{}, &shared.PermissionDeniedError{Capability: shared.CapUsersEdit}
	}
	if in.Name != "" {
		inv.Name = in.Name
	}
	if in.Category != "" {
		if !in.Category.valid() {
			return Investment{}, fmt.Errorf("investment: unknown category %q", in.Category)
		}
		inv.Category = in.Category
	}
	if in.Financing != "" {
		if !in.Financing.valid() {
			return Investment{}, fmt.Errorf("investment: unknown financing type %q", in.Financing)
		}
		inv.Financing = in.Financing
	}
	if !in.Amount.IsZero() {
		if in.Amount.IsNegative() {
			return Investment{}, &shared.PreconditionFailedError{Reason: "amount must not be negative"}
		}
		inv.Amount = in.Amount
	}
	if in.PlannedPayments != nil {
		inv.PlannedPayments = in.PlannedPayments
	}
	inv.UpdatedAt = s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, inv)
	})
	if err != nil {
		return Investment{}, err
	}
	inv.Revision++
	return inv, nil
}

// DeleteDraft hard-deletes a draft. Any other status survives forever.
func (s *Service) DeleteDraft(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return err
	}
	if inv.Status != StatusDraft {
		return &shared.PreconditionFailedError{Reason: "only drafts can be deleted"}
	}
	if inv.CreatedBy != actor.ID && !s.resolver.HasCapability(actor.Roles, shared.CapUsersEdit) {
		return &shared.PermissionDeniedError{Capability: shared.CapUsersEdit}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteDraft(ctx, actor.CompanyID, id)
	})
}

// Submit routes a draft into the approval queue and notifies approvers.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id uuid.UUID) (Investment, error) {
	if err := s.require(actor, shared.CapInvestmentSubmit); err != nil {
		return Investment{}, err
	}
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Investment{}, err
	}
	now := s.now()
	next, err := submit(inv, now)
	if err != nil {
		return Investment{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, next)
	})
	if err != nil {
		return Investment{}, err
	}
	next.Revision++
	s.record(ctx, next, inv.Status, "submit", actor.ID, now)
	s.queue.EnqueueMany(notify.InvestmentSubmitted(next.CompanyID, next.ID.String(), now))
	return next, nil
}

// Approve writes the approval record and activates in the same transaction,
// so an investment is never observed stranded in APPROVED. Seeding of the
// cashflow schedule follows as one atomic batch.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, id uuid.UUID, in DecisionInput) (Investment, error) {
	if err := s.require(actor, shared.CapInvestmentApprove); err != nil {
		return Investment{}, err
	}
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Investment{}, err
	}
	now := s.now()
	approved, err := approve(inv, now)
	if err != nil {
		return Investment{}, err
	}
	active, err := activate(approved, now)
	if err != nil {
		return Investment{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertApproval(ctx, Approval{
			InvestmentID: inv.ID,
			ApproverID:   actor.ID,
			Decision:     DecisionApproved,
			Comment:      in.Comment,
			Conditions:   in.Conditions,
			ValidUntil:   in.ValidUntil,
			DecidedAt:    now,
		}); err != nil {
			return err
		}
		return tx.Update(ctx, active)
	})
	if err != nil {
		return Investment{}, err
	}
	active.Revision++
	s.record(ctx, approved, inv.Status, "approve", actor.ID, now)
	s.record(ctx, active, approved.Status, "activate", actor.ID, now)
	s.queue.EnqueueMany(notify.InvestmentDecided(active.CompanyID, active.ID.String(), active.CreatedBy, true, now))

	if err := s.cascade.Seed(ctx, active); err != nil {
		return active, fmt.Errorf("investment: seed cashflow schedule: %w", err)
	}
	return active, nil
}

// Reject writes the negative approval record. Rejected is terminal; a
// re-submission is a brand-new investment, not a resurrection.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id uuid.UUID, in DecisionInput) (Investment, error) {
	if err := s.require(actor, shared.CapInvestmentApprove); err != nil {
		return Investment{}, err
	}
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Investment{}, err
	}
	now := s.now()
	next, err := reject(inv, now)
	if err != nil {
		return Investment{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertApproval(ctx, Approval{
			InvestmentID: inv.ID,
			ApproverID:   actor.ID,
			Decision:     DecisionRejected,
			Comment:      in.Comment,
			DecidedAt:    now,
		}); err != nil {
			return err
		}
		return tx.Update(ctx, next)
	})
	if err != nil {
		return Investment{}, err
	}
	next.Revision++
	s.record(ctx, next, inv.Status, "reject", actor.ID, now)
	s.queue.EnqueueMany(notify.InvestmentDecided(next.CompanyID, next.ID.String(), next.CreatedBy, false, now))
	return next, nil
}

// Close finalises an active investment once every cashflow is settled.
func (s *Service) Close(ctx context.Context, actor shared.Actor, id uuid.UUID) (Investment, error) {
	if err := s.require(actor, shared.CapInvestmentClose); err != nil {
		return Investment{}, err
	}
	inv, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Investment{}, err
	}
	now := s.now()
	next, err := closeOut(inv, now)
	if err != nil {
		return Investment{}, err
	}
	settled, err := s.cascade.Settled(ctx, inv.CompanyID, inv.ID)
	if err != nil {
		return Investment{}, err
	}
	if !settled {
		return Investment{}, &shared.PreconditionFailedError{Reason: "pending settlement: not all cashflows are confirmed or cancelled"}
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, next)
	})
	if err != nil {
		return Investment{}, err
	}
	next.Revision++
	s.record(ctx, next, inv.Status, "close", actor.ID, now)
	return next, nil
}

// Get returns one investment within the actor's company partition.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Investment, error) {
	return s.repo.Get(ctx, actor.CompanyID, id)
}

// Detail is the read model for the show endpoint.
type Detail struct {
	Investment Investment
	Approvals  []Approval
	// ActiveApproval is the latest decision, nil while none has been made.
	ActiveApproval *Approval
}

// Detail fetches the investment, its decision history and the currently
// effective decision concurrently.
func (s *Service) Detail(ctx context.Context, actor shared.Actor, id uuid.UUID) (Detail, error) {
	var detail Detail
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inv, err := s.repo.Get(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		detail.Investment = inv
		return nil
	})
	g.Go(func() error {
		records, err := s.repo.ListApprovals(ctx, id)
		if err != nil {
			return err
		}
		detail.Approvals = records
		return nil
	})
	g.Go(func() error {
		active, err := s.repo.ActiveApproval(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		detail.ActiveApproval = &active
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// List returns investments within the actor's company partition.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListRequest) ([]Investment, error) {
	return s.repo.List(ctx, actor.CompanyID, req)
}

// Approvals returns the decision history, oldest first.
func (s *Service) Approvals(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]Approval, error) {
	if _, err := s.repo.Get(ctx, actor.CompanyID, id); err != nil {
		return nil, err
	}
	return s.repo.ListApprovals(ctx, id)
}
