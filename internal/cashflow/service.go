package cashflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capiplan/capiplan/internal/audit"
	"github.com/capiplan/capiplan/internal/notify"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

// InvestmentDirectory answers who authored the parent investment, for
// notifications addressed to the author.
type InvestmentDirectory interface {
	Author(ctx context.Context, companyID int64, investmentID uuid.UUID) (int64, error)
}

// TransitionObserver counts successful status transitions.
type TransitionObserver interface {
	ObserveTransition(entity, status string)
}

// Service applies confirmation actions to individual cashflows. Confirmation
// order between the two slots is unconstrained; the aggregate status only
// ever depends on the flags.
type Service struct {
	repo     Repository
	resolver *rbac.Resolver
	authors  InvestmentDirectory
	recorder audit.Recorder
	queue    *notify.Queue
	logger   *slog.Logger
	observer TransitionObserver
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, resolver *rbac.Resolver, authors InvestmentDirectory, recorder audit.Recorder, queue *notify.Queue, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		authors:  authors,
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

func confirmCapability(by Confirmer) string {
	if by == ConfirmerGF {
		return shared.CapCashflowConfirmGF
	}
	return shared.CapCashflowConfirmCM
}

func (s *Service) require(actor shared.Actor, capability string) error {
	if !s.resolver.HasCapability(actor.Roles, capability) {
		return &shared.PermissionDeniedError{Capability: capability}
	}
	return nil
}

func (s *Service) record(ctx context.Context, cf Cashflow, prev Status, action string, actorID int64, at time.Time) {
	entry := audit.Entry{
		CompanyID:  cf.CompanyID,
		Entity:     "cashflow",
		EntityID:   cf.ID.String(),
		PrevStatus: string(prev),
		NewStatus:  string(cf.Status),
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

func (s *Service) persist(ctx context.Context, cf Cashflow) (Cashflow, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Update(ctx, cf)
	})
	if err != nil {
		return Cashflow{}, err
	}
	cf.Revision++
	return cf, nil
}

// Confirm sets the slot's confirmation flag and recomputes the status.
func (s *Service) Confirm(ctx context.Context, actor shared.Actor, id uuid.UUID, by Confirmer) (Cashflow, error) {
	if err := s.require(actor, confirmCapability(by)); err != nil {
		return Cashflow{}, err
	}
	cf, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Cashflow{}, err
	}
	now := s.now()
	next, err := confirm(cf, by, now)
	if err != nil {
		return Cashflow{}, err
	}
	next, err = s.persist(ctx, next)
	if err != nil {
		return Cashflow{}, err
	}
	s.record(ctx, next, cf.Status, "confirm_"+strings.ToLower(string(by)), actor.ID, now)
	switch next.Status {
	case StatusPreConfirmed:
		s.queue.EnqueueMany(notify.CashflowPreConfirmed(next.CompanyID, next.ID.String(), next.ConfirmedByCM, now))
	case StatusConfirmed:
		if cf.Status != StatusConfirmed {
			s.queue.EnqueueMany(notify.CashflowConfirmed(next.CompanyID, next.ID.String(), now))
		}
	}
	return next, nil
}

// Unconfirm clears the slot's confirmation flag, the correction path.
func (s *Service) Unconfirm(ctx context.Context, actor shared.Actor, id uuid.UUID, by Confirmer) (Cashflow, error) {
	if err := s.require(actor, confirmCapability(by)); err != nil {
		return Cashflow{}, err
	}
	cf, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Cashflow{}, err
	}
	now := s.now()
	next, err := unconfirm(cf, by, now)
	if err != nil {
		return Cashflow{}, err
	}
	next, err = s.persist(ctx, next)
	if err != nil {
		return Cashflow{}, err
	}
	s.record(ctx, next, cf.Status, "unconfirm_"+strings.ToLower(string(by)), actor.ID, now)
	return next, nil
}

// Postpone moves the due date and restarts the confirmation handshake.
func (s *Service) Postpone(ctx context.Context, actor shared.Actor, id uuid.UUID, newDueDate time.Time) (Cashflow, error) {
	if err := s.require(actor, shared.CapCashflowPostpone); err != nil {
		return Cashflow{}, err
	}
	if newDueDate.IsZero() {
		return Cashflow{}, &shared.PreconditionFailedError{Reason: "new due date required"}
	}
	cf, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Cashflow{}, err
	}
	now := s.now()
	next, err := postpone(cf, newDueDate, now)
	if err != nil {
		return Cashflow{}, err
	}
	next, err = s.persist(ctx, next)
	if err != nil {
		return Cashflow{}, err
	}
	s.record(ctx, next, cf.Status, "postpone", actor.ID, now)
	s.queue.EnqueueMany(notify.CashflowInterrupted(next.CompanyID, next.ID.String(), false, now))
	return next, nil
}

// Cancel terminates the cashflow.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id uuid.UUID) (Cashflow, error) {
	if err := s.require(actor, shared.CapCashflowCancel); err != nil {
		return Cashflow{}, err
	}
	cf, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Cashflow{}, err
	}
	now := s.now()
	next, err := cancel(cf, now)
	if err != nil {
		return Cashflow{}, err
	}
	next, err = s.persist(ctx, next)
	if err != nil {
		return Cashflow{}, err
	}
	s.record(ctx, next, cf.Status, "cancel", actor.ID, now)
	s.queue.EnqueueMany(notify.CashflowInterrupted(next.CompanyID, next.ID.String(), true, now))
	return next, nil
}

// Book attaches the accounting reference and freezes the cashflow.
func (s *Service) Book(ctx context.Context, actor shared.Actor, id uuid.UUID, reference string) (Cashflow, error) {
	if err := s.require(actor, shared.CapCashflowBook); err != nil {
		return Cashflow{}, err
	}
	cf, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Cashflow{}, err
	}
	now := s.now()
	next, err := book(cf, reference, now)
	if err != nil {
		return Cashflow{}, err
	}
	next, err = s.persist(ctx, next)
	if err != nil {
		return Cashflow{}, err
	}
	s.record(ctx, next, cf.Status, "book", actor.ID, now)
	author, err := s.authors.Author(ctx, next.CompanyID, next.InvestmentID)
	if err != nil {
		s.logger.Warn("resolve investment author", slog.Any("error", err))
		return next, nil
	}
	s.queue.EnqueueMany(notify.CashflowBooked(next.CompanyID, next.ID.String(), author, now))
	return next, nil
}

// Get returns one cashflow within the actor's company partition.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Cashflow, error) {
	return s.repo.Get(ctx, actor.CompanyID, id)
}

// List returns cashflows filtered by period or status.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListRequest) ([]Cashflow, error) {
	if req.InvestmentID != uuid.Nil {
		return s.repo.ListByInvestment(ctx, actor.CompanyID, req.InvestmentID)
	}
	return s.repo.List(ctx, actor.CompanyID, req)
}
