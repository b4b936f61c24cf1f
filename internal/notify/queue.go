// Package notify queues lifecycle notifications and hands them to a delivery
// collaborator with at-least-once semantics.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates notification event kinds.
type Kind string

const (
	KindInvestmentSubmitted  Kind = "investment.submitted"
	KindInvestmentApproved   Kind = "investment.approved"
	KindInvestmentRejected   Kind = "investment.rejected"
	KindCashflowPreConfirmed Kind = "cashflow.pre_confirmed"
	KindCashflowConfirmed    Kind = "cashflow.confirmed"
	KindCashflowPostponed    Kind = "cashflow.postponed"
	KindCashflowCancelled    Kind = "cashflow.cancelled"
	KindCashflowBooked       Kind = "cashflow.booked"
)

// Notification targets either a role or a concrete user within a company.
type Notification struct {
	ID            uuid.UUID
	CompanyID     int64
	RecipientRole string
	RecipientID   int64
	Kind          Kind
	EntityType    string
	EntityID      string
	CreatedAt     time.Time
	Delivered     bool
}

// Handler delivers a drained batch. A non-nil error requeues the batch.
type Handler func(batch []Notification) error

// Queue is a FIFO of pending notifications with a non-reentrant drain. It is
// an injected instance with an explicit lifecycle, not ambient global state.
type Queue struct {
	mu         sync.Mutex
	pending    []Notification
	processing bool
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends one notification.
func (q *Queue) Enqueue(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
}

// EnqueueMany appends notifications preserving order.
func (q *Queue) EnqueueMany(ns []Notification) {
	if len(ns) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, ns...)
}

// Len reports the number of pending notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Process drains the whole queue and hands the batch to handler. A drain
// already in flight is a safe no-op returning an empty batch, never an error.
// When handler fails the batch is reinserted at the front so the next drain
// redelivers it; the queue never deduplicates. A panicking handler counts as
// a failure: the batch is requeued and the panic surfaces as an error, so the
// queue never stays wedged behind a crashed drain.
func (q *Queue) Process(handler Handler) (batch []Notification, err error) {
	q.mu.Lock()
	if q.processing || len(q.pending) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	q.processing = true
	batch = q.pending
	q.pending = nil
	q.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notify: delivery handler panicked: %v", rec)
		}
		q.mu.Lock()
		q.processing = false
		if err != nil {
			q.pending = append(append([]Notification(nil), batch...), q.pending...)
			batch = nil
		}
		q.mu.Unlock()
	}()

	err = handler(batch)
	return batch, err
}

// Clear drops all pending notifications.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}
