package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict on write.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrRevisionConflict indicates a concurrent write was detected via the revision column.
	ErrRevisionConflict = errors.New("revision conflict")
)

// IllegalTransitionError reports a transition not defined for the current status.
type IllegalTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}

// PermissionDeniedError reports a missing capability for the attempted action.
type PermissionDeniedError struct {
	Capability string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: requires %s", e.Capability)
}

// PreconditionFailedError reports a domain precondition that blocked the action.
type PreconditionFailedError struct {
	Reason string
}

func (e *PreconditionFailedError) Error() string {
	return "precondition failed: " + e.Reason
}

// IsIllegalTransition reports whether err is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}

// IsPermissionDenied reports whether err is a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var target *PermissionDeniedError
	return errors.As(err, &target)
}

// IsPreconditionFailed reports whether err is a PreconditionFailedError.
func IsPreconditionFailed(err error) bool {
	var target *PreconditionFailedError
	return errors.As(err, &target)
}
