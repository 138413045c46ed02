package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	}
	return "internal"
}

// Error is a sentinel carrying its Kind. Compare with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Validation errors are raised before any transaction opens.
var (
	ErrInvalidAddress       = newError(KindValidation, "shipping address requires line1 and city")
	ErrCartEmpty            = newError(KindValidation, "cart is empty")
	ErrInvalidDecision      = newError(KindValidation, "decision must be accepted or rejected")
	ErrInvalidPaymentMethod = newError(KindValidation, "invalid payment method")
	ErrInvalidQuantity      = newError(KindValidation, "quantity must be a positive integer")
	ErrQuantityTooLarge     = newError(KindValidation, fmt.Sprintf("quantity must not exceed %d per line", MaxLineQuantity))
	ErrValueOutOfRange      = newError(KindValidation, "value out of range")
	ErrInvalidStatus        = newError(KindValidation, "unknown order status")
	ErrMissingOwner         = newError(KindValidation, "caller must be a registered user or carry a guest token")
)

// Conflict errors are detected under lock and roll the transaction back.
var (
	ErrInsufficientStock = newError(KindConflict, "insufficient stock")
	ErrAlreadyDecided    = newError(KindConflict, "order item already decided")
	ErrCartCheckedOut    = newError(KindConflict, "cart has already been checked out")
	ErrInvalidTransition = newError(KindConflict, "order status transition not allowed")
)

// Not-found errors. ErrOrderItemNotFound also covers items that belong to
// another vendor so that existence is not leaked.
var (
	ErrCartNotFound      = newError(KindNotFound, "cart not found")
	ErrCartItemNotFound  = newError(KindNotFound, "cart item not found")
	ErrProductNotFound   = newError(KindNotFound, "product not found")
	ErrOrderNotFound     = newError(KindNotFound, "order not found")
	ErrOrderItemNotFound = newError(KindNotFound, "order item not found")
	ErrNotAVendor        = newError(KindNotFound, "user is not a vendor")
)

var ErrPersistence = newError(KindPersistence, "persistence failure")

// PersistenceError wraps a storage failure. The enclosing transaction has
// been rolled back, so the caller may retry. Transient marks failures such
// as deadlocks or lock timeouts that are likely to succeed on retry.
type PersistenceError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence.msg, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// KindOf classifies err for callers that map failures onto a transport.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return KindPersistence
	}
	return KindInternal
}

// IsRetryable reports whether the whole operation can be retried as is.
// Conflicts are not retryable: they describe a real business outcome.
func IsRetryable(err error) bool {
	return KindOf(err) == KindPersistence
}

// IsTransient reports a persistence failure caused by contention.
func IsTransient(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Transient
}
