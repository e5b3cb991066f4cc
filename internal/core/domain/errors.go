package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindCapacity          ErrorKind = "capacity"
	KindPayment           ErrorKind = "payment"
	KindTransport         ErrorKind = "transport"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
)

var (
	ErrInsufficientCapacity = errors.New("not enough spots available")
	ErrSlotCancelled        = errors.New("time slot has been cancelled")
	ErrSlotNotFound         = errors.New("time slot not found")
	ErrActivityNotFound     = errors.New("activity not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrInvalidTransition    = errors.New("invalid booking status transition")
	ErrDuplicateReference   = errors.New("booking reference already exists")
	ErrStaleBooking         = errors.New("booking was modified concurrently")
)

// Error is the classified failure returned across component boundaries so
// callers can tell retryable outcomes from terminal ones.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later or with
// different input (fewer participants, another slot).
func (e *Error) Retryable() bool {
	return e.Kind == KindCapacity || e.Kind == KindTransport
}

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Transport(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

func NotFound(err error) *Error {
	return &Error{Kind: KindNotFound, Err: err}
}

// KindOf extracts the classification of err. Unclassified errors are
// treated as transport failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	var ce *CapacityError
	if errors.As(err, &ce) {
		return KindCapacity
	}

	var te *InvalidTransitionError
	if errors.As(err, &te) {
		return KindInvalidTransition
	}

	switch {
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrActivityNotFound),
		errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrReservationNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateReference), errors.Is(err, ErrStaleBooking):
		return KindConflict
	}

	return KindTransport
}

func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindCapacity || k == KindTransport
}

type CapacityError struct {
	Slot      SlotKey
	Requested int
	SpotsLeft int
	Cancelled bool
}

func (e *CapacityError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("%s (%s)", ErrSlotCancelled.Error(), e.Slot)
	}
	return fmt.Sprintf("%s: requested %d, %d left (%s)", ErrInsufficientCapacity.Error(), e.Requested, e.SpotsLeft, e.Slot)
}

func (e *CapacityError) Is(target error) bool {
	if e.Cancelled {
		return target == ErrSlotCancelled
	}
	return target == ErrInsufficientCapacity
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
