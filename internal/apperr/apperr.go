// Package apperr holds the error kinds shared by the booking domain.
// Every domain failure wraps exactly one kind so transports can map it
// with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrPastDate            = errors.New("date is in the past")
	ErrSlotConflict        = errors.New("slot conflict")
	ErrOwnership           = errors.New("caller does not own this resource")
	ErrForbidden           = errors.New("role not permitted")
	ErrAlreadyTerminal     = errors.New("appointment is in a terminal or incompatible state")
	ErrAlreadyPaid         = errors.New("appointment is already paid")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrPaymentLookup       = errors.New("payment lookup failed")
)

// Error carries a kind plus the offending field or entity id.
type Error struct {
	Kind    error
	Field   string
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (id %s)", e.ID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(field, msg string) error {
	return &Error{Kind: ErrValidation, Field: field, Message: msg}
}

// NotFound names which entity is missing, e.g. NotFound("doctor", id).
func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Field: entity, ID: id, Message: entity + " not found"}
}

func PastDate(field, value string) error {
	return &Error{Kind: ErrPastDate, Field: field, Message: value + " is before today"}
}

func SlotConflict(id, msg string) error {
	return &Error{Kind: ErrSlotConflict, ID: id, Message: msg}
}

func Ownership(id string) error {
	return &Error{Kind: ErrOwnership, ID: id}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func AlreadyTerminal(id, status string) error {
	return &Error{Kind: ErrAlreadyTerminal, ID: id, Message: "status is " + status}
}

func AlreadyPaid(id string) error {
	return &Error{Kind: ErrAlreadyPaid, ID: id}
}

func PaymentNotCompleted(id, status string) error {
	return &Error{Kind: ErrPaymentNotCompleted, ID: id, Message: "gateway status is " + status}
}

func PaymentLookup(id string, err error) error {
	return &Error{Kind: ErrPaymentLookup, ID: id, Err: err}
}

// Kinds lists every kind in the order transports should test them.
var Kinds = []error{
	ErrValidation,
	ErrPastDate,
	ErrNotFound,
	ErrSlotConflict,
	ErrOwnership,
	ErrForbidden,
	ErrAlreadyTerminal,
	ErrAlreadyPaid,
	ErrPaymentNotCompleted,
	ErrPaymentLookup,
}

// KindOf returns the domain kind of err or nil for infrastructure errors.
func KindOf(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Details extracts field and id from the first *Error in the chain.
func Details(err error) (field, id string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Field, e.ID
	}
	return "", ""
}
