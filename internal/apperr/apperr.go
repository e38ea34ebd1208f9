// Package apperr carries the structured error kinds returned by the ledger
// core. Callers branch on Kind and Reason; nothing here is localised.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindDuplicateActivePhone Kind = "duplicate_active_phone"
	KindNotFound             Kind = "not_found"
	KindCapacityExceeded     Kind = "capacity_exceeded"
	KindTransaction          Kind = "transaction"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrDuplicateActivePhone = &Error{Kind: KindDuplicateActivePhone}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrCapacityExceeded     = &Error{Kind: KindCapacityExceeded}
	ErrTransaction          = &Error{Kind: KindTransaction}
)

// Error is the domain error with a machine-readable reason.
type Error struct {
	Kind     Kind
	Reason   string            // e.g. "field_required", "event_full"
	Metadata map[string]string // field names, ids, counts
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if f, ok := e.Metadata["field"]; ok {
		msg += " (" + f + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable is true only for failed multi-step writes.
func (e *Error) Retryable() bool { return e.Kind == KindTransaction }

// HTTPStatus maps the kind onto a response code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateActivePhone, KindCapacityExceeded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Metadata: map[string]string{"field": field}}
}

func DuplicateActivePhone(phone string) *Error {
	return &Error{Kind: KindDuplicateActivePhone, Reason: "phone_in_use", Metadata: map[string]string{"phone": phone}}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Reason: entity + "_not_found", Metadata: map[string]string{"id": id}}
}

func CapacityExceeded(eventID string, seated, limit int) *Error {
	return &Error{
		Kind:   KindCapacityExceeded,
		Reason: "event_full",
		Metadata: map[string]string{
			"event_id": eventID,
			"seated":   fmt.Sprint(seated),
			"capacity": fmt.Sprint(limit),
		},
	}
}

// Transaction wraps a failed multi-step write. Domain errors pass through
// untouched so callers still see the original kind.
func Transaction(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var de *Error
	if errors.As(cause, &de) {
		return cause
	}
	return &Error{Kind: KindTransaction, Reason: op + "_failed", Cause: cause}
}

// As extracts the domain error from err, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
