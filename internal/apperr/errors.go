package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures so callers can react without string matching.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindApprovalOrder       Kind = "APPROVAL_ORDER"
	KindTerminalState       Kind = "TERMINAL_STATE"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindConflict            Kind = "CONCURRENT_MODIFICATION"
	KindDuplicate           Kind = "DUPLICATE"
	KindNotFound            Kind = "NOT_FOUND"
	KindForbidden           Kind = "FORBIDDEN"
	KindUnavailable         Kind = "UNAVAILABLE"
	KindInternal            Kind = "INTERNAL"
)

// Error is the error type returned by services. Details carries data the
// caller can act on, such as the missing stage or the available amount.
type Error struct {
	Kind    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Err: e.Err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrApprovalOrder       = &Error{Kind: KindApprovalOrder, Message: "approval order violation"}
	ErrTerminalState       = &Error{Kind: KindTerminalState, Message: "request is in a terminal state"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "amount exceeds outstanding balance"}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "concurrent modification, please retry"}
	ErrDuplicate           = &Error{Kind: KindDuplicate, Message: "already recorded"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnavailable         = &Error{Kind: KindUnavailable, Message: "store unavailable"}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(what string, id any) *Error {
	return New(KindNotFound, "%s %v not found", what, id).With("id", id)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is a shorthand for errors.As against *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
