// Package apperr defines the error taxonomy shared by the marketplace services.
// Handlers translate an error's Kind into an HTTP status, so callers can tell a
// retryable storage failure apart from a request that will never be allowed.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPermission
	KindStateConflict
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error carries a Kind, an optional machine readable Code and a human readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels (ErrValidation, ErrNotFound, ...) against any
// error of the same kind. Coded sentinels such as ErrTicketUnavailable only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" && t.Message == "" {
		return t.Kind == e.Kind
	}
	return t.Code != "" && t.Code == e.Code
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrPermission    = &Error{Kind: KindPermission}
	ErrStateConflict = &Error{Kind: KindStateConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrStorage       = &Error{Kind: KindStorage}
)

var (
	ErrTicketUnavailable = &Error{Kind: KindStateConflict, Code: "TicketUnavailable", Message: "ticket is not available"}
	ErrSelfPurchase      = &Error{Kind: KindPermission, Code: "SelfPurchase", Message: "sellers cannot buy their own listing"}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Permission(format string, args ...any) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func StateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a transient entity store or blob store failure.
func Storage(err error, format string, args ...any) error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the machine readable code of err, falling back to the kind name.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return e.Kind.String()
	}
	return "internal"
}
