package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller must react to it.
type Kind string

const (
	KindNetwork       Kind = "network"       // the call did not complete
	KindAuthorization Kind = "authorization" // token missing or rejected
	KindConflict      Kind = "conflict"      // backend-side invariant violation
	KindValidation    Kind = "validation"    // precondition not met
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is the single error type crossing package boundaries in this module.
type Error struct {
	Kind    Kind
	Op      string // e.g. "borrow_request.accept"
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a local precondition failure with per-field details.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid input", Fields: fields}
}

// KindOf returns the kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// FieldsOf returns validation details, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// UserMessage is the fixed text shown to a user for a failure of the given kind.
// Backend messages are never shown verbatim.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNetwork:
		return "Could not reach the server. Please try again."
	case KindAuthorization:
		return "Your session has expired. Please log in again."
	case KindConflict:
		return "This game is not available for that action right now."
	case KindValidation:
		return "Please check the form and try again."
	case KindNotFound:
		return "This request no longer exists."
	default:
		return "Something went wrong. Please try again."
	}
}
