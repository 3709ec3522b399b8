// Package apperror defines the error taxonomy shared by the REST handlers,
// the service layer and the gateway.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuthentication     Kind = "authentication_failure"
	KindNotFound           Kind = "not_found"
	KindPermissionDenied   Kind = "permission_denied"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindInvariantViolation Kind = "invariant_violation"
	KindConflict           Kind = "conflict"
	KindBadRequest         Kind = "bad_request"
	KindInvalidState       Kind = "invalid_state"
	KindInternal           Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error { return New(KindAuthentication, message) }

func NotFound(resource string) *Error { return New(KindNotFound, resource+" not found") }

func Forbidden(message string) *Error { return New(KindPermissionDenied, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func BadRequest(message string) *Error { return New(KindBadRequest, message) }

func InvalidState(message string) *Error { return New(KindInvalidState, message) }

func Unavailable(op string, err error) *Error {
	return Wrap(KindStoreUnavailable, op, err)
}

func Invariant(message string) *Error { return New(KindInvariantViolation, message) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the structured error sent to clients over REST and the gateway.
type Body struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Payload converts err into a client facing body. Causes of internal kinds
// are not exposed.
func Payload(err error) Body {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return Body{Kind: KindInternal, Message: "internal error"}
	}

	body := Body{Kind: appErr.Kind, Message: appErr.Message}

	var fieldErr *FieldErrors
	if errors.As(err, &fieldErr) {
		body.Fields = fieldErr.Fields
	}
	return body
}

// FieldErrors carries per field validation failures, keyed by field name.
type FieldErrors struct {
	Fields map[string]string
}

func (e *FieldErrors) Error() string {
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

func Validation(fields map[string]string) *Error {
	return Wrap(KindBadRequest, "validation failed", &FieldErrors{Fields: fields})
}
