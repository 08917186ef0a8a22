// Package apperr defines the error kinds the API surfaces to clients.
package apperr

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Kind is the stable text code a client can switch on.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindNoOpTransition     Kind = "NOOP_TRANSITION"
	KindDuplicate          Kind = "DUPLICATE_RESOURCE"
	KindNotificationFailed Kind = "NOTIFICATION_FAILED"
	KindInternal           Kind = "INTERNAL_ERROR"
)

type classification struct {
	category goerrors.Category
	code     int
}

var kinds = map[Kind]classification{
	KindNotFound:           {goerrors.CategoryNotFound, goerrors.CodeNotFound},
	KindUnauthorized:       {goerrors.CategoryAuth, goerrors.CodeUnauthorized},
	KindForbidden:          {goerrors.CategoryAuthz, goerrors.CodeForbidden},
	KindValidation:         {goerrors.CategoryValidation, goerrors.CodeBadRequest},
	KindInvalidTransition:  {goerrors.CategoryBadInput, goerrors.CodeBadRequest},
	KindNoOpTransition:     {goerrors.CategoryBadInput, goerrors.CodeBadRequest},
	KindDuplicate:          {goerrors.CategoryConflict, goerrors.CodeBadRequest},
	KindNotificationFailed: {goerrors.CategoryExternal, goerrors.CodeBadRequest},
	KindInternal:           {goerrors.CategoryInternal, goerrors.CodeInternal},
}

type richError = goerrors.Error

// Error is a client-facing error. Source keeps the underlying cause for logs.
type Error struct {
	*richError
}

func newError(kind Kind, message string) *Error {
	class, ok := kinds[kind]
	if !ok {
		class = kinds[KindInternal]
	}
	return &Error{
		richError: goerrors.New(message, class.category).
			WithTextCode(string(kind)).
			WithCode(class.code),
	}
}

func (e *Error) Error() string {
	if e.Source != nil {
		return e.Message + ": " + e.Source.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Source
}

// Kind returns the text code the error was created with.
func (e *Error) Kind() Kind {
	return Kind(e.TextCode)
}

// Is matches on Kind so callers can write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.richError == nil {
		return false
	}
	return t.Kind() == e.Kind()
}

// As exposes the underlying go-errors value so IsCategory and friends see it.
func (e *Error) As(target any) bool {
	if t, ok := target.(**goerrors.Error); ok {
		*t = e.richError
		return true
	}
	return false
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	if e.Code == 0 {
		return goerrors.CodeInternal
	}
	return e.Code
}

// Fields returns the per-field validation messages, if any.
func (e *Error) Fields() map[string]string {
	if len(e.ValidationErrors) == 0 {
		return nil
	}
	return e.ValidationMap()
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = newError(KindNotFound, "")
	ErrUnauthorized       = newError(KindUnauthorized, "")
	ErrForbidden          = newError(KindForbidden, "")
	ErrValidation         = newError(KindValidation, "")
	ErrInvalidTransition  = newError(KindInvalidTransition, "")
	ErrNoOpTransition     = newError(KindNoOpTransition, "")
	ErrDuplicate          = newError(KindDuplicate, "")
	ErrNotificationFailed = newError(KindNotificationFailed, "")
	ErrInternal           = newError(KindInternal, "")
)

func NotFound(entity string) *Error {
	return newError(KindNotFound, entity+" not found")
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "could not validate credentials"
	}
	return newError(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "permission denied"
	}
	return newError(KindForbidden, message)
}

func Validation(message string, fields map[string]string) *Error {
	class := kinds[KindValidation]
	return &Error{
		richError: goerrors.NewValidationFromMap(message, fields).
			WithTextCode(string(KindValidation)).
			WithCode(class.code),
	}
}

func InvalidTransition(entity, from, to string) *Error {
	return newError(KindInvalidTransition,
		fmt.Sprintf("%s status cannot be changed from %s to %s", entity, from, to))
}

// RequiresStatus reports an operation attempted outside the status it is allowed in.
func RequiresStatus(entity, want, current string) *Error {
	return newError(KindInvalidTransition,
		fmt.Sprintf("%s is not in %s status, current status: %s", entity, want, current))
}

func NoOpTransition(entity, status string) *Error {
	return newError(KindNoOpTransition, fmt.Sprintf("%s status is already %s", entity, status))
}

func Duplicate(resource string) *Error {
	return newError(KindDuplicate, resource+" already exists")
}

func NotificationFailed(err error) *Error {
	e := newError(KindNotificationFailed, "failed to send notification")
	e.Source = err
	return e
}

func Internal(err error) *Error {
	e := newError(KindInternal, "internal server error")
	e.Source = err
	return e
}

// From returns err as an *Error, wrapping anything unknown as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if goerrors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
