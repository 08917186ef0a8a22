package service

import (
	"context"
	"errors"
	"regexp"

	"crm/internal/apperr"
	"crm/internal/audit"
	"crm/internal/auth"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecorder accepts audit entries without blocking the caller.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry)
}

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// lookupErr converts a repository lookup error into NotFound or Internal.
func lookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Internal(err)
}

// writeErr reports a unique index violation as Duplicate.
func writeErr(err error, resource string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Duplicate(resource)
	}
	return apperr.Internal(err)
}

// validationErr converts ozzo-validation errors into a field map.
func validationErr(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		flattenErrors("", fieldErrs, fields)
		return apperr.Validation("validation failed", fields)
	}
	return apperr.Validation(err.Error(), nil)
}

func flattenErrors(prefix string, errs validation.Errors, out map[string]string) {
	for field, err := range errs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenErrors(key, nested, out)
			continue
		}
		out[key] = err.Error()
	}
}

func actorID(actor *auth.Identity) *uuid.UUID {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}

// emptyToNil normalizes optional text so "" is stored as NULL.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
