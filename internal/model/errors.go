package model

import (
	"errors"
	"fmt"

	"github.com/roach88/docket/internal/validate"
)

// Error represents a model operation failure that is not a validation
// failure. Validation failures are returned as validate.Errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Model is the model name, when known.
	Model string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes model errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a query matched no record where one was
	// required (FindOne, Update, Destroy).
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDuplicateSchema indicates a model name is already registered,
	// or a schema is already bound to another model.
	ErrCodeDuplicateSchema ErrorCode = "DUPLICATE_SCHEMA"

	// ErrCodeInvalidModel indicates a bad model name or a missing schema.
	ErrCodeInvalidModel ErrorCode = "INVALID_MODEL"

	// ErrCodeGuarded indicates a destructive operation outside the
	// development environment.
	ErrCodeGuarded ErrorCode = "GUARDED"

	// ErrCodeMissingID indicates a create without an id on a schema that
	// does not generate them.
	ErrCodeMissingID ErrorCode = "MISSING_ID"

	// ErrCodeDuplicateID indicates a create whose id is already stored,
	// soft-deleted rows included.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeStore indicates the key-value store rejected a write.
	ErrCodeStore ErrorCode = "STORE"
)

// ErrSchemaShared is the cause of a DUPLICATE_SCHEMA error raised when one
// schema instance is registered under a second model name.
var ErrSchemaShared = errors.New("schema is already bound to another model")

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Model != "" {
		return fmt.Sprintf("%s: %s (model=%s)", e.Code, msg, e.Model)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND model error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsGuarded reports whether err is a GUARDED model error.
func IsGuarded(err error) bool {
	return hasCode(err, ErrCodeGuarded)
}

// IsDuplicateSchema reports whether err is a DUPLICATE_SCHEMA model error.
func IsDuplicateSchema(err error) bool {
	return hasCode(err, ErrCodeDuplicateSchema)
}

// IsDuplicateID reports whether err is a DUPLICATE_ID model error.
func IsDuplicateID(err error) bool {
	return hasCode(err, ErrCodeDuplicateID)
}

// IsValidation reports whether err carries field validation errors.
func IsValidation(err error) bool {
	_, ok := validate.AsErrors(err)
	return ok
}

// Outcome classifies err for metrics and logs: "ok", "validation", or the
// lower-case model error code. Anything else is "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if IsValidation(err) {
		return "validation"
	}
	var me *Error
	if errors.As(err, &me) {
		switch me.Code {
		case ErrCodeNotFound:
			return "not_found"
		case ErrCodeDuplicateSchema:
			return "duplicate_schema"
		case ErrCodeInvalidModel:
			return "invalid_model"
		case ErrCodeGuarded:
			return "guarded"
		case ErrCodeMissingID:
			return "missing_id"
		case ErrCodeDuplicateID:
			return "duplicate_id"
		case ErrCodeStore:
			return "store"
		}
	}
	return "error"
}

// NewNotFoundError creates a NOT_FOUND error for model.
func NewNotFoundError(model, where string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Model:   model,
		Message: fmt.Sprintf("no record matches %s", where),
	}
}

// NewGuardedError creates a GUARDED error for an operation attempted in env.
func NewGuardedError(model, op, env string) *Error {
	return &Error{
		Code:    ErrCodeGuarded,
		Model:   model,
		Message: fmt.Sprintf("%s requires the %q environment (current %q)", op, EnvDevelopment, env),
	}
}

func storeError(model, op string, err error) *Error {
	return &Error{
		Code:    ErrCodeStore,
		Model:   model,
		Message: op,
		Err:     err,
	}
}
