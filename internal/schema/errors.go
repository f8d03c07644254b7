package schema

import (
	"errors"
	"fmt"
)

// SchemaError reports a malformed schema. It is returned by New and never
// recovered from.
type SchemaError struct {
	// Field is the offending declaration, empty for schema-wide problems.
	Field string

	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("schema: %s", e.Message)
}

// IsSchemaError reports whether err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func schemaErrorf(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Message: fmt.Sprintf(format, args...)}
}
