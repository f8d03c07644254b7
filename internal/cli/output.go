package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/docket/internal/compiler"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/query"
	"github.com/roach88/docket/internal/validate"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation refused: validation, not found, guarded, failed scenarios
	ExitCommandError = 2 // Command error: bad flags, unreadable config or schemas, store failures
)

// CLI error codes. E0xx are input and environment problems, E1xx are
// schema declaration problems (see compiler), E3xx are operation outcomes.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeBadInput     = "E006"
	ErrCodeUnknownModel = "E007"

	ErrCodeValidation  = "E301"
	ErrCodeNotFound    = "E302"
	ErrCodeGuarded     = "E303"
	ErrCodeMissingID   = "E304"
	ErrCodeStore       = "E305"
	ErrCodeSchema      = "E306"
	ErrCodeQuery       = "E307"
	ErrCodeDuplicateID = "E308"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
	ErrCode string // CLI error code, when known

	// Reported is set once the error has been written to the command
	// output, so main does not print it again.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// badInput wraps a malformed flag or file as a command error.
func badInput(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err, ErrCode: ErrCodeBadInput}
}

// IsReported reports whether err was already written to the output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E301", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Emit writes text in text mode and data wrapped in a CLIResponse in
// JSON mode.
func (f *OutputFormatter) Emit(text string, data any) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the matching
// ExitError.
func (f *OutputFormatter) Fail(err error) error {
	code, exit := classify(err)

	var details any
	message := err.Error()
	if verrs, ok := validate.AsErrors(err); ok {
		details = verrs
		if f.Format != "json" {
			message = "validation failed"
			for _, field := range verrs.Fields() {
				for _, fe := range verrs[field] {
					message += fmt.Sprintf("\n  %s: %s", field, fe.Message)
				}
			}
		}
	}

	_ = f.Error(code, message, details)
	return &ExitError{Code: exit, Message: code, Err: err, ErrCode: code, Reported: true}
}

// classify maps an error to its CLI error code and exit code.
func classify(err error) (string, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrCode != "" {
		return exitErr.ErrCode, exitErr.Code
	}
	var le *compiler.LoadError
	if errors.As(err, &le) {
		return le.Code, ExitCommandError
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ErrCodeSchema, ExitCommandError
	}
	if model.IsValidation(err) {
		return ErrCodeValidation, ExitFailure
	}

	var me *model.Error
	if errors.As(err, &me) {
		switch me.Code {
		case model.ErrCodeNotFound:
			return ErrCodeNotFound, ExitFailure
		case model.ErrCodeGuarded:
			return ErrCodeGuarded, ExitFailure
		case model.ErrCodeMissingID:
			return ErrCodeMissingID, ExitFailure
		case model.ErrCodeDuplicateID:
			return ErrCodeDuplicateID, ExitFailure
		case model.ErrCodeStore:
			return ErrCodeStore, ExitCommandError
		default:
			return ErrCodeSchema, ExitCommandError
		}
	}

	if errors.Is(err, query.ErrInvalidPredicate) || errors.Is(err, query.ErrUnknownOperator) {
		return ErrCodeQuery, ExitCommandError
	}

	if exitErr != nil {
		return ErrCodeGeneric, exitErr.Code
	}
	return ErrCodeGeneric, ExitFailure
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
