package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docket/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Models []string                   `json:"models,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schemas-dir]",
		Short: "Validate model schemas without opening the database",
		Long: `Validate the CUE model declarations in a schemas directory.

Compiles every model, then checks declarations that compile but cannot
work as written: bad model names, duplicates, defaults that violate their
own constraints. The directory defaults to the configured schemas path.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.resolved()
			if err != nil {
				return err
			}
			dir := cfg.Schemas
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, errs := compiler.LoadDir(dir, compiler.WithMode(compiler.LoadModeCollectAll))

	var loadErr *compiler.LoadError
	if len(errs) > 0 && errors.As(errs[0], &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return &ExitError{Code: ExitCommandError, Message: loadErr.Error(), ErrCode: loadErr.Code, Reported: true}
	}

	var verrs []compiler.ValidationError
	for _, err := range errs {
		verrs = append(verrs, compileFailure(err))
	}

	var names []string
	if result != nil {
		formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)
		for _, spec := range result.Models {
			formatter.VerboseLog("Validating model: %s", spec.Name)
			names = append(names, spec.Name)
		}
		verrs = append(verrs, compiler.Validate(result.Models)...)
	}

	if len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Models: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ All schemas valid (%d models)\n", len(names))
	return nil
}

// compileFailure turns a compile error into a validation entry.
func compileFailure(err error) compiler.ValidationError {
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		ve := compiler.ValidationError{Field: cerr.Field, Message: cerr.Message, Code: ErrCodeSchema}
		if cerr.Pos.IsValid() {
			ve.Line = cerr.Pos.Line()
		}
		return ve
	}
	return compiler.ValidationError{Field: "schema", Message: err.Error(), Code: ErrCodeSchema}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	exitErr := &ExitError{
		Code:     ExitFailure,
		Message:  fmt.Sprintf("validation failed with %d error(s)", len(errs)),
		ErrCode:  errs[0].Code,
		Reported: true,
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		if err.Model != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s.%s: %s\n\n", err.Code, err.Model, err.Field, err.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return exitErr
}
