package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/docket/internal/schema"
)

// LoadMode controls how errors are handled while compiling many models.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every model and returns all errors.
	LoadModeCollectAll
)

// Option configures compilation.
type Option func(*options)

type options struct {
	mode  LoadMode
	extra map[string][]schema.Decl
}

// WithMode sets the error mode. Defaults to LoadModeFailFast.
func WithMode(mode LoadMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithDecls attaches Go-side declarations (virtuals, hooks) to the named
// model.
func WithDecls(model string, decls ...schema.Decl) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = make(map[string][]schema.Decl)
		}
		o.extra[model] = append(o.extra[model], decls...)
	}
}

// Result is the outcome of compiling a set of schema files.
type Result struct {
	Models    []ModelSpec
	FileCount int
}

// Lookup returns the compiled model with the given name.
func (r *Result) Lookup(name string) (ModelSpec, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(filename, src string, opts ...Option) (*Result, []error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileValue(v, opts...)
}

// CompileValue compiles every entry under the top-level "model" field.
func CompileValue(v cue.Value, opts ...Option) (*Result, []error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, []error{&CompileError{Field: "model", Message: "no models declared", Pos: v.Pos()}}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result := &Result{}
	var errs []error
	for iter.Next() {
		spec, err := CompileModel(iter.Value(), o.extra[iter.Label()]...)
		if err != nil {
			errs = append(errs, err)
			if o.mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Models = append(result.Models, *spec)
	}

	if len(result.Models) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{Field: "model", Message: "no models declared", Pos: modelsVal.Pos()})
	}
	return result, errs
}

// LoadDir loads the CUE package in dir and compiles its models.
func LoadDir(dir string, opts ...Option) (*Result, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schemas directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schemas directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result, errs := CompileValue(value, opts...)
	if result != nil {
		result.FileCount = len(files)
	}
	return result, errs
}

// FindCUEFiles returns the .cue files directly in dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadError is a failure to find or load schema files, before any model
// is compiled.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeScanError  = "E002"
	ErrCodeNoFiles    = "E003"
	ErrCodeLoadFailed = "E004"
	ErrCodeNotFound   = "E005"
)
