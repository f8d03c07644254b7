package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docket/internal/async"
	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/query"
	"github.com/roach88/docket/internal/validate"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	UpsertBy string // field matched with update-or-create instead of create
	Workers  int    // overrides the configured worker count
}

// ImportFailure describes one record that was not imported.
type ImportFailure struct {
	Index   int                 `json:"index"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// ImportResult is the summary of an import run.
type ImportResult struct {
	Model    string          `json:"model"`
	Total    int             `json:"total"`
	Imported int             `json:"imported"`
	Failed   int             `json:"failed"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Import a list of records from YAML or JSON",
		Long: `Import a list of records from a YAML or JSON file.

Records are created concurrently, up to the configured number of workers.
With --upsert-by, each record updates the live record whose field has the
same value, or is created when none matches. Records that fail validation
are reported by index; the others are still imported.

Exit codes:
  0 - Every record imported
  1 - One or more records failed
  2 - Command error (unreadable file, unknown model, etc.)

Examples:
  docket import person people.yaml
  docket import person people.json --upsert-by name --workers 4`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.UpsertBy, "upsert-by", "", "field used to match existing records")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent operations (default from config)")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, name, path string) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg, err := opts.resolved()
	if err != nil {
		return formatter.Fail(err)
	}

	docs, err := readRecords(path)
	if err != nil {
		return formatter.Fail(err)
	}

	workers := cfg.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	var result ImportResult
	err = withSession(opts.RootOptions, formatter, cmd.Context(), func(s *Session) error {
		m, err := s.Model(name)
		if err != nil {
			return err
		}
		formatter.VerboseLog("Importing %d %s record(s) with %d worker(s)", len(docs), name, workers)

		result, err = importRecords(cmd, m, docs, opts.UpsertBy, workers)
		return err
	})
	if err != nil {
		return err
	}

	return outputImport(formatter, result)
}

// readRecords decodes a YAML or JSON list of objects.
func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, badInput("failed to read import file", err)
	}
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, badInput(fmt.Sprintf("%s: expected a list of records", path), err)
	}
	return docs, nil
}

// importRecords runs one create or update-or-create per record on an
// async dispatcher and collects the outcomes by index.
func importRecords(cmd *cobra.Command, m *model.Model, docs []map[string]any, upsertBy string, workers int) (ImportResult, error) {
	result := ImportResult{Model: m.Name(), Total: len(docs)}

	var mu sync.Mutex
	record := func(index int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			result.Imported++
			return
		}
		result.Failures = append(result.Failures, importFailure(index, err))
	}

	d := async.New(cmd.Context(), workers, async.WithLogger(slog.Default()))
	am := async.Bind(d, m)

	for i, doc := range docs {
		rec, err := ir.ObjectFrom(doc)
		if err != nil {
			record(i, badInput(fmt.Sprintf("record %d", i), err))
			continue
		}
		rec = m.Schema().Materialize(rec)

		index := i
		done := func(_ *model.Instance, err error) { record(index, err) }

		if upsertBy == "" {
			am.Create(rec, done)
			continue
		}
		key, ok := rec[upsertBy]
		if !ok {
			record(i, badInput(fmt.Sprintf("record %d has no %q field", i, upsertBy), nil))
			continue
		}
		am.UpdateOrCreate(rec, query.M{upsertBy: query.M{"$eq": key}}, done)
	}

	if err := d.Wait(); err != nil {
		return result, err
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Index < result.Failures[j].Index
	})
	result.Failed = len(result.Failures)
	return result, nil
}

func importFailure(index int, err error) ImportFailure {
	code, _ := classify(err)
	f := ImportFailure{Index: index, Code: code, Message: err.Error()}
	if verrs, ok := validate.AsErrors(err); ok {
		f.Fields = make(map[string][]string, len(verrs))
		for _, field := range verrs.Fields() {
			for _, fe := range verrs[field] {
				f.Fields[field] = append(f.Fields[field], fe.Message)
			}
		}
	}
	return f
}

func outputImport(formatter *OutputFormatter, result ImportResult) error {
	var text strings.Builder
	for _, f := range result.Failures {
		fmt.Fprintf(&text, "✗ record %d [%s]: %s\n", f.Index, f.Code, f.Message)
	}
	fmt.Fprintf(&text, "Imported %d of %d %s record(s)\n", result.Imported, result.Total, result.Model)

	if err := formatter.Emit(text.String(), result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d record(s) failed to import", result.Failed),
			ErrCode:  result.Failures[0].Code,
			Reported: true,
		}
	}
	return nil
}
