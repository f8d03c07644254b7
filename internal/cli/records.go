package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/query"
)

// RecordOptions holds the flags shared by the record commands.
type RecordOptions struct {
	*RootOptions
	Data    string // record or patch as a JSON object
	Where   string // predicate as a JSON document
	ID      string // id shorthand for --where '{"id": ...}'
	Limit   int
	Deleted bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a record",
		Long: `Create a record from a JSON object.

Undeclared fields are dropped when the schema forces its shape. Missing
fields take their defaults, the record is validated, and the stored
record is printed.

Examples:
  docket create person --data '{"name": "Ada", "age": 36}'
  docket create person --data '{"id": "ada", "name": "Ada"}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				rec, err := parseRecord(m, opts.Data)
				if err != nil {
					return err
				}
				inst, err := m.Create(cmd.Context(), rec)
				if err != nil {
					return err
				}
				return emitInstance(f, inst)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "record as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <model>",
		Short: "List records matching a predicate",
		Long: `List records matching a MongoDB-style predicate.

Without --where every live record is listed. Soft-deleted records are
skipped unless --deleted is given.

Examples:
  docket find person
  docket find person --where '{"age": {"$gte": 18}}' --limit 10
  docket find person --where '{"$or": [{"name": "Ada"}, {"name": "Linus"}]}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				q, err := parseWhere(f, opts.Where, opts.ID)
				if err != nil {
					return err
				}
				if q == nil {
					q = query.M{}
				}

				var findOpts []model.FindOption
				if opts.Limit > 0 {
					findOpts = append(findOpts, model.Limit(opts.Limit))
				}
				if opts.Deleted {
					findOpts = append(findOpts, model.IncludeDeleted())
				}

				rows, err := m.Find(cmd.Context(), q, findOpts...)
				if err != nil {
					return err
				}
				return emitRows(f, m, rows)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "predicate as a JSON document")
	cmd.Flags().StringVar(&opts.ID, "id", "", "match a single id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&opts.Deleted, "deleted", false, "include soft-deleted records")

	return cmd
}

// NewFindOneCommand creates the find-one command.
func NewFindOneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find-one <model>",
		Short: "Print the first record matching a predicate",
		Long: `Print the first record matching a predicate, or fail with E302 when
nothing matches.

Examples:
  docket find-one person --id 0190a3b2-...
  docket find-one person --where '{"name": "Ada"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				q, err := requireWhere(f, opts)
				if err != nil {
					return err
				}
				var findOpts []model.FindOption
				if opts.Deleted {
					findOpts = append(findOpts, model.IncludeDeleted())
				}
				inst, err := m.FindOne(cmd.Context(), q, findOpts...)
				if err != nil {
					return err
				}
				return emitInstance(f, inst)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "predicate as a JSON document")
	cmd.Flags().StringVar(&opts.ID, "id", "", "match a single id")
	cmd.Flags().BoolVar(&opts.Deleted, "deleted", false, "include soft-deleted records")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <model>",
		Short: "Patch the first record matching a predicate",
		Long: `Merge a JSON patch into the first record matching a predicate.

The merged record is validated as a whole before it is written.

Examples:
  docket update person --where '{"name": "Ada"}' --data '{"age": 37}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				q, err := requireWhere(f, opts)
				if err != nil {
					return err
				}
				patch, err := parseRecord(m, opts.Data)
				if err != nil {
					return err
				}
				inst, err := m.Update(cmd.Context(), patch, q)
				if err != nil {
					return err
				}
				return emitInstance(f, inst)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "patch as a JSON object (required)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "predicate as a JSON document")
	cmd.Flags().StringVar(&opts.ID, "id", "", "match a single id")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// NewDestroyCommand creates the destroy command.
func NewDestroyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "destroy <model>",
		Short: "Destroy the first record matching a predicate",
		Long: `Destroy the first record matching a predicate.

Models with soft delete keep the record and stamp its deleted time;
other models remove it from the store.

Examples:
  docket destroy person --where '{"name": "Ada"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				q, err := requireWhere(f, opts)
				if err != nil {
					return err
				}
				inst, err := m.Destroy(cmd.Context(), q)
				if err != nil {
					return err
				}
				return emitInstance(f, inst)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "predicate as a JSON document")
	cmd.Flags().StringVar(&opts.ID, "id", "", "match a single id")

	return cmd
}

// DestroyAllResult is the JSON payload of destroy-all.
type DestroyAllResult struct {
	Model   string `json:"model"`
	Removed int    `json:"removed"`
}

// NewDestroyAllCommand creates the destroy-all command.
func NewDestroyAllCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "destroy-all <model>",
		Short: "Remove every record of a model (development only)",
		Long: `Remove every record of a model from the store, soft-deleted ones
included. Refused with E303 outside the development environment.

Examples:
  docket destroy-all person --env development`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordCommand(opts, cmd, args[0], func(m *model.Model, f *OutputFormatter) error {
				n, err := m.DestroyAll(cmd.Context())
				if err != nil {
					return err
				}
				return f.Emit(
					fmt.Sprintf("Removed %d %s record(s)\n", n, m.Name()),
					DestroyAllResult{Model: m.Name(), Removed: n},
				)
			})
		},
	}

	return cmd
}

// runRecordCommand resolves the config, opens a session, looks up the
// model and runs fn against it.
func runRecordCommand(opts *RecordOptions, cmd *cobra.Command, name string, fn func(*model.Model, *OutputFormatter) error) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg, err := opts.resolved()
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("Using database %s (env %s)", cfg.Database.Path, cfg.Env)

	return withSession(opts.RootOptions, formatter, cmd.Context(), func(s *Session) error {
		m, err := s.Model(name)
		if err != nil {
			return err
		}
		return fn(m, formatter)
	})
}

// parseWhere turns --where or --id into a query. Both empty yields nil.
// Lint findings are reported in verbose mode.
func parseWhere(f *OutputFormatter, where, id string) (any, error) {
	where = strings.TrimSpace(where)
	switch {
	case where != "" && id != "":
		return nil, badInput("use either --where or --id, not both", nil)
	case id != "":
		return id, nil
	case where == "":
		return nil, nil
	}

	node, err := query.ParseJSON([]byte(where))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, badInput("--where must not be null", nil)
	}
	for _, w := range query.Lint(node).Warnings {
		f.VerboseLog("warning: %s", w)
	}
	return node, nil
}

// requireWhere is parseWhere for commands that target one record.
func requireWhere(f *OutputFormatter, opts *RecordOptions) (any, error) {
	q, err := parseWhere(f, opts.Where, opts.ID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, badInput("one of --where or --id is required", nil)
	}
	return q, nil
}

// parseRecord decodes --data into a record, turning temporal text on
// temporal fields into times.
func parseRecord(m *model.Model, data string) (ir.Object, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, badInput("invalid --data JSON", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, badInput(fmt.Sprintf("--data must be a JSON object, got %s", v.Kind()), nil)
	}
	return m.Schema().Materialize(obj), nil
}

// document is the stored record, bookkeeping fields included, plus
// every virtual.
func document(inst *model.Instance) ir.Object {
	return inst.Record().Merge(inst.View())
}

// emitInstance prints one document: canonical JSON in text mode, wrapped
// in a CLIResponse in JSON mode.
func emitInstance(f *OutputFormatter, inst *model.Instance) error {
	doc := document(inst)
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return err
	}
	return f.Emit(string(data)+"\n", doc)
}

// emitRows prints one canonical JSON line per row.
func emitRows(f *OutputFormatter, m *model.Model, rows []ir.Object) error {
	docs := make(ir.List, len(rows))
	var b strings.Builder
	for i, row := range rows {
		doc := document(m.Wrap(row))
		data, err := ir.MarshalCanonical(doc)
		if err != nil {
			return err
		}
		docs[i] = doc
		b.Write(data)
		b.WriteByte('\n')
	}
	f.VerboseLog("%d %s record(s)", len(rows), m.Name())
	return f.Emit(b.String(), docs)
}
