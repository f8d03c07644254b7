package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/docket/internal/compiler"
	"github.com/roach88/docket/internal/config"
	"github.com/roach88/docket/internal/metrics"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/store"
)

// Session is an open database with every schema model registered.
type Session struct {
	DB      *model.DB
	Metrics *metrics.Collector

	cfg *config.Config
}

// openSession compiles the schemas, opens the store and registers the
// models. Callers must Close the session.
func openSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	specs, err := loadModels(cfg.Schemas)
	if err != nil {
		return nil, err
	}

	codec, err := store.CodecByName(cfg.Database.Codec)
	if err != nil {
		return nil, badInput("invalid codec", err)
	}

	slog.Debug("opening database", "path", cfg.Database.Path, "codec", codec.Name())
	st, err := store.Open(ctx, cfg.Database.Path, store.WithCodec(codec), store.WithLogger(slog.Default()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	collector := metrics.New()
	db := model.NewDB(st,
		model.WithEnvironment(cfg.Env),
		model.WithLogger(slog.Default()),
		model.WithObserver(collector),
	)

	for _, spec := range specs {
		if _, err := db.Model(spec.Name, spec.Schema); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	slog.Debug("models registered", "models", db.Models(), "rows", st.Size())

	return &Session{DB: db, Metrics: collector, cfg: cfg}, nil
}

// loadModels compiles and checks every model in dir.
func loadModels(dir string) ([]compiler.ModelSpec, error) {
	result, errs := compiler.LoadDir(dir)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := compiler.Validate(result.Models); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, &ExitError{
			Code:    ExitCommandError,
			Message: "invalid schemas",
			Err:     errors.New(strings.Join(msgs, "; ")),
			ErrCode: verrs[0].Code,
		}
	}
	return result.Models, nil
}

// Model looks up a registered model.
func (s *Session) Model(name string) (*model.Model, error) {
	m, ok := s.DB.Lookup(name)
	if !ok {
		return nil, &ExitError{
			Code:    ExitCommandError,
			Message: fmt.Sprintf("unknown model %q (known: %s)", name, strings.Join(s.DB.Models(), ", ")),
			ErrCode: ErrCodeUnknownModel,
		}
	}
	return m, nil
}

// Close writes the metrics file, when configured, and closes the store.
func (s *Session) Close() error {
	var errs []error
	if path := s.cfg.Metrics.File; path != "" {
		if err := s.Metrics.WriteFile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := s.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withSession opens a session for the command, runs fn, and reports any
// error through the formatter.
func withSession(opts *RootOptions, f *OutputFormatter, ctx context.Context, fn func(*Session) error) (err error) {
	sess, err := openSession(ctx, opts.Config)
	if err != nil {
		return f.Fail(err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = f.Fail(WrapExitError(ExitCommandError, "failed to close session", cerr))
		}
	}()

	if err := fn(sess); err != nil {
		if IsReported(err) {
			return err
		}
		return f.Fail(err)
	}
	return nil
}
