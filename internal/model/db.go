package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/schema"
)

// Environments recognised by destructive operations.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Observer receives one call per model operation. internal/metrics
// provides a Prometheus implementation.
type Observer interface {
	ObserveOperation(model, op, outcome string, elapsed time.Duration)
	ObserveScan(model string, scanned, matched int)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, string, time.Duration) {}
func (nopObserver) ObserveScan(string, int, int)                           {}

// DB is the model registry bound to one key-value store.
//
// There is no package-level registry: callers create a DB, register models
// on it and pass it where it is needed.
type DB struct {
	kv       KV
	env      string
	logger   *slog.Logger
	clock    Clock
	ids      IDGenerator
	observer Observer

	mu      sync.RWMutex
	models  map[string]*Model
	schemas map[*schema.Schema]string
}

// DBOption configures a DB.
type DBOption func(*DB)

// WithEnvironment sets the environment name that guards DestroyAll and
// Drop. Defaults to "production".
func WithEnvironment(env string) DBOption {
	return func(db *DB) {
		if env != "" {
			db.env = env
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DBOption {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithClock sets the timestamp source. Defaults to SystemClock.
func WithClock(c Clock) DBOption {
	return func(db *DB) {
		if c != nil {
			db.clock = c
		}
	}
}

// WithIDGenerator sets the id source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) DBOption {
	return func(db *DB) {
		if g != nil {
			db.ids = g
		}
	}
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) DBOption {
	return func(db *DB) {
		if o != nil {
			db.observer = o
		}
	}
}

// NewDB creates a registry over kv.
func NewDB(kv KV, opts ...DBOption) *DB {
	db := &DB{
		kv:       kv,
		env:      EnvProduction,
		logger:   slog.Default(),
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		observer: nopObserver{},
		models:   make(map[string]*Model),
		schemas:  make(map[*schema.Schema]string),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Environment returns the configured environment name.
func (db *DB) Environment() string {
	return db.env
}

// Development reports whether destructive operations are allowed.
func (db *DB) Development() bool {
	return db.env == EnvDevelopment
}

// KV returns the underlying store.
func (db *DB) KV() KV {
	return db.kv
}

// ValidName reports whether name can be used as a model name. Names are
// non-empty and contain no "-", since the text after the last "-" of a
// store key is the model name.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, "-") && strings.TrimSpace(name) == name
}

// Model registers s under name and returns the bound Model.
//
// Errors:
//   - INVALID_MODEL: empty or malformed name, or nil schema
//   - DUPLICATE_SCHEMA: name already registered, or s already bound to
//     another model (ErrSchemaShared)
func (db *DB) Model(name string, s *schema.Schema) (*Model, error) {
	if s == nil || !ValidName(name) {
		return nil, &Error{
			Code:    ErrCodeInvalidModel,
			Model:   name,
			Message: "model creation requires a valid schema and a name without '-'",
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.models[name]; taken {
		return nil, &Error{
			Code:    ErrCodeDuplicateSchema,
			Model:   name,
			Message: fmt.Sprintf("cannot create duplicate schema %s", name),
		}
	}
	if other, bound := db.schemas[s]; bound {
		return nil, &Error{
			Code:    ErrCodeDuplicateSchema,
			Model:   name,
			Message: fmt.Sprintf("schema is used by model %s", other),
			Err:     ErrSchemaShared,
		}
	}

	m := newModel(db, name, s)
	db.models[name] = m
	db.schemas[s] = name

	db.logger.Debug("model registered", "model", name, "fields", len(s.Fields()))
	return m, nil
}

// Lookup returns a registered model.
func (db *DB) Lookup(name string) (*Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[name]
	return m, ok
}

// Models returns registered model names, sorted.
func (db *DB) Models() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.models))
	for name := range db.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes every row in the store, across all models. Like
// DestroyAll it only runs in the development environment.
func (db *DB) Drop(ctx context.Context) error {
	start := time.Now()
	err := db.drop(ctx)
	db.observer.ObserveOperation("", "drop", Outcome(err), time.Since(start))
	return err
}

func (db *DB) drop(ctx context.Context) error {
	if !db.Development() {
		db.logger.Warn("drop refused", "env", db.env)
		return NewGuardedError("", "drop", db.env)
	}

	if d, ok := db.kv.(Dropper); ok {
		if err := d.Drop(ctx); err != nil {
			return storeError("", "drop", err)
		}
		db.logger.Info("database dropped")
		return nil
	}

	var keys []string
	db.kv.ForEach(func(key string, _ ir.Object) bool {
		keys = append(keys, key)
		return true
	})
	if err := removeAll(ctx, db.kv, keys); err != nil {
		return storeError("", "drop", err)
	}
	db.logger.Info("database dropped", "rows", len(keys))
	return nil
}

// Close forgets every registered model and closes the store when it
// implements io.Closer.
func (db *DB) Close() error {
	db.mu.Lock()
	db.models = make(map[string]*Model)
	db.schemas = make(map[*schema.Schema]string)
	db.mu.Unlock()

	if c, ok := db.kv.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

// removeAll removes keys and waits for every delete to commit. The first
// error is returned.
func removeAll(ctx context.Context, kv KV, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(len(keys))
	for _, key := range keys {
		kv.Remove(key, func(err error) {
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return firstErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
