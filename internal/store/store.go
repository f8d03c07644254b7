package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/docket/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial documents table
// 1 - Added index on documents.seq for ordered loads
const currentSchemaVersion = 1

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrClosed is reported for writes submitted after Close.
var ErrClosed = errors.New("store is closed")

// Store is a durable key-value store of records.
// Reads are served from memory; writes are persisted by a single writer
// goroutine in submission order.
type Store struct {
	db     *sql.DB
	path   string
	codec  Codec
	logger *slog.Logger

	mu      sync.RWMutex
	rows    map[string]ir.Object
	nextSeq int64
	closed  bool

	queue      *writeQueue
	writerDone chan struct{}

	listenMu sync.Mutex
	onLoad   []func(size int)
	onClose  []func()
}

// Option configures a Store.
type Option func(*Store)

// WithCodec selects the codec for rows written by this store.
// Existing rows are read back with the codec they were written with.
func WithCodec(c Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the store logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnLoad registers a listener fired once the initial load completes.
func WithOnLoad(fn func(size int)) Option {
	return func(s *Store) {
		if fn != nil {
			s.onLoad = append(s.onLoad, fn)
		}
	}
}

// WithOnClose registers a listener fired after Close.
func WithOnClose(fn func()) Option {
	return func(s *Store) {
		if fn != nil {
			s.onClose = append(s.onClose, fn)
		}
	}
}

// Open creates or opens a SQLite database at the given path and loads
// every row into memory.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:       path,
		codec:      JSONCodec{},
		logger:     slog.Default(),
		rows:       make(map[string]ir.Object),
		nextSeq:    1,
		queue:      newWriteQueue(),
		writerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time, and an in-memory database lives
	// on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.db = db
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load rows: %w", err)
	}

	go s.runWriter()

	size := s.Size()
	s.logger.Debug("store opened", "path", path, "rows", size, "codec", s.codec.Name())
	for _, fn := range s.onLoad {
		fn(size)
	}

	return s, nil
}

// OnLoad registers a listener for the load event. The store is already
// loaded once Open returns, so fn runs immediately.
func (s *Store) OnLoad(fn func(size int)) {
	fn(s.Size())
}

// OnClose registers a listener fired after Close.
func (s *Store) OnClose(fn func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Codec returns the codec used for new writes.
func (s *Store) Codec() Codec {
	return s.codec
}

// Close drains pending writes, closes the database and fires OnClose
// listeners. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.queue.Close()
	<-s.writerDone

	err := s.db.Close()

	s.listenMu.Lock()
	listeners := append([]func(){}, s.onClose...)
	s.listenMu.Unlock()
	for _, fn := range listeners {
		fn()
	}

	s.logger.Debug("store closed", "path", s.path)
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// load reads every row in (seq, key) order.
func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, codec, seq
		FROM documents
		ORDER BY seq ASC, key ASC COLLATE BINARY
	`)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	codecs := map[string]Codec{}
	for rows.Next() {
		var (
			key  string
			data []byte
			name string
			seq  int64
		)
		if err := rows.Scan(&key, &data, &name, &seq); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}

		codec, ok := codecs[name]
		if !ok {
			codec, err = CodecByName(name)
			if err != nil {
				return fmt.Errorf("document %q: %w", key, err)
			}
			codecs[name] = codec
		}

		obj, err := codec.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("document %q: %w", key, err)
		}
		s.rows[key] = obj
		if seq >= s.nextSeq {
			s.nextSeq = seq + 1
		}
	}
	return rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the seq index used by ordered loads.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_documents_seq
		ON documents(seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
