package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/docket/internal/ir"
)

// Get returns a copy of the row stored under key.
func (s *Store) Get(key string) (ir.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.rows[key]
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// Size returns the number of rows.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// ForEach calls fn for every row in key order until fn returns false.
// fn runs on a snapshot taken at the start of the scan, so it may call
// Set or Remove.
func (s *Store) ForEach(fn func(key string, value ir.Object) bool) {
	type entry struct {
		key string
		obj ir.Object
	}

	s.mu.RLock()
	entries := make([]entry, 0, len(s.rows))
	for k, obj := range s.rows {
		entries = append(entries, entry{key: k, obj: obj})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	for _, e := range entries {
		if !fn(e.key, e.obj.Clone()) {
			return
		}
	}
}

// Set stores value under key. The row is visible to readers on return;
// done, if non-nil, is called exactly once after the write commits or
// fails.
func (s *Store) Set(key string, value ir.Object, done func(error)) {
	done = once(done)

	data, err := s.codec.Marshal(value)
	if err != nil {
		done(fmt.Errorf("set %q: %w", key, err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(ErrClosed)
		return
	}
	defer s.mu.Unlock()

	// Enqueue under the lock so queue order matches seq order.
	s.rows[key] = value.Clone()
	seq := s.nextSeq
	s.nextSeq++
	s.enqueue(writeOp{
		kind:  opSet,
		key:   key,
		data:  data,
		codec: s.codec.Name(),
		seq:   seq,
		done:  done,
	})
}

// Remove deletes key. Removing a missing key is not an error.
// done, if non-nil, is called exactly once after the delete commits or
// fails.
func (s *Store) Remove(key string, done func(error)) {
	done = once(done)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(ErrClosed)
		return
	}
	defer s.mu.Unlock()

	delete(s.rows, key)
	s.enqueue(writeOp{kind: opRemove, key: key, done: done})
}

// Flush blocks until every write submitted before the call has committed.
func (s *Store) Flush(ctx context.Context) error {
	return s.await(ctx, func(done func(error)) {
		s.enqueue(writeOp{kind: opBarrier, done: done})
	})
}

// Drop removes every row and waits for the delete to commit.
func (s *Store) Drop(ctx context.Context) error {
	return s.await(ctx, func(done func(error)) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			done(ErrClosed)
			return
		}
		n := len(s.rows)
		s.rows = make(map[string]ir.Object)
		s.enqueue(writeOp{kind: opDrop, done: done})
		s.mu.Unlock()

		s.logger.Info("store dropped", "path", s.path, "rows", n)
	})
}

// await submits a write and blocks on its completion or ctx.
func (s *Store) await(ctx context.Context, submit func(done func(error))) error {
	result := make(chan error, 1)
	submit(once(func(err error) { result <- err }))

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) enqueue(op writeOp) {
	if !s.queue.Enqueue(op) {
		op.done(ErrClosed)
	}
}

// runWriter applies queued writes in order until the queue is closed and
// drained.
func (s *Store) runWriter() {
	defer close(s.writerDone)

	for {
		for {
			op, ok := s.queue.TryDequeue()
			if !ok {
				break
			}
			op.done(s.apply(op))
		}

		if _, open := <-s.queue.Wait(); !open {
			for {
				op, ok := s.queue.TryDequeue()
				if !ok {
					return
				}
				op.done(s.apply(op))
			}
		}
	}
}

// apply performs one write against SQLite.
func (s *Store) apply(op writeOp) error {
	ctx := context.Background()

	var err error
	switch op.kind {
	case opSet:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO documents (key, value, codec, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				codec = excluded.codec,
				seq = excluded.seq
		`, op.key, op.data, op.codec, op.seq)
	case opRemove:
		_, err = s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, op.key)
	case opDrop:
		_, err = s.db.ExecContext(ctx, `DELETE FROM documents`)
	case opBarrier:
		return nil
	default:
		err = fmt.Errorf("unknown write kind %d", op.kind)
	}

	if err != nil {
		s.logger.Error("store write failed", "op", op.kind.String(), "key", op.key, "error", err)
		return fmt.Errorf("%s %q: %w", op.kind, op.key, err)
	}
	s.logger.Debug("store write", "op", op.kind.String(), "key", op.key, "seq", op.seq)
	return nil
}

// once wraps done so it runs at most one time. A nil done becomes a no-op.
func once(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	var o sync.Once
	return func(err error) {
		o.Do(func() { done(err) })
	}
}
