// Package store provides the SQLite-backed key-value store docket records
// live in.
//
// The store keeps every row in memory and persists through SQLite:
//   - Get, ForEach and Size read the in-memory row set synchronously
//   - Set and Remove update memory at once and queue the SQLite write
//   - a single writer goroutine applies queued writes in order and then
//     invokes the caller's done callback exactly once
//
// # Ordering
//
// Every write takes the next value of a logical sequence. Rows are loaded
// in (seq, key) order and ForEach visits keys in sorted order, so scans are
// deterministic across runs.
//
// # Row Codecs
//
// Rows are encoded with a Codec. JSON rows use canonical JSON; msgpack rows
// keep temporal values as native timestamps. The codec name is stored with
// each row, so a database may hold both.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Open(ctx, ":memory:") gives a private, throwaway store for tests.
package store
