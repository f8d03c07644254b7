package store

import "sync"

// opKind distinguishes queued write kinds.
type opKind int

const (
	// opSet upserts one row.
	opSet opKind = iota + 1
	// opRemove deletes one row.
	opRemove
	// opDrop deletes every row.
	opDrop
	// opBarrier writes nothing; its done fires once every earlier op has.
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opSet:
		return "set"
	case opRemove:
		return "remove"
	case opDrop:
		return "drop"
	case opBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// writeOp is one pending SQLite write.
type writeOp struct {
	kind  opKind
	key   string
	data  []byte
	codec string
	seq   int64
	done  func(error)
}

// writeQueue is an unbounded FIFO of pending writes.
//
// Set and Remove enqueue from any goroutine; the writer goroutine is the
// only consumer. The signal channel (buffered, size 1) lets the writer wait
// without polling, and is closed by Close so the writer drains and exits.
type writeQueue struct {
	mu     sync.Mutex
	ops    []writeOp
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{
		ops:    make([]writeOp, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds op to the back of the queue.
// Returns false if the queue is closed.
func (q *writeQueue) Enqueue(op writeOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, op)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front op without blocking.
func (q *writeQueue) TryDequeue() (writeOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return writeOp{}, false
	}

	op := q.ops[0]
	// Release the row bytes and callback held by the backing array.
	q.ops[0] = writeOp{}

	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return op, true
}

// Wait returns a channel that signals when ops may be available.
// The channel is closed once the queue is closed.
func (q *writeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending ops.
func (q *writeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close stops further enqueues and wakes the writer.
func (q *writeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
