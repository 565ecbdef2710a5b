// Package frameio implements the bounded, overwrite-oldest queue of
// serialised text frames, and the single writer goroutine that drains
// it onto the outbound text channel.
package frameio

import (
	"sync"

	"github.com/sweetshark/capture-sidecar/internal/logging"
	"github.com/sweetshark/capture-sidecar/internal/protocol"
)

var log = logging.L("frameio")

// DefaultCapacity is used when a caller does not override it from config.
const DefaultCapacity = 100

// Queue is a bounded FIFO of already-serialised lines. Producers never
// block: once length reaches capacity, push drops the oldest entry
// before inserting the new one. Consumers block in Pop until a line is
// available or the queue is closed.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	items    []string
	closed   bool
}

// NewQueue creates a queue with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues line, dropping the oldest entry first if the queue is
// already at capacity. Silently drops the input if the queue is closed.
func (q *Queue) Push(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
	}
	q.items = append(q.items, line)
	q.cond.Signal()
}

// Pop blocks until a line is available, returning it and true, or
// returns ("", false) once the queue is closed and drained.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return "", false
	}

	line := q.items[0]
	q.items = q.items[1:]
	return line, true
}

// Close marks the queue closed and wakes every waiter. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current number of buffered lines, for tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RunWriter drains q onto w until the queue closes, one line per
// iteration. Intended to run in its own goroutine for the lifetime of
// the process.
func RunWriter(q *Queue, w *protocol.Writer) {
	for {
		line, ok := q.Pop()
		if !ok {
			return
		}
		if err := w.WriteLine(line); err != nil {
			log.Warn("text frame write failed", "error", err)
		}
	}
}
