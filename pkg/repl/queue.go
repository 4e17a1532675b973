package repl

import (
	"fmt"
	"sync"

	"github.com/aretw0/scribe/pkg/domain"
)

// Queue is a mutex-guarded FIFO of requests awaiting a frame.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// Push appends v.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Pop removes the oldest item. Popping an empty queue means stdout produced a
// frame nobody asked for and returns an error wrapping domain.ErrProtocolDesync.
func (q *Queue[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, fmt.Errorf("%w: frame closed with no pending request", domain.ErrProtocolDesync)
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, nil
}

// Drain removes and returns every item in order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
