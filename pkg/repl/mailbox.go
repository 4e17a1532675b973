package repl

import (
	"sync"

	"github.com/aretw0/scribe/pkg/domain"
)

type delivery[M any] struct {
	req *request[M]
	rec domain.OutputRecord[M]
}

// mailbox is an unbounded FIFO drained by one dispatcher goroutine, so the
// stream watchers never block on a slow handler.
type mailbox[M any] struct {
	handler Handler[M]
	finish  func(*request[M], domain.OutputRecord[M]) domain.OutputRecord[M]

	mu     sync.Mutex
	items  []delivery[M]
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newMailbox[M any](handler Handler[M], finish func(*request[M], domain.OutputRecord[M]) domain.OutputRecord[M]) *mailbox[M] {
	return &mailbox[M]{
		handler: handler,
		finish:  finish,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (m *mailbox[M]) push(req *request[M], rec domain.OutputRecord[M]) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.items = append(m.items, delivery[M]{req: req, rec: rec})
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox[M]) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// close stops accepting items; run still delivers what was queued before.
func (m *mailbox[M]) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox[M]) wait() {
	<-m.done
}

func (m *mailbox[M]) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		items := m.items
		m.items = nil
		closed := m.closed
		m.mu.Unlock()

		for _, it := range items {
			m.handler(m.finish(it.req, it.rec))
		}
		if len(items) > 0 {
			continue
		}
		if closed {
			return
		}
		<-m.wake
	}
}
