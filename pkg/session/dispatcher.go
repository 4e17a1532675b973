package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/logging"
)

// Source is the part of scribe.Notebook a Dispatcher drives.
type Source interface {
	Evaluate(index int) error
	EvaluateAll() (int, error)
	Results() <-chan scribe.Result
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver registers fn to be called with every result, in order, on the
// dispatcher goroutine.
func WithObserver(fn func(scribe.Result)) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observers = append(d.observers, fn)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Pending holds the results of one submission, in submission order.
type Pending []<-chan scribe.Result

// Wait blocks until every result arrived or ctx is done. When the notebook is
// closed first it returns the results received so far and scribe.ErrClosed.
func (p Pending) Wait(ctx context.Context) ([]scribe.Result, error) {
	out := make([]scribe.Result, 0, len(p))
	for _, ch := range p {
		select {
		case res, ok := <-ch:
			if !ok {
				return out, scribe.ErrClosed
			}
			out = append(out, res)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

// Dispatcher routes notebook results back to their submitters.
type Dispatcher struct {
	src       Source
	logger    *slog.Logger
	observers []func(scribe.Result)

	mu      sync.Mutex
	waiters []chan scribe.Result
	closed  bool
	done    chan struct{}
}

// NewDispatcher starts reading src.Results. It stops when that channel is closed.
func NewDispatcher(src Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:    src,
		logger: logging.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Submit evaluates the fragment at index.
func (d *Dispatcher) Submit(index int) (Pending, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, scribe.ErrClosed
	}
	if err := d.src.Evaluate(index); err != nil {
		return nil, err
	}
	return d.expectLocked(1), nil
}

// SubmitAll evaluates every executable fragment. On a partial failure the
// results of the submitted fragments are still awaited and the error is returned.
func (d *Dispatcher) SubmitAll() (Pending, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, scribe.ErrClosed
	}
	n, err := d.src.EvaluateAll()
	return d.expectLocked(n), err
}

// Outstanding returns the number of results still expected.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}

// Done is closed when the result stream ends.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) expectLocked(n int) Pending {
	p := make(Pending, n)
	for i := range p {
		ch := make(chan scribe.Result, 1)
		d.waiters = append(d.waiters, ch)
		p[i] = ch
	}
	return p
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for res := range d.src.Results() {
		d.mu.Lock()
		var waiter chan scribe.Result
		if len(d.waiters) > 0 {
			waiter = d.waiters[0]
			d.waiters = d.waiters[1:]
		}
		d.mu.Unlock()

		if waiter != nil {
			waiter <- res
		} else {
			d.logger.Debug("Result without waiter", "index", res.Index)
		}
		for _, fn := range d.observers {
			fn(res)
		}
	}

	d.mu.Lock()
	d.closed = true
	for _, ch := range d.waiters {
		close(ch)
	}
	d.waiters = nil
	d.mu.Unlock()
}
