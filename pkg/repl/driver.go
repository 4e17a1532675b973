package repl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/observability"
)

// Handler receives every evaluation outcome, one call at a time, in submission order.
type Handler[M any] func(domain.OutputRecord[M])

// Driver evaluates code against one interpreter session at a time.
// M is caller metadata carried opaquely from Evaluate to the handler.
type Driver[M any] struct {
	cfg  Config
	opts options
	echo *regexp.Regexp

	mu     sync.Mutex
	sess   *session[M]
	closed bool

	gen atomic.Uint64
	box *mailbox[M]
}

// New launches the interpreter and starts delivering results to handler.
// A launch failure returns an error wrapping domain.ErrLaunchFailure.
func New[M any](cfg Config, handler Handler[M], opts ...Option) (*Driver[M], error) {
	cfg = cfg.withDefaults()
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("%w: no interpreter command configured", domain.ErrLaunchFailure)
	}
	if strings.Count(cfg.Statement, "%s") != 1 {
		return nil, fmt.Errorf("statement %q must contain exactly one %%s", cfg.Statement)
	}

	d := &Driver[M]{
		cfg:  cfg,
		opts: defaultOptions(),
	}
	for _, opt := range opts {
		opt(&d.opts)
	}
	if cfg.EchoPattern != "" {
		re, err := regexp.Compile(cfg.EchoPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid echo pattern: %w", err)
		}
		d.echo = re
	}
	if handler == nil {
		handler = func(domain.OutputRecord[M]) {}
	}
	d.box = newMailbox(handler, d.finish)

	s, err := d.launch(d.gen.Add(1))
	if err != nil {
		d.box.close()
		return nil, err
	}
	d.sess = s
	go d.box.run()
	return d, nil
}

// Evaluate submits code and returns immediately; the outcome arrives at the handler.
// It fails with domain.ErrInterpreterTerminated while the session is dead and
// domain.ErrDriverClosed after Close.
func (d *Driver[M]) Evaluate(code string, meta M) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.ErrDriverClosed
	}
	if d.sess == nil {
		return domain.ErrInterpreterTerminated
	}
	return d.sess.submit(&request[M]{
		code:      code,
		meta:      meta,
		gen:       d.sess.gen,
		submitted: time.Now(),
	})
}

// Reset terminates the current subprocess, fails every pending request with
// domain.ErrInterpreterTerminated and launches a new session.
func (d *Driver[M]) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.ErrDriverClosed
	}
	return d.replaceLocked("reset", nil)
}

// State reports the lifecycle state of the current session.
func (d *Driver[M]) State() domain.SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.sess == nil {
		return domain.SessionTerminated
	}
	return d.sess.state()
}

// Generation returns the number of the current session; it grows on every relaunch.
func (d *Driver[M]) Generation() uint64 {
	return d.gen.Load()
}

// Pending returns the number of submitted requests that have no outcome yet.
func (d *Driver[M]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return 0
	}
	return d.sess.pending()
}

// Close kills the subprocess, fails pending requests and waits for the
// handler to receive every outstanding outcome. It must not be called from
// the handler itself.
func (d *Driver[M]) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	s := d.sess
	if s != nil {
		written, backlog, _ := s.terminate()
		d.failLocked(written, backlog, nil)
	}
	d.mu.Unlock()

	if s != nil {
		s.waitExit(2 * time.Second)
	}
	d.box.close()
	d.box.wait()
	return nil
}

// restart replaces old after a fault detected on its streams or timer.
// headErr, when set, is the outcome of the oldest written request.
func (d *Driver[M]) restart(old *session[M], reason string, headErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.sess != old {
		return
	}
	if err := d.replaceLocked(reason, headErr); err != nil {
		d.opts.logger.Error("interpreter relaunch failed", "reason", reason, "err", err)
	}
}

func (d *Driver[M]) replaceLocked(reason string, headErr error) error {
	if old := d.sess; old != nil {
		written, backlog, _ := old.terminate()
		d.failLocked(written, backlog, headErr)
	}

	gen := d.gen.Add(1)
	d.opts.metrics.RecordRestart(reason)
	s, err := d.launch(gen)
	if err != nil {
		// The dead session stays in place so Evaluate keeps failing until the next Reset.
		return err
	}
	d.sess = s
	d.opts.logger.Info("interpreter session restarted", "reason", reason, "generation", gen, "pid", s.pid())
	return nil
}

// crashed handles an unexpected exit reported by the session's waiter.
func (d *Driver[M]) crashed(s *session[M], exitErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	written, backlog, ok := s.terminate()
	if !ok {
		// Killed on purpose by Reset, a restart or Close.
		return
	}
	d.opts.logger.Warn("interpreter exited unexpectedly",
		"generation", s.gen, "pending", len(written)+len(backlog), "err", exitErr)
	d.failLocked(written, backlog, nil)
}

// failLocked delivers cancellation outcomes for requests that will never get a frame.
func (d *Driver[M]) failLocked(written, backlog []*request[M], headErr error) {
	for i, req := range written {
		err := domain.ErrInterpreterTerminated
		if i == 0 && headErr != nil {
			err = headErr
		}
		d.box.push(req, domain.OutputRecord[M]{Metadata: req.meta, Generation: req.gen, Err: err})
	}
	for _, req := range backlog {
		d.box.push(req, domain.OutputRecord[M]{Metadata: req.meta, Generation: req.gen, Err: domain.ErrInterpreterTerminated})
	}
}

// finish runs on the dispatcher just before the handler; it enforces the
// generation rule and records metrics.
func (d *Driver[M]) finish(req *request[M], rec domain.OutputRecord[M]) domain.OutputRecord[M] {
	if rec.Err == nil && rec.Generation != d.gen.Load() {
		rec = domain.OutputRecord[M]{
			Metadata:   rec.Metadata,
			Generation: rec.Generation,
			Err:        domain.ErrInterpreterTerminated,
		}
	}
	d.opts.metrics.RecordEvaluation(outcome(rec), time.Since(req.submitted))
	return rec
}

func outcome[M any](rec domain.OutputRecord[M]) string {
	switch {
	case rec.Err == nil && rec.HasStderr():
		return observability.OutcomeStderr
	case rec.Err == nil:
		return observability.OutcomeOK
	case errors.Is(rec.Err, domain.ErrEvaluationTimeout):
		return observability.OutcomeTimeout
	case errors.Is(rec.Err, domain.ErrInterpreterTerminated):
		return observability.OutcomeTerminated
	}
	return observability.OutcomeCancelled
}
