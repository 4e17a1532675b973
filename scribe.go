package scribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/scribe/internal/config"
	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/adapters/chroma"
	"github.com/aretw0/scribe/pkg/adapters/process"
	"github.com/aretw0/scribe/pkg/adapters/redis"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/highlight"
	"github.com/aretw0/scribe/pkg/observability"
	"github.com/aretw0/scribe/pkg/ports"
	"github.com/aretw0/scribe/pkg/repl"
)

var (
	// ErrNoFragment is returned for an index or offset outside the document.
	ErrNoFragment = errors.New("no such fragment")
	// ErrNotExecutable is returned for fragments whose language is not configured to run.
	ErrNotExecutable = errors.New("fragment language is not executable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("notebook closed")
)

// Cell is the metadata attached to every evaluation: the fragment as it was
// when it was submitted.
type Cell struct {
	Index    int             `json:"index"`
	Fragment domain.Fragment `json:"fragment"`
}

// Result is published on Notebook.Results for every submitted evaluation.
type Result struct {
	Cell
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr,omitempty"`
	Generation uint64 `json:"generation"`
	Err        error  `json:"-"`
}

// Failed reports whether the evaluation was dropped by the driver.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notebook) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Notebook) {
		n.metrics = m
	}
}

// WithTokenizer bypasses the tokenizer named in the configuration.
func WithTokenizer(t ports.Tokenizer) Option {
	return func(n *Notebook) {
		n.tokenizer = t
	}
}

// WithStore sets the persistent token store, bypassing the Redis settings.
func WithStore(s ports.TokenStore) Option {
	return func(n *Notebook) {
		n.store = s
	}
}

// WithResultBuffer sets the capacity of the Results channel.
func WithResultBuffer(size int) Option {
	return func(n *Notebook) {
		if size >= 0 {
			n.bufferSize = size
		}
	}
}

// WithDriverOptions forwards options to the interpreter driver.
func WithDriverOptions(opts ...repl.Option) Option {
	return func(n *Notebook) {
		n.driverOpts = append(n.driverOpts, opts...)
	}
}

// Notebook ties a markdown document to an interpreter session and a highlighter.
//
// The interpreter is launched on the first evaluation, so a notebook that is
// only highlighted never starts a subprocess.
type Notebook struct {
	cfg        config.Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	tokenizer  ports.Tokenizer
	store      ports.TokenStore
	driverOpts []repl.Option
	bufferSize int

	doc         *document.Document
	highlighter *highlight.Highlighter
	closers     []io.Closer

	mu      sync.Mutex
	driver  *repl.Driver[Cell]
	closed  bool
	results chan Result
	done    chan struct{}
}

// New wires a Notebook from cfg.
func New(cfg config.Config, opts ...Option) (*Notebook, error) {
	n := &Notebook{
		cfg:        cfg,
		logger:     logging.NewNop(),
		bufferSize: 64,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	// 1. Tokenizer
	if n.tokenizer == nil {
		t, err := newTokenizer(cfg.Highlight, n.logger)
		if err != nil {
			return nil, err
		}
		n.tokenizer = t
	}

	// 2. Persistent store
	if n.store == nil && cfg.Redis.Addr != "" {
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		n.store = rs
		n.closers = append(n.closers, rs)
	}

	// 3. Highlighter
	cache, err := highlight.NewCache(cfg.Highlight.CacheEntries, cfg.Highlight.CacheBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight cache: %w", err)
	}
	hopts := []highlight.Option{
		highlight.WithCache(cache),
		highlight.WithDelimiter(cfg.Highlight.Delimiter),
		highlight.WithLogger(n.logger),
		highlight.WithMetrics(n.metrics),
	}
	if n.store != nil {
		hopts = append(hopts, highlight.WithStore(n.store))
	}
	n.highlighter = highlight.New(n.tokenizer, hopts...)

	// 4. Document
	n.doc = document.New(document.WithExecutable(cfg.Languages.Executable...))
	n.results = make(chan Result, n.bufferSize)

	return n, nil
}

func newTokenizer(cfg config.HighlightConfig, logger *slog.Logger) (ports.Tokenizer, error) {
	var aliases []chroma.Option
	for language, lexer := range cfg.Aliases {
		aliases = append(aliases, chroma.WithAlias(language, lexer))
	}
	lexers := chroma.New(aliases...)
	switch cfg.Tokenizer {
	case "", "chroma":
		return lexers, nil
	case "process":
		registry, err := process.LoadTokenizers(cfg.TokenizersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load tokenizers: %w", err)
		}
		return process.NewTokenizer(
			process.WithLogger(logger),
			process.WithRegistry(registry),
			process.WithBaseDir(filepath.Dir(cfg.TokenizersFile)),
			process.WithFallback(lexers),
		), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", cfg.Tokenizer)
	}
}

// Document returns the underlying document.
func (n *Notebook) Document() *document.Document {
	return n.doc
}

// Highlighter returns the underlying highlighter.
func (n *Notebook) Highlighter() *highlight.Highlighter {
	return n.highlighter
}

// Fragments returns the current fragments with their recorded errors.
func (n *Notebook) Fragments() []domain.Fragment {
	return n.doc.Fragments()
}

// Changes streams document change events. See document.Document.Changes.
func (n *Notebook) Changes() <-chan document.ChangeEvent {
	return n.doc.Changes()
}

// Source returns the current notebook source.
func (n *Notebook) Source() []byte {
	return n.doc.Source()
}

// Load replaces the notebook source.
func (n *Notebook) Load(source []byte) []document.ChangeEvent {
	return n.doc.Update(source)
}

// Highlight tokenizes every fragment of the current document.
func (n *Notebook) Highlight(ctx context.Context) ([]highlight.Result, error) {
	return n.highlighter.Highlight(ctx, n.doc.Fragments())
}

// Results delivers one Result per submitted evaluation, in submission order.
// It is closed by Close.
func (n *Notebook) Results() <-chan Result {
	return n.results
}

// Evaluate submits the fragment at index to the interpreter. It does not wait
// for the result.
func (n *Notebook) Evaluate(index int) error {
	frag, ok := n.doc.Fragment(index)
	if !ok {
		return fmt.Errorf("fragment %d: %w", index, ErrNoFragment)
	}
	if !n.doc.Executable(frag.Language) {
		return fmt.Errorf("fragment %d (%q): %w", index, frag.Language, ErrNotExecutable)
	}
	return n.submit(Cell{Index: index, Fragment: frag})
}

// EvaluateAt submits the fragment containing the byte offset.
func (n *Notebook) EvaluateAt(offset int) (int, error) {
	index, _, ok := n.doc.FragmentAt(offset)
	if !ok {
		return -1, fmt.Errorf("offset %d: %w", offset, ErrNoFragment)
	}
	return index, n.Evaluate(index)
}

// EvaluateAll submits every executable fragment in document order and returns
// how many were submitted.
func (n *Notebook) EvaluateAll() (int, error) {
	submitted := 0
	for i, frag := range n.doc.Fragments() {
		if !n.doc.Executable(frag.Language) {
			continue
		}
		if err := n.submit(Cell{Index: i, Fragment: frag}); err != nil {
			return submitted, err
		}
		submitted++
	}
	return submitted, nil
}

func (n *Notebook) submit(cell Cell) error {
	d, err := n.session()
	if err != nil {
		return err
	}
	return d.Evaluate(cell.Fragment.Text, cell)
}

// session returns the driver, launching the interpreter on first use.
func (n *Notebook) session() (*repl.Driver[Cell], error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}
	if n.driver != nil {
		return n.driver, nil
	}

	ic := n.cfg.Interpreter
	opts := append([]repl.Option{
		repl.WithLogger(n.logger),
		repl.WithMetrics(n.metrics),
	}, n.driverOpts...)
	d, err := repl.New[Cell](repl.Config{
		Command:       ic.Command,
		Dir:           ic.Dir,
		Env:           ic.Env,
		Statement:     ic.Statement,
		EchoPattern:   ic.EchoPattern,
		EvalTimeout:   ic.EvalTimeout,
		MaxFrameBytes: ic.MaxFrameBytes,
		MaxInFlight:   ic.MaxInFlight,
	}, n.deliver, opts...)
	if err != nil {
		return nil, err
	}
	n.driver = d
	return d, nil
}

// deliver runs on the driver's dispatch goroutine.
func (n *Notebook) deliver(rec domain.OutputRecord[Cell]) {
	cell := rec.Metadata
	out := document.OutputOf(rec)
	n.doc.Record(cell.Fragment.Key(), out)

	switch {
	case out.Cancelled:
		cell.Fragment.Error = ""
	case rec.Stderr != "":
		cell.Fragment.Error = rec.Stderr
	case rec.Err != nil:
		cell.Fragment.Error = rec.Err.Error()
	default:
		cell.Fragment.Error = ""
	}

	res := Result{
		Cell:       cell,
		Stdout:     rec.Stdout,
		Stderr:     rec.Stderr,
		Generation: rec.Generation,
		Err:        rec.Err,
	}
	select {
	case n.results <- res:
	case <-n.done:
	}
}

// Reset clears every recorded error and restarts the interpreter. Pending
// evaluations are delivered with domain.ErrInterpreterTerminated.
func (n *Notebook) Reset() error {
	n.doc.ClearErrors()

	n.mu.Lock()
	d, closed := n.driver, n.closed
	n.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if d == nil {
		return nil
	}
	return d.Reset()
}

// State reports the interpreter session state; Terminated before the first evaluation.
func (n *Notebook) State() domain.SessionState {
	n.mu.Lock()
	d := n.driver
	n.mu.Unlock()
	if d == nil {
		return domain.SessionTerminated
	}
	return d.State()
}

// Close stops the interpreter, closes the Results channel and releases the store.
func (n *Notebook) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	d := n.driver
	n.mu.Unlock()

	close(n.done)

	var errs []error
	if d != nil {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close interpreter: %w", err))
		}
	}
	close(n.results)
	n.doc.Close()

	for _, c := range n.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
