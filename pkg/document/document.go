package document

import (
	"errors"
	"sort"
	"sync"

	"github.com/aretw0/scribe/pkg/domain"
)

// ChangeKind describes what happened to a fragment.
type ChangeKind string

const (
	// ChangeAdded: a fragment identity appeared in the document.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved: a fragment identity disappeared from the document.
	ChangeRemoved ChangeKind = "removed"
	// ChangeMoved: the fragment text is unchanged but its range shifted.
	ChangeMoved ChangeKind = "moved"
	// ChangeOutput: a new output was recorded for the fragment.
	ChangeOutput ChangeKind = "output"
	// ChangeErrorCleared: the recorded error was cleared.
	ChangeErrorCleared ChangeKind = "error_cleared"
)

// ChangeEvent is emitted on Document.Changes.
type ChangeEvent struct {
	Kind     ChangeKind      `json:"kind"`
	Index    int             `json:"index"`
	Fragment domain.Fragment `json:"fragment"`
}

// Output is the last evaluation result recorded for a fragment.
type Output struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr,omitempty"`
	Generation uint64 `json:"generation"`
	Err        string `json:"err,omitempty"`
	// Cancelled marks a request the driver dropped (reset, crash, stale
	// generation). It says nothing about the fragment's code.
	Cancelled bool `json:"cancelled,omitempty"`
}

// OutputOf converts a driver record into the form a Document stores.
func OutputOf[M any](rec domain.OutputRecord[M]) Output {
	out := Output{
		Stdout:     rec.Stdout,
		Stderr:     rec.Stderr,
		Generation: rec.Generation,
	}
	if rec.Err != nil {
		out.Err = rec.Err.Error()
		out.Cancelled = errors.Is(rec.Err, domain.ErrInterpreterTerminated)
	}
	return out
}

type fragmentState struct {
	output *Output
	err    string
}

// Option configures a Document.
type Option func(*Document)

// WithExecutable lists the languages whose fragments may be evaluated.
// Without it no fragment is executable.
func WithExecutable(languages ...string) Option {
	return func(d *Document) {
		for _, lang := range languages {
			d.executable[lang] = true
		}
	}
}

// WithChangeBuffer sets the capacity of the Changes channel.
func WithChangeBuffer(n int) Option {
	return func(d *Document) {
		if n >= 0 {
			d.bufferSize = n
		}
	}
}

// Document holds the fragments of one markdown source and the state attached
// to them. It is safe for concurrent use.
type Document struct {
	mu         sync.RWMutex
	source     []byte
	fragments  []domain.Fragment
	state      map[string]*fragmentState
	executable map[string]bool

	bufferSize int
	changes    chan ChangeEvent
	dropped    int
	closed     bool
}

// New creates an empty Document.
func New(opts ...Option) *Document {
	d := &Document{
		state:      make(map[string]*fragmentState),
		executable: make(map[string]bool),
		bufferSize: 256,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.changes = make(chan ChangeEvent, d.bufferSize)
	return d
}

// Changes returns the event stream. Events are dropped, never blocked on,
// when the consumer falls behind; Dropped reports how many.
func (d *Document) Changes() <-chan ChangeEvent {
	return d.changes
}

// Dropped returns the number of change events discarded because the channel was full.
func (d *Document) Dropped() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dropped
}

// Executable reports whether fragments tagged with language may be evaluated.
func (d *Document) Executable(language string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.executable[language]
}

// Update reparses source and returns the changes it caused. State of
// fragments whose identity survives is kept; state of vanished ones is dropped.
func (d *Document) Update(source []byte) []ChangeEvent {
	next := Extract(source)

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := make(map[string]domain.Range, len(d.fragments))
	for _, f := range d.fragments {
		if _, ok := prev[f.Key()]; !ok {
			prev[f.Key()] = f.Range
		}
	}

	var events []ChangeEvent
	seen := make(map[string]bool, len(next))
	for i, f := range next {
		key := f.Key()
		first := !seen[key]
		seen[key] = true
		old, existed := prev[key]
		switch {
		case !existed:
			events = append(events, ChangeEvent{Kind: ChangeAdded, Index: i})
		case first && old != f.Range:
			events = append(events, ChangeEvent{Kind: ChangeMoved, Index: i})
		}
	}

	var removed []ChangeEvent
	for i, f := range d.fragments {
		if !seen[f.Key()] {
			removed = append(removed, ChangeEvent{Kind: ChangeRemoved, Index: i, Fragment: d.decorate(f)})
			delete(d.state, f.Key())
		}
	}

	d.source = append(d.source[:0], source...)
	d.fragments = next

	for i := range events {
		events[i].Fragment = d.decorate(next[events[i].Index])
	}
	events = append(removed, events...)
	for _, ev := range events {
		d.emit(ev)
	}
	return events
}

// Source returns a copy of the last source passed to Update.
func (d *Document) Source() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte(nil), d.source...)
}

// Fragments returns the current fragments with their recorded errors.
func (d *Document) Fragments() []domain.Fragment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Fragment, len(d.fragments))
	for i, f := range d.fragments {
		out[i] = d.decorate(f)
	}
	return out
}

// Len returns the number of fragments.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.fragments)
}

// Fragment returns the i-th fragment.
func (d *Document) Fragment(i int) (domain.Fragment, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i < 0 || i >= len(d.fragments) {
		return domain.Fragment{}, false
	}
	return d.decorate(d.fragments[i]), true
}

// FragmentAt returns the fragment whose content range contains offset.
// The end of the range counts as inside, so a cursor placed right after the
// last character still resolves to the block.
func (d *Document) FragmentAt(offset int) (int, domain.Fragment, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i := sort.Search(len(d.fragments), func(i int) bool {
		return d.fragments[i].Range.End >= offset
	})
	if i < len(d.fragments) && d.fragments[i].Range.Start <= offset {
		return i, d.decorate(d.fragments[i]), true
	}
	return -1, domain.Fragment{}, false
}

// Record stores the output of an evaluation for the fragment identified by key.
// Stderr output becomes the fragment error; a clean result clears it.
// A cancelled result leaves the error state untouched.
// Results for fragments no longer in the document are ignored.
func (d *Document) Record(key string, out Output) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasKey(key) {
		return false
	}
	st := d.stateFor(key)
	o := out
	st.output = &o
	switch {
	case out.Cancelled:
	case out.Stderr != "":
		st.err = out.Stderr
	case out.Err != "":
		st.err = out.Err
	default:
		st.err = ""
	}

	for i, f := range d.fragments {
		if f.Key() == key {
			d.emit(ChangeEvent{Kind: ChangeOutput, Index: i, Fragment: d.decorate(f)})
		}
	}
	return true
}

// Output returns the last output recorded for key.
func (d *Document) Output(key string) (Output, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st, ok := d.state[key]
	if !ok || st.output == nil {
		return Output{}, false
	}
	return *st.output, true
}

// ClearErrors forgets every recorded error. Outputs are kept.
func (d *Document) ClearErrors() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, f := range d.fragments {
		st, ok := d.state[f.Key()]
		if !ok || st.err == "" {
			continue
		}
		st.err = ""
		d.emit(ChangeEvent{Kind: ChangeErrorCleared, Index: i, Fragment: d.decorate(f)})
	}
	for _, st := range d.state {
		st.err = ""
	}
}

// Close closes the Changes channel. Later updates are still applied but emit nothing.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.changes)
	}
}

func (d *Document) hasKey(key string) bool {
	for _, f := range d.fragments {
		if f.Key() == key {
			return true
		}
	}
	return false
}

func (d *Document) stateFor(key string) *fragmentState {
	st, ok := d.state[key]
	if !ok {
		st = &fragmentState{}
		d.state[key] = st
	}
	return st
}

func (d *Document) decorate(f domain.Fragment) domain.Fragment {
	if st, ok := d.state[f.Key()]; ok {
		f.Error = st.err
	}
	return f
}

// emit must be called with d.mu held.
func (d *Document) emit(ev ChangeEvent) {
	if d.closed {
		return
	}
	select {
	case d.changes <- ev:
	default:
		d.dropped++
	}
}
