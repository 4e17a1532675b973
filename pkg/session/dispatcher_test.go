package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe"
)

// fakeSource answers each submission with its index as stdout.
type fakeSource struct {
	mu        sync.Mutex
	results   chan scribe.Result
	fragments int
	failAt    int
	hold      bool
}

func newFakeSource(fragments int) *fakeSource {
	return &fakeSource{results: make(chan scribe.Result, 64), fragments: fragments, failAt: -1}
}

func (f *fakeSource) Evaluate(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= f.fragments {
		return scribe.ErrNoFragment
	}
	if index == f.failAt {
		return scribe.ErrNotExecutable
	}
	if !f.hold {
		f.results <- scribe.Result{Cell: scribe.Cell{Index: index}, Stdout: string(rune('a' + index))}
	}
	return nil
}

func (f *fakeSource) EvaluateAll() (int, error) {
	n := 0
	for i := 0; i < f.fragments; i++ {
		if err := f.Evaluate(i); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *fakeSource) Results() <-chan scribe.Result { return f.results }

func TestDispatcher_Submit(t *testing.T) {
	src := newFakeSource(3)
	var observed []int
	var mu sync.Mutex
	d := NewDispatcher(src, WithObserver(func(r scribe.Result) {
		mu.Lock()
		observed = append(observed, r.Index)
		mu.Unlock()
	}))
	ctx := context.Background()

	p, err := d.Submit(1)
	require.NoError(t, err)
	got, err := p.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Stdout)

	p, err = d.SubmitAll()
	require.NoError(t, err)
	got, err = p.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.Index)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, d.Outstanding())

	_, err = d.Submit(7)
	assert.ErrorIs(t, err, scribe.ErrNoFragment)
}

func TestDispatcher_PartialSubmitAll(t *testing.T) {
	src := newFakeSource(3)
	src.failAt = 2
	d := NewDispatcher(src)

	p, err := d.SubmitAll()
	assert.ErrorIs(t, err, scribe.ErrNotExecutable)
	got, werr := p.Wait(context.Background())
	require.NoError(t, werr)
	assert.Len(t, got, 2)
}

func TestDispatcher_Close(t *testing.T) {
	src := newFakeSource(2)
	src.hold = true
	d := NewDispatcher(src)

	p, err := d.Submit(0)
	require.NoError(t, err)

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := p.Wait(ctx)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	close(src.results)
	<-d.Done()

	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, scribe.ErrClosed)

	_, err = d.Submit(0)
	assert.ErrorIs(t, err, scribe.ErrClosed)
}
