package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/highlight"
)

// stubNotebook answers every evaluation with the upper-cased fragment text.
type stubNotebook struct {
	doc     *document.Document
	results chan scribe.Result
	resets  int
}

func newStub(source string) *stubNotebook {
	nb := &stubNotebook{
		doc:     document.New(document.WithExecutable("py")),
		results: make(chan scribe.Result, 8),
	}
	nb.doc.Update([]byte(source))
	return nb
}

func (n *stubNotebook) Load(source []byte) []document.ChangeEvent { return n.doc.Update(source) }
func (n *stubNotebook) Fragments() []domain.Fragment              { return n.doc.Fragments() }
func (n *stubNotebook) State() domain.SessionState                { return domain.SessionStarting }
func (n *stubNotebook) Results() <-chan scribe.Result             { return n.results }
func (n *stubNotebook) Reset() error                              { n.resets++; return nil }

func (n *stubNotebook) Highlight(ctx context.Context) ([]highlight.Result, error) {
	var out []highlight.Result
	for _, f := range n.doc.Fragments() {
		res := highlight.Result{Fragment: f}
		if f.Language == "py" {
			res.Tokens = []domain.Token{{Range: domain.Range{Start: 0, End: 1}, Kind: domain.KindKeyword}}
		}
		out = append(out, res)
	}
	return out, nil
}

func (n *stubNotebook) Evaluate(index int) error {
	f, ok := n.doc.Fragment(index)
	if !ok {
		return scribe.ErrNoFragment
	}
	if !n.doc.Executable(f.Language) {
		return scribe.ErrNotExecutable
	}
	res := scribe.Result{Cell: scribe.Cell{Index: index, Fragment: f}, Stdout: strings.ToUpper(f.Text)}
	if strings.HasPrefix(f.Text, "raise") {
		res.Stdout, res.Stderr = "", "Traceback"
	}
	n.results <- res
	return nil
}

func (n *stubNotebook) EvaluateAll() (int, error) {
	count := 0
	for i, f := range n.doc.Fragments() {
		if !n.doc.Executable(f.Language) {
			continue
		}
		if err := n.Evaluate(i); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

const notebook = "```py\nx\n```\n\n```text\nnotes\n```\n\n```py\nraise\n```\n"

func TestServer_Evaluate(t *testing.T) {
	s := NewServer(newStub(notebook))
	ctx := context.Background()

	t.Run("single", func(t *testing.T) {
		resp, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"index": float64(0)})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "X", resp.Results[0].Stdout)
	})

	t.Run("all", func(t *testing.T) {
		resp, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"all": true})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, 0, resp.Results[0].Index)
		assert.Equal(t, 2, resp.Results[1].Index)
		assert.Equal(t, "Traceback", resp.Results[1].Stderr)
	})

	t.Run("with source", func(t *testing.T) {
		resp, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
			"source": "```py\nfresh\n```\n",
			"index":  float64(0),
		})
		require.NoError(t, err)
		assert.Equal(t, "FRESH", resp.Results[0].Stdout)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
		assert.Error(t, err)
		_, err = s.handleEvaluate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"index": float64(5)})
		assert.ErrorIs(t, err, scribe.ErrNoFragment)
	})
}

func TestServer_Highlight(t *testing.T) {
	s := NewServer(newStub(notebook))

	resp, err := s.handleHighlight(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, resp.Fragments, 3)
	assert.Equal(t, domain.KindKeyword, resp.Fragments[0].Tokens[0].Kind)
	assert.Empty(t, resp.Fragments[0].Error)
	assert.NotEmpty(t, resp.Fragments[1].Error, "nil tokens mean the tokenizer failed")
}

func TestServer_Reset(t *testing.T) {
	nb := newStub(notebook)
	s := NewServer(nb)

	resp, err := s.handleReset(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "starting", resp.Session)
	assert.Equal(t, 1, nb.resets)
}
