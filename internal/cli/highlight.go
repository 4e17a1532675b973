package cli

import (
	"context"
	"encoding/json"

	"github.com/aretw0/scribe/internal/presentation/tui"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/domain/textpos"
	"github.com/aretw0/scribe/pkg/highlight"
)

type tokensLine struct {
	Index    int            `json:"index"`
	Language string         `json:"language,omitempty"`
	Code     string         `json:"code"`
	Tokens   []domain.Token `json:"tokens"`
	Cached   bool           `json:"cached,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Highlight tokenizes the notebook and prints it, or its tokens with --json.
// unit selects the offset unit of JSON tokens.
func Highlight(ctx context.Context, opts Options, unit textpos.Unit) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.Log, opts.stderr())

	nb, err := createNotebook(opts, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer nb.Close()

	blocks, herr := nb.Highlight(ctx)
	if herr != nil {
		logger.Warn("Highlight failed", "err", herr)
	}

	if !opts.JSON {
		r := tui.NewRenderer(opts.stdout(), highlight.DefaultStyle())
		if err := r.Notebook(nb.Source(), blocks, nil); err != nil {
			return err
		}
		return herr
	}

	enc := json.NewEncoder(opts.stdout())
	for i, b := range blocks {
		line := tokensLine{
			Index:    i,
			Language: b.Fragment.Language,
			Code:     b.Fragment.Text,
			Tokens:   textpos.TokensFromBytes(b.Fragment.Text, unit, b.Tokens),
			Cached:   b.Cached,
		}
		if b.Tokens == nil {
			line.Error = domain.ErrTokenizerFailure.Error()
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return herr
}
