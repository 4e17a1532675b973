package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/presentation/tui"
	"github.com/aretw0/scribe/pkg/highlight"
)

// ErrEvaluationFailed is returned by Run when at least one block wrote to
// stderr or was dropped by the interpreter.
var ErrEvaluationFailed = errors.New("one or more blocks failed")

// Run evaluates every executable block of the notebook once and prints the
// notebook with its results.
func Run(ctx context.Context, opts Options) error {
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

	if !opts.JSON && !opts.Quiet {
		tui.PrintBanner(opts.stdout(), scribe.Version)
	}

	// 1. Submit
	submitted, submitErr := nb.EvaluateAll()
	if submitErr != nil {
		logger.Error("Evaluation submit failed", "err", submitErr, "submitted", submitted)
	}

	// 2. Collect
	results, failed, err := collect(ctx, nb, submitted)
	if err != nil {
		return handleExecutionError(err)
	}

	// 3. Present
	if opts.JSON {
		enc := json.NewEncoder(opts.stdout())
		for i := 0; i < len(nb.Fragments()); i++ {
			if res, ok := results[i]; ok {
				if err := enc.Encode(jsonResult(res)); err != nil {
					return err
				}
			}
		}
	} else {
		blocks, herr := nb.Highlight(ctx)
		if herr != nil {
			logger.Warn("Highlight failed", "err", herr)
		}
		r := tui.NewRenderer(opts.stdout(), highlight.DefaultStyle())
		if err := r.Notebook(nb.Source(), blocks, results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d: %w", failed, submitted, ErrEvaluationFailed)
	}
	return submitErr
}

// collect reads n results from the notebook.
func collect(ctx context.Context, nb *scribe.Notebook, n int) (map[int]scribe.Result, int, error) {
	results := make(map[int]scribe.Result, n)
	failed := 0
	for i := 0; i < n; i++ {
		select {
		case res, ok := <-nb.Results():
			if !ok {
				return results, failed, scribe.ErrClosed
			}
			results[res.Index] = res
			if res.Stderr != "" || res.Err != nil {
				failed++
			}
		case <-ctx.Done():
			return results, failed, ctx.Err()
		}
	}
	return results, failed, nil
}

type resultLine struct {
	Index    int    `json:"index"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
}

func jsonResult(res scribe.Result) resultLine {
	line := resultLine{
		Index:    res.Index,
		Language: res.Fragment.Language,
		Code:     res.Fragment.Text,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if res.Err != nil {
		line.Error = res.Err.Error()
	}
	return line
}
