package cli

import (
	"fmt"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/presentation/tui"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/highlight"
)

// Watch re-renders the notebook whenever the file changes. With opts.Eval,
// blocks that appear or change are evaluated and their results printed as
// they arrive.
func Watch(ctx *SignalContext, opts Options) error {
	if opts.Path == "" {
		return fmt.Errorf("watch requires a notebook path")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.Log, opts.stderr())

	nb, err := scribe.New(cfg, scribe.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error initializing notebook: %w", err)
	}
	defer nb.Close()

	out := opts.stdout()
	r := tui.NewRenderer(out, highlight.DefaultStyle())
	if !opts.Quiet {
		tui.PrintBanner(out, scribe.Version)
	}

	// 1. Results are printed from their own goroutine.
	go func() {
		for res := range nb.Results() {
			printSystemMessage(out, "Result of block %d:", res.Index)
			r.Result(res)
		}
	}()

	// 2. Each reload renders and optionally evaluates what changed.
	reload := func(events []document.ChangeEvent) {
		blocks, herr := nb.Highlight(ctx)
		if herr != nil {
			logger.Warn("Highlight failed", "err", herr)
		}
		if err := r.Notebook(nb.Source(), blocks, nil); err != nil {
			logger.Error("Render failed", "err", err)
		}
		if !opts.Eval {
			return
		}
		for _, ev := range events {
			if ev.Kind != document.ChangeAdded {
				continue
			}
			if err := nb.Evaluate(ev.Index); err != nil {
				logger.Debug("Block not evaluated", "index", ev.Index, "err", err)
			}
		}
	}

	w, err := document.NewWatcher(opts.Path, nb.Document(),
		document.WithWatcherLogger(logger),
		document.WithOnChange(reload),
	)
	if err != nil {
		return err
	}

	logger.Info("Starting Watcher", "path", opts.Path)
	if !opts.Quiet {
		printSystemMessage(out, "Watching '%s'.", opts.Path)
	}
	err = w.Run(ctx)
	if sig := ctx.Signal(); sig != nil && !opts.Quiet {
		printSystemMessage(out, "Interrupted (%v).", sig)
	}
	return handleExecutionError(err)
}
