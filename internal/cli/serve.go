package cli

import (
	"context"
	"errors"

	httpAdapter "github.com/aretw0/scribe/pkg/adapters/http"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/observability"
)

// Serve exposes the notebook over HTTP until ctx is cancelled. When a
// notebook path is given, the file is watched and reloaded.
func Serve(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.Log, opts.stderr())
	metrics := observability.NewMetrics()

	nb, err := createNotebook(Options{ConfigPath: opts.ConfigPath}, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer nb.Close()

	if opts.Path != "" {
		w, err := document.NewWatcher(opts.Path, nb.Document(), document.WithWatcherLogger(logger))
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Watcher stopped", "err", err)
			}
		}()
	}

	srv := httpAdapter.NewServer(nb,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(metrics),
	)
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	if !opts.Quiet {
		printSystemMessage(opts.stderr(), "Serving on %s", addr)
	}
	err = srv.Serve(ctx, addr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
