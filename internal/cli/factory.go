package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/config"
	"github.com/aretw0/scribe/pkg/observability"
)

// createNotebook builds a notebook with standard CLI conventions and loads
// opts.Path into it when set.
func createNotebook(opts Options, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*scribe.Notebook, error) {
	// 1. Wire
	nb, err := scribe.New(cfg,
		scribe.WithLogger(logger),
		scribe.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing notebook: %w", err)
	}

	// 2. Load
	if opts.Path != "" {
		source, err := os.ReadFile(opts.Path)
		if err != nil {
			nb.Close()
			return nil, fmt.Errorf("failed to read notebook: %w", err)
		}
		nb.Load(source)
		logger.Debug("Notebook loaded", "path", opts.Path, "fragments", len(nb.Fragments()))
	}
	return nb, nil
}
