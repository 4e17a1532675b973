package cli

import (
	"context"
	"fmt"

	mcpAdapter "github.com/aretw0/scribe/pkg/adapters/mcp"
)

// MCP serves the notebook tools over stdio or SSE. Logs go to stderr so they
// never corrupt the JSON-RPC stream.
func MCP(ctx context.Context, opts Options, transport string) error {
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

	srv := mcpAdapter.NewServer(nb, mcpAdapter.WithLogger(logger))
	switch transport {
	case "", "stdio":
		logger.Info("Starting MCP server (stdio)", "notebook", opts.Path)
		return srv.ServeStdio()
	case "sse":
		addr := opts.Addr
		if addr == "" {
			addr = ":8080"
		}
		return handleExecutionError(srv.ServeSSE(ctx, addr))
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
	}
}
