package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve [notebook]",
	Short: "Serve the notebook over HTTP",
	Long: `Starts the HTTP API. Fragments, highlighting and evaluation are exposed as
JSON endpoints and results stream over Server-Sent Events at /events.
When a notebook path is given, the file is watched and reloaded on change.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		opts := options(cmd, args)
		port, _ := cmd.Flags().GetString("port")
		opts.Addr, _ = cmd.Flags().GetString("addr")
		if opts.Addr == "" {
			opts.Addr = ":" + port
		}
		if err := cli.Serve(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("addr", "", "Full listen address, overrides --port")
	rootCmd.AddCommand(serveCmd)
}
