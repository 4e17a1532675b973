package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [notebook]",
	Short: "Start the Model Context Protocol server",
	Long: `Exposes the notebook to AI agents over the Model Context Protocol.

Tools:
  evaluate   run one block or every executable block
  highlight  tokenize the notebook's code blocks
  reset      restart the interpreter session

Resources:
  scribe://fragments  the fenced blocks of the loaded notebook`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		opts := options(cmd, args)
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetString("port")
		opts.Addr = ":" + port
		if err := cli.MCP(ctx, opts, transport); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().StringP("port", "p", "8080", "Port for the SSE transport")
	rootCmd.AddCommand(mcpCmd)
}
