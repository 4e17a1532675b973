package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
)

var watchCmd = &cobra.Command{
	Use:   "watch [notebook]",
	Short: "Re-render a notebook whenever it changes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		opts := options(cmd, args)
		opts.Eval, _ = cmd.Flags().GetBool("eval")
		if err := cli.Watch(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Bool("eval", false, "Evaluate blocks added by each change")
	rootCmd.AddCommand(watchCmd)
}
