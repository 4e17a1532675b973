package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [notebook]",
	Short: "Evaluate every executable block of a notebook",
	Long: `Evaluates the executable fenced blocks of a markdown notebook in order and
prints the rendered notebook with each block's output. Exits non-zero when any
block reports an error.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		opts := options(cmd, args)
		if err := cli.Run(ctx, opts); err != nil {
			if !errors.Is(err, cli.ErrEvaluationFailed) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().Bool("json", false, "Emit one JSON result per line")
	rootCmd.AddCommand(runCmd)

	// Make run the default command
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.Flags().Bool("json", false, "Emit one JSON result per line")
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}
		runCmd.Run(cmd, args)
	}
}
