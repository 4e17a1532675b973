package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
	"github.com/aretw0/scribe/pkg/domain/textpos"
)

var highlightCmd = &cobra.Command{
	Use:   "highlight [notebook]",
	Short: "Highlight the code blocks of a notebook",
	Long: `Tokenizes every fenced block with the configured tokenizer and prints the
notebook with colors, or the raw tokens with --json. Offsets in JSON output use
the unit chosen with --unit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		unitName, _ := cmd.Flags().GetString("unit")
		unit, err := textpos.ParseUnit(unitName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := cli.Highlight(ctx, options(cmd, args), unit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	highlightCmd.Flags().Bool("json", false, "Emit tokens as JSON lines")
	highlightCmd.Flags().String("unit", "byte", "Offset unit for JSON output: byte, utf16 or rune")
	rootCmd.AddCommand(highlightCmd)
}
