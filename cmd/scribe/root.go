package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "scribe evaluates and highlights markdown notebooks",
	Long: `scribe runs the fenced code blocks of a markdown notebook in a long-lived
REPL session and highlights them with an incremental, cached tokenizer.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "scribe.yaml", "Configuration file (missing file means defaults)")
	pf.StringSlice("interpreter", nil, "Interpreter command, overrides interpreter.command")
	pf.Duration("eval-timeout", 0, "Per evaluation timeout, overrides interpreter.eval_timeout")
	pf.String("tokenizer", "", "Tokenizer backend: chroma or process")
	pf.String("redis", "", "Redis address for the persistent token cache")
	pf.Bool("debug", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress banners and system messages")
}

// options reads the shared flags. args[0], when present, is the notebook path.
func options(cmd *cobra.Command, args []string) cli.Options {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	interpreter, _ := flags.GetStringSlice("interpreter")
	timeout, _ := flags.GetDuration("eval-timeout")
	tokenizer, _ := flags.GetString("tokenizer")
	redis, _ := flags.GetString("redis")
	debug, _ := flags.GetBool("debug")
	quiet, _ := flags.GetBool("quiet")

	opts := cli.Options{
		ConfigPath:  configPath,
		Interpreter: interpreter,
		EvalTimeout: timeout,
		Tokenizer:   tokenizer,
		RedisAddr:   redis,
		Debug:       debug,
		Quiet:       quiet,
	}
	if len(args) > 0 {
		opts.Path = args[0]
	}
	if flags.Lookup("json") != nil {
		opts.JSON, _ = flags.GetBool("json")
	}
	return opts
}
