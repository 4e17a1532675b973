package cli

import (
	"io"
	"os"
	"time"
)

// Options carries the command line flags shared by every command.
type Options struct {
	// Path is the markdown notebook.
	Path       string
	ConfigPath string

	// Overrides of the config file.
	Interpreter []string
	EvalTimeout time.Duration
	Tokenizer   string
	RedisAddr   string

	Debug bool
	Quiet bool
	JSON  bool

	// Eval makes watch mode evaluate new executable blocks.
	Eval bool
	// Addr is the listen address of serve.
	Addr string

	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}
