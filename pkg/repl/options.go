package repl

import (
	"log/slog"
	"time"

	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/observability"
	"github.com/google/uuid"
)

// DefaultStatement prints its argument followed by a newline.
const DefaultStatement = `print("%s")`

// DefaultMaxFrameBytes bounds a single frame when Config.MaxFrameBytes is zero.
const DefaultMaxFrameBytes = 8 << 20

// Config describes the interpreter subprocess and the framing protocol.
type Config struct {
	// Command is the interpreter executable followed by its arguments.
	Command []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the parent environment.
	Env []string
	// Statement is the print statement used for markers; it must contain one %s.
	Statement string
	// EchoPattern is stripped from the start of every output line. Empty disables stripping.
	EchoPattern string
	// EvalTimeout bounds how long the oldest written request may wait for its
	// frame. Zero disables the timeout.
	EvalTimeout time.Duration
	// MaxFrameBytes bounds stdout buffered without a closed frame.
	MaxFrameBytes int
	// MaxInFlight bounds requests written but not yet answered.
	// Zero means 1 (one evaluation at a time); negative means unbounded.
	MaxInFlight int
}

func (c Config) withDefaults() Config {
	if c.Statement == "" {
		c.Statement = DefaultStatement
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 1
	}
	return c
}

// Option configures a Driver.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	metrics   *observability.Metrics
	newMarker func() string
}

func defaultOptions() options {
	return options{
		logger:    logging.NewNop(),
		newMarker: uuid.NewString,
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records evaluation outcomes and restarts.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMarkerSource overrides how per-session markers are generated.
func WithMarkerSource(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newMarker = fn
		}
	}
}
