package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/domain/textpos"
	"github.com/aretw0/scribe/pkg/ports"
)

// FilePlaceholder in an argument is replaced by the path of the source file.
const FilePlaceholder = "{file}"

// LanguagePlaceholder in an argument is replaced by the language tag.
const LanguagePlaceholder = "{language}"

// Tokenizer implements ports.Tokenizer by running registered external commands.
// It follows a strict registry: only configured commands are ever executed.
type Tokenizer struct {
	mu       sync.RWMutex
	registry map[string]registered
	baseDir  string
	tempDir  string
	fallback ports.Tokenizer
	logger   *slog.Logger
}

type registered struct {
	command string
	args    []string
	env     map[string]string
	unit    textpos.Unit
	timeout time.Duration
}

// Option configures the tokenizer.
type Option func(*Tokenizer)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tokenizers map[string]TokenizerConfig) Option {
	return func(t *Tokenizer) {
		for language, tc := range tokenizers {
			if err := t.Register(language, tc); err != nil {
				t.logger.Warn("skipping tokenizer", "language", language, "err", err)
			}
		}
	}
}

// WithBaseDir sets the working directory for executed commands.
func WithBaseDir(dir string) Option {
	return func(t *Tokenizer) {
		t.baseDir = dir
	}
}

// WithTempDir sets where source files are handed off; empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(t *Tokenizer) {
		t.tempDir = dir
	}
}

// WithFallback handles languages that have no registered command.
func WithFallback(fallback ports.Tokenizer) Option {
	return func(t *Tokenizer) {
		t.fallback = fallback
	}
}

// WithLogger sets the logger. Pass it before WithRegistry to see registry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tokenizer) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTokenizer creates a new external command tokenizer.
func NewTokenizer(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		registry: make(map[string]registered),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds a trusted command for language.
func (t *Tokenizer) Register(language string, tc TokenizerConfig) error {
	unit, timeout, err := tc.validate()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry[language] = registered{
		command: tc.Command,
		args:    append([]string(nil), tc.Args...),
		env:     tc.Environment,
		unit:    unit,
		timeout: timeout,
	}
	return nil
}

// Languages lists the registered language tags.
func (t *Tokenizer) Languages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.registry))
	for l := range t.registry {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// span is the wire format printed by tokenizer commands.
type span struct {
	Kind  string `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Tokenize writes source to a temporary file, runs the command registered for
// language and converts its spans to byte offsets.
func (t *Tokenizer) Tokenize(ctx context.Context, language, source string) ([]domain.Token, error) {
	t.mu.RLock()
	proc, ok := t.registry[language]
	t.mu.RUnlock()
	if !ok {
		if t.fallback != nil {
			return t.fallback.Tokenize(ctx, language, source)
		}
		return nil, fmt.Errorf("%w: no tokenizer registered for %q", domain.ErrUnknownLanguage, language)
	}

	// 1. Hand the source off through a temporary file.
	path, cleanup, err := t.handoff(source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// 2. Run the command.
	if proc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proc.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, proc.command, expandArgs(proc.args, path, language)...)
	cmd.Dir = t.baseDir
	cmd.Env = append(cmd.Environ(), "SCRIBE_LANGUAGE="+language, "SCRIBE_SOURCE_FILE="+path)
	for k, v := range proc.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tokenizer %s failed: %w: %s", proc.command, err, strings.TrimSpace(stderr.String()))
	}

	// 3. Decode and convert.
	var spans []span
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &spans); err != nil {
		return nil, fmt.Errorf("tokenizer %s printed invalid spans: %w", proc.command, err)
	}
	return toTokens(spans, source, proc.unit, t.logger), nil
}

func (t *Tokenizer) handoff(source string) (string, func(), error) {
	f, err := os.CreateTemp(t.tempDir, "scribe-*.src")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create source file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write source file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write source file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func expandArgs(args []string, path, language string) []string {
	out := make([]string, 0, len(args)+1)
	placed := false
	for _, a := range args {
		if strings.Contains(a, FilePlaceholder) {
			placed = true
		}
		a = strings.ReplaceAll(a, FilePlaceholder, path)
		a = strings.ReplaceAll(a, LanguagePlaceholder, language)
		out = append(out, a)
	}
	if !placed {
		out = append(out, path)
	}
	return out
}

// toTokens keeps spans of known kinds, converts them to byte offsets and
// clamps them to the source.
func toTokens(spans []span, source string, unit textpos.Unit, logger *slog.Logger) []domain.Token {
	tokens := make([]domain.Token, 0, len(spans))
	for _, s := range spans {
		kind, err := domain.ParseTokenKind(s.Kind)
		if err != nil {
			// Tokenizers may classify more than we colour.
			continue
		}
		tokens = append(tokens, domain.Token{Range: domain.Range{Start: s.Start, End: s.End}, Kind: kind})
	}
	tokens = textpos.TokensToBytes(source, unit, tokens)

	out := tokens[:0]
	for _, tok := range tokens {
		r := tok.Range
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > len(source) {
			r.End = len(source)
		}
		if r.End <= r.Start {
			logger.Debug("dropping empty span", "start", tok.Range.Start, "end", tok.Range.End)
			continue
		}
		out = append(out, domain.Token{Range: r, Kind: tok.Kind})
	}
	return out
}
