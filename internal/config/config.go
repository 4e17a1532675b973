// Package config loads scribe settings from a YAML file and SCRIBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. SCRIBE_INTERPRETER_EVAL_TIMEOUT=5s.
const EnvPrefix = "SCRIBE_"

// Config is the full notebook configuration.
type Config struct {
	Interpreter InterpreterConfig `mapstructure:"interpreter" yaml:"interpreter"`
	Highlight   HighlightConfig   `mapstructure:"highlight" yaml:"highlight"`
	Redis       RedisConfig       `mapstructure:"redis" yaml:"redis"`
	Languages   LanguagesConfig   `mapstructure:"languages" yaml:"languages"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// InterpreterConfig describes the long-lived REPL subprocess.
type InterpreterConfig struct {
	Command       []string      `mapstructure:"command" yaml:"command"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	Env           []string      `mapstructure:"env" yaml:"env"`
	Statement     string        `mapstructure:"statement" yaml:"statement"`
	EchoPattern   string        `mapstructure:"echo_pattern" yaml:"echo_pattern"`
	EvalTimeout   time.Duration `mapstructure:"eval_timeout" yaml:"eval_timeout"`
	MaxFrameBytes int           `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	// MaxInFlight limits written but unanswered evaluations; negative means unbounded.
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`
}

// HighlightConfig tunes the batch tokenizer and its cache.
type HighlightConfig struct {
	// Tokenizer is "chroma" (in-process) or "process" (external commands from TokenizersFile).
	Tokenizer      string `mapstructure:"tokenizer" yaml:"tokenizer"`
	TokenizersFile string `mapstructure:"tokenizers_file" yaml:"tokenizers_file"`
	Delimiter      string `mapstructure:"delimiter" yaml:"delimiter"`
	CacheEntries   int    `mapstructure:"cache_entries" yaml:"cache_entries"`
	CacheBytes     int    `mapstructure:"cache_bytes" yaml:"cache_bytes"`
	// Aliases maps fence tags to the lexer that highlights them.
	Aliases map[string]string `mapstructure:"aliases" yaml:"aliases"`
}

// RedisConfig enables the persistent token store when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LanguagesConfig says which fenced block languages are sent to the interpreter.
type LanguagesConfig struct {
	Executable []string `mapstructure:"executable" yaml:"executable"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"interpreter": map[string]any{
			"command":         []any{"swift", "repl"},
			"statement":       `print("%s")`,
			"echo_pattern":    `^\$R\d+: `,
			"eval_timeout":    "0s",
			"max_frame_bytes": "8MiB",
			"max_in_flight":   1,
		},
		"highlight": map[string]any{
			"tokenizer":     "chroma",
			"delimiter":     "\n\n",
			"cache_entries": 4096,
			"cache_bytes":   "32MiB",
			"aliases": map[string]any{
				"swift-example": "swift",
			},
		},
		"redis": map[string]any{
			"prefix": "scribe:tokens:",
			"ttl":    "24h",
		},
		"languages": map[string]any{
			"executable": []any{"swift"},
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path (optional; empty or missing means defaults only), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			var file map[string]any
			if err := yaml.Unmarshal(data, &file); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			merge(raw, file)
		}
	}

	applyEnv(raw, os.Environ())

	cfg, err := decode(raw)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if len(c.Interpreter.Command) == 0 || c.Interpreter.Command[0] == "" {
		errs = append(errs, errors.New("interpreter.command is required"))
	}
	if strings.Count(c.Interpreter.Statement, "%s") != 1 {
		errs = append(errs, fmt.Errorf("interpreter.statement must contain exactly one %%s, got %q", c.Interpreter.Statement))
	}
	if c.Interpreter.EvalTimeout < 0 {
		errs = append(errs, errors.New("interpreter.eval_timeout must not be negative"))
	}
	if c.Interpreter.MaxFrameBytes <= 0 {
		errs = append(errs, errors.New("interpreter.max_frame_bytes must be positive"))
	}
	switch c.Highlight.Tokenizer {
	case "chroma":
	case "process":
		if c.Highlight.TokenizersFile == "" {
			errs = append(errs, errors.New("highlight.tokenizers_file is required for the process tokenizer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown highlight.tokenizer %q", c.Highlight.Tokenizer))
	}
	if c.Highlight.CacheEntries <= 0 {
		errs = append(errs, errors.New("highlight.cache_entries must be positive"))
	}
	if c.Highlight.CacheBytes < 0 {
		errs = append(errs, errors.New("highlight.cache_bytes must not be negative"))
	}
	return errors.Join(errs...)
}

func decode(raw map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToFieldsHook,
			sizeHook,
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// merge copies src into dst, descending into nested sections.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				merge(cur, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// applyEnv maps SCRIBE_SECTION_KEY=value onto raw[section][key].
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || key == "" {
			continue
		}
		sub, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		sub[key] = value
	}
}

// stringToFieldsHook splits "swift repl" or "swift,python" into a slice.
func stringToFieldsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return strings.FieldsFunc(data.(string), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}), nil
}

var sizeUnits = []struct {
	suffix string
	mult   int
}{
	{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
	{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

// sizeHook accepts byte sizes such as "512KiB" for int fields.
func sizeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	return ParseSize(data.(string))
}

// ParseSize parses a plain integer or an integer followed by a size unit.
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	mult := 1
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}
