package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/scribe/pkg/domain/textpos"
	"gopkg.in/yaml.v3"
)

// TokenizerConfig describes an external tokenizer command for one language.
//
// The source text is written to a temporary file whose path replaces the
// "{file}" placeholder in Args (or is appended when no placeholder is given).
// The command prints a JSON array of spans, [{"kind":"keyword","start":0,"end":3}],
// with offsets in Unit.
type TokenizerConfig struct {
	Language    string            `yaml:"language" json:"language"`
	Aliases     []string          `yaml:"aliases" json:"aliases"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Unit        string            `yaml:"unit" json:"unit"`
	Timeout     string            `yaml:"timeout" json:"timeout"`
	Description string            `yaml:"description" json:"description"`
}

func (c TokenizerConfig) validate() (textpos.Unit, time.Duration, error) {
	if c.Command == "" {
		return "", 0, fmt.Errorf("tokenizer for %q has no command", c.Language)
	}
	unit, err := textpos.ParseUnit(c.Unit)
	if err != nil {
		return "", 0, fmt.Errorf("tokenizer for %q: %w", c.Language, err)
	}
	var timeout time.Duration
	if c.Timeout != "" {
		timeout, err = time.ParseDuration(c.Timeout)
		if err != nil {
			return "", 0, fmt.Errorf("tokenizer for %q: invalid timeout: %w", c.Language, err)
		}
	}
	return unit, timeout, nil
}

// ConfigFile represents the structure of tokenizers.yaml
type ConfigFile struct {
	Tokenizers []TokenizerConfig `yaml:"tokenizers" json:"tokenizers"`
}

// LoadTokenizers reads a configuration file (YAML or JSON) and returns the
// tokenizers keyed by language tag and by every alias.
func LoadTokenizers(path string) (map[string]TokenizerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means "no external tokenizers configured".
			return map[string]TokenizerConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tokenizers config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	byLanguage := make(map[string]TokenizerConfig)
	for _, tc := range cfg.Tokenizers {
		if tc.Language == "" {
			continue
		}
		if _, _, err := tc.validate(); err != nil {
			return nil, err
		}
		byLanguage[tc.Language] = tc
		for _, alias := range tc.Aliases {
			byLanguage[alias] = tc
		}
	}

	return byLanguage, nil
}
