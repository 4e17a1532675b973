package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTokenizers(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "tokenizers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tokenizers:
  - language: swift
    aliases: [swift-example]
    command: swift-highlight
    args: ["--json", "{file}"]
    unit: utf16
    timeout: 2s
  - command: ignored-without-language
`), 0o644))

		got, err := LoadTokenizers(path)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "swift-highlight", got["swift"].Command)
		assert.Equal(t, got["swift"], got["swift-example"])
		assert.Equal(t, []string{"--json", "{file}"}, got["swift"].Args)

		tok := NewTokenizer(WithRegistry(got))
		assert.Equal(t, []string{"swift", "swift-example"}, tok.Languages())
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "tokenizers.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tokenizers":[{"language":"go","command":"golex"}]}`), 0o644))

		got, err := LoadTokenizers(path)
		require.NoError(t, err)
		assert.Equal(t, "golex", got["go"].Command)
	})

	t.Run("Missing File", func(t *testing.T) {
		got, err := LoadTokenizers(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Invalid Unit", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tokenizers:\n  - language: x\n    command: y\n    unit: furlong\n"), 0o644))
		_, err := LoadTokenizers(path)
		assert.Error(t, err)
	})
}

func TestExpandArgs(t *testing.T) {
	assert.Equal(t, []string{"-l", "swift", "/tmp/a"}, expandArgs([]string{"-l", "{language}"}, "/tmp/a", "swift"))
	assert.Equal(t, []string{"--in=/tmp/a"}, expandArgs([]string{"--in={file}"}, "/tmp/a", "swift"))
}
