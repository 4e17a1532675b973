package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scribe/pkg/domain/textpos"
)

var fakeREPL string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "scribe-cli-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	exe := filepath.Join(dir, "fakerepl")
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", exe, "../../pkg/repl/testdata/fakerepl")
	if out, err := cmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build fakerepl: %v\n%s", err, out)
		os.RemoveAll(dir)
		os.Exit(1)
	}
	fakeREPL = exe

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// setup writes a notebook and a config pointing at the fake interpreter.
func setup(t *testing.T, notebook string) Options {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte(notebook), 0o644))

	cfgPath := filepath.Join(dir, "scribe.yaml")
	cfg := fmt.Sprintf(`interpreter:
  command: [%q]
  env: ["FAKEREPL_NO_BANNER=1"]
  eval_timeout: 5s
languages:
  executable: [swift]
log:
  level: error
`, fakeREPL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	return Options{
		Path:       path,
		ConfigPath: cfgPath,
		Quiet:      true,
		Stdout:     &bytes.Buffer{},
		Stderr:     io.Discard,
	}
}

func lines(t *testing.T, w io.Writer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(w.(*bytes.Buffer).Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	t.Run("all blocks succeed", func(t *testing.T) {
		opts := setup(t, "# Sums\n\n```swift\n1 + 2\n```\n\n```swift-example\nskipped\n```\n\n```swift\nprint(\"hi\")\n```\n")
		opts.JSON = true
		require.NoError(t, Run(ctx, opts))

		got := lines(t, opts.Stdout)
		require.Len(t, got, 2)
		assert.Equal(t, float64(0), got[0]["index"])
		assert.Equal(t, "3", got[0]["stdout"])
		assert.Equal(t, float64(2), got[1]["index"])
		assert.Equal(t, "hi", got[1]["stdout"])
	})

	t.Run("stderr fails the run", func(t *testing.T) {
		opts := setup(t, "```swift\nthrow nope\n```\n")
		opts.JSON = true
		err := Run(ctx, opts)
		assert.ErrorIs(t, err, ErrEvaluationFailed)

		got := lines(t, opts.Stdout)
		require.Len(t, got, 1)
		assert.Equal(t, "error: nope", got[0]["stderr"])
	})

	t.Run("terminal rendering", func(t *testing.T) {
		opts := setup(t, "Intro\n\n```swift\n2 + 2\n```\n")
		require.NoError(t, Run(ctx, opts))
		out := opts.Stdout.(*bytes.Buffer).String()
		assert.Contains(t, out, "2 + 2")
		assert.Contains(t, out, "│ 4")
	})

	t.Run("missing notebook", func(t *testing.T) {
		opts := setup(t, "")
		opts.Path = filepath.Join(t.TempDir(), "absent.md")
		assert.Error(t, Run(ctx, opts))
	})
}

func TestHighlight(t *testing.T) {
	opts := setup(t, "x\n\n```go\nx := \"é\"\n```\n")
	opts.JSON = true
	require.NoError(t, Highlight(context.Background(), opts, textpos.UTF16))

	got := lines(t, opts.Stdout)
	require.Len(t, got, 1)
	assert.Equal(t, "go", got[0]["language"])
	tokens, ok := got[0]["tokens"].([]any)
	require.True(t, ok)

	var str map[string]any
	for _, tok := range tokens {
		if m := tok.(map[string]any); m["kind"] == "string" {
			str = m["range"].(map[string]any)
		}
	}
	require.NotNil(t, str, "string literal is highlighted")
	assert.Equal(t, float64(5), str["start"])
	assert.Equal(t, float64(8), str["end"], "utf16 offsets: é is one code unit")
}

func TestLoadConfig_Overrides(t *testing.T) {
	opts := setup(t, "")
	opts.Interpreter = []string{"python3", "-i"}
	opts.EvalTimeout = time.Minute
	opts.Tokenizer = "process"
	opts.RedisAddr = "localhost:6379"
	opts.Debug = true

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "-i"}, cfg.Interpreter.Command)
	assert.Equal(t, time.Minute, cfg.Interpreter.EvalTimeout)
	assert.Equal(t, "process", cfg.Highlight.Tokenizer)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"FAKEREPL_NO_BANNER=1"}, cfg.Interpreter.Env)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Error(t, handleExecutionError(io.ErrUnexpectedEOF))
}
