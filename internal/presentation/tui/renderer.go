package tui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/highlight"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ProfileFor returns the color profile to use when writing to w. Anything
// that is not a terminal gets plain text.
func ProfileFor(w io.Writer) termenv.Profile {
	if !IsTerminal(w) {
		return termenv.Ascii
	}
	return termenv.NewOutput(w.(*os.File)).ColorProfile()
}

// Width returns the terminal width of w, or fallback.
func Width(w io.Writer, fallback int) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			return cols
		}
	}
	return fallback
}

// NewMarkdownRenderer returns a function that renders prose using glamour.
// Plain profiles use the notty style so output stays free of escape codes.
func NewMarkdownRenderer(profile termenv.Profile, width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(profile),
	}
	if profile == termenv.Ascii {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// Renderer prints a notebook to a terminal: prose through glamour, code
// blocks through the highlighter's tokens, results below their block.
type Renderer struct {
	out      io.Writer
	profile  termenv.Profile
	style    highlight.Style
	markdown func(string) (string, error)
}

// NewRenderer creates a Renderer for w.
func NewRenderer(w io.Writer, style highlight.Style) *Renderer {
	p := ProfileFor(w)
	return &Renderer{
		out:      w,
		profile:  p,
		style:    style,
		markdown: NewMarkdownRenderer(p, Width(w, 80)),
	}
}

// Notebook renders the whole document. results may be nil.
func (r *Renderer) Notebook(source []byte, blocks []highlight.Result, results map[int]scribe.Result) error {
	frags := make([]domain.Fragment, len(blocks))
	for i, b := range blocks {
		frags[i] = b.Fragment
	}
	prose := SplitProse(source, frags)

	for i, b := range blocks {
		if err := r.Prose(prose[i]); err != nil {
			return err
		}
		r.Code(i, b)
		if res, ok := results[i]; ok {
			r.Result(res)
		}
	}
	return r.Prose(prose[len(blocks)])
}

// Prose renders markdown text without code blocks.
func (r *Renderer) Prose(markdown string) error {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}
	out, err := r.markdown(markdown)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	fmt.Fprint(r.out, out)
	return nil
}

// Code renders one highlighted block with a header line.
func (r *Renderer) Code(index int, b highlight.Result) {
	header := fmt.Sprintf("── [%d] %s", index, b.Fragment.Language)
	fmt.Fprintln(r.out, r.profile.String(header).Faint())
	fmt.Fprintln(r.out, highlight.RenderANSI(b.Fragment.Text, b.Tokens, r.style, r.profile))
	if b.Fragment.Error != "" {
		fmt.Fprintln(r.out, r.colored("! "+Sanitize(b.Fragment.Error), "#dc322f"))
	}
}

// Result renders the output of one evaluation.
func (r *Renderer) Result(res scribe.Result) {
	if res.Stdout != "" {
		for _, line := range strings.Split(Sanitize(res.Stdout), "\n") {
			fmt.Fprintln(r.out, r.colored("│ "+line, "#93a1a1"))
		}
	}
	if res.Stderr != "" {
		for _, line := range strings.Split(Sanitize(res.Stderr), "\n") {
			fmt.Fprintln(r.out, r.colored("│ "+line, "#dc322f"))
		}
	}
	if res.Err != nil {
		fmt.Fprintln(r.out, r.colored("│ "+res.Err.Error(), "#cb4b16"))
	}
}

func (r *Renderer) colored(s, hex string) string {
	return r.profile.String(s).Foreground(r.profile.Color(hex)).String()
}

// SplitProse returns the markdown around the fenced blocks of source:
// element i precedes fragment i and the last element follows the last fragment.
// Fence lines are dropped.
func SplitProse(source []byte, frags []domain.Fragment) []string {
	sorted := append([]domain.Fragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })

	out := make([]string, 0, len(sorted)+1)
	pos := 0
	for _, f := range sorted {
		open := lineStart(source, f.Range.Start-1)
		if open < pos {
			open = pos
		}
		out = append(out, string(source[pos:open]))
		pos = lineEnd(source, lineEnd(source, f.Range.End)+1) + 1
		if pos > len(source) {
			pos = len(source)
		}
	}
	out = append(out, string(source[pos:]))
	return out
}

// lineStart returns the offset of the line holding source[off].
func lineStart(source []byte, off int) int {
	if off <= 0 {
		return 0
	}
	if off > len(source) {
		off = len(source)
	}
	return bytes.LastIndexByte(source[:off], '\n') + 1
}

// lineEnd returns the offset of the line break ending the line at off, or len(source).
func lineEnd(source []byte, off int) int {
	if off >= len(source) {
		return len(source)
	}
	if i := bytes.IndexByte(source[off:], '\n'); i >= 0 {
		return off + i
	}
	return len(source)
}
