package tui

import (
	"fmt"
	"io"
	"strings"
)

// PrintBanner writes the scribe banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := ProfileFor(w)
	lines := []struct {
		text, color string
	}{
		{"  ___  ___ _ __(_) |__   ___", "#2aa198"},
		{" / __|/ __| '__| | '_ \\ / _ \\", "#268bd2"},
		{" \\__ \\ (__| |  | | |_) |  __/", "#6c71c4"},
		{" |___/\\___|_|  |_|_.__/ \\___|", "#d33682"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
