package repl

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/scribe/pkg/domain"
)

// DefaultEchoPattern matches the result echo prefix of Swift-style REPLs ("$R0: ").
const DefaultEchoPattern = `^\$R\d+: `

// Framer extracts marker-delimited frames from a byte stream.
// It is not safe for concurrent use; the driver serializes writes per session.
type Framer struct {
	start    []byte
	end      []byte
	echo     *regexp.Regexp
	maxBytes int
	buf      []byte
}

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithEchoPattern strips matches of re from the start of every output line.
// A nil pattern disables stripping.
func WithEchoPattern(re *regexp.Regexp) FramerOption {
	return func(f *Framer) {
		f.echo = re
	}
}

// WithMaxBytes bounds the bytes buffered while waiting for a frame to close.
func WithMaxBytes(n int) FramerOption {
	return func(f *Framer) {
		f.maxBytes = n
	}
}

// NewFramer creates a framer for the marker pair "<"+marker / ">"+marker.
func NewFramer(marker string, opts ...FramerOption) *Framer {
	f := &Framer{
		start: []byte(StartMarker(marker)),
		end:   []byte(EndMarker(marker)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StartMarker returns the text printed before each evaluation.
func StartMarker(marker string) string { return "<" + marker }

// EndMarker returns the text printed after each evaluation.
func EndMarker(marker string) string { return ">" + marker }

// StartMarker returns the framer's start marker.
func (f *Framer) StartMarker() string { return string(f.start) }

// EndMarker returns the framer's end marker.
func (f *Framer) EndMarker() string { return string(f.end) }

// Buffered returns the number of bytes held while waiting for a marker.
func (f *Framer) Buffered() int { return len(f.buf) }

// Write feeds stdout bytes and returns the outputs of every frame closed by them.
// Bytes before a start marker are discarded. When more than the configured
// limit is buffered without a closed frame, the buffer is dropped and the
// returned error wraps domain.ErrFrameOverflow.
func (f *Framer) Write(p []byte) ([]string, error) {
	f.buf = append(f.buf, p...)

	var outputs []string
	for {
		i := bytes.Index(f.buf, f.start)
		if i < 0 {
			// Keep just enough to recognise a start marker split across writes.
			if keep := len(f.start) - 1; len(f.buf) > keep {
				f.compact(len(f.buf) - keep)
			}
			break
		}
		if i > 0 {
			f.compact(i)
		}

		body := f.buf[len(f.start):]
		j := bytes.Index(body, f.end)
		if j < 0 {
			break
		}
		outputs = append(outputs, f.clean(body[:j]))
		f.compact(len(f.start) + j + len(f.end))
	}

	if f.maxBytes > 0 && len(f.buf) > f.maxBytes {
		n := len(f.buf)
		f.buf = f.buf[:0]
		return outputs, fmt.Errorf("%w: %d bytes buffered without an end marker", domain.ErrFrameOverflow, n)
	}
	return outputs, nil
}

// Reset drops any buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// compact drops the first n buffered bytes, reusing the backing array.
func (f *Framer) compact(n int) {
	m := copy(f.buf, f.buf[n:])
	f.buf = f.buf[:m]
}

// clean turns raw frame content into output text: the line break that ends
// the start marker line and the one before the end marker are removed, CRLF
// line endings become LF, then the echo prefix is stripped from every line.
func (f *Framer) clean(content []byte) string {
	s := string(content)
	s = trimLeadingNewline(s)
	s = trimTrailingNewline(s)
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if f.echo != nil {
			if loc := f.echo.FindStringIndex(line); loc != nil && loc[0] == 0 {
				line = line[loc[1]:]
			}
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func trimLeadingNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	return strings.TrimPrefix(s, "\n")
}

func trimTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}
