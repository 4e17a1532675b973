// Package textpos converts positions between byte offsets and the other units
// external tools speak (UTF-16 code units, Unicode code points).
//
// The notebook core works in byte offsets throughout; these helpers are only
// used where a tokenizer or a client reports or expects a different unit.
package textpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/scribe/pkg/domain"
)

// Unit names a position unit.
type Unit string

const (
	Bytes  Unit = "byte"
	UTF16  Unit = "utf16"
	Runes  Unit = "rune"
	noUnit Unit = ""
)

// ParseUnit accepts the unit names used in configuration files and query strings.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case noUnit, Bytes, "bytes", "utf8":
		return Bytes, nil
	case UTF16, "utf-16", "codeunit":
		return UTF16, nil
	case Runes, "runes", "codepoint", "scalar":
		return Runes, nil
	}
	return "", fmt.Errorf("unknown position unit %q", s)
}

func width(r rune, u Unit) int {
	switch u {
	case UTF16:
		if r >= 0x10000 {
			return 2
		}
		return 1
	case Runes:
		return 1
	}
	return utf8.RuneLen(r)
}

// Index maps offsets of one unit to byte offsets for a fixed text.
// Building it is O(n); each lookup is O(1) (to bytes) or O(log n) (from bytes).
type Index struct {
	unit Unit
	// toByte[i] is the byte offset of unit offset i; the last entry is len(text).
	toByte []int
}

// NewIndex builds an index for text in the given unit.
func NewIndex(text string, unit Unit) *Index {
	idx := &Index{unit: unit}
	if unit == Bytes {
		return idx
	}
	idx.toByte = make([]int, 0, len(text)+1)
	for i, r := range text {
		if r == utf8.RuneError {
			// Invalid bytes count as one unit each so every byte stays addressable.
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				idx.toByte = append(idx.toByte, i)
				continue
			}
		}
		for w := width(r, unit); w > 0; w-- {
			idx.toByte = append(idx.toByte, i)
		}
	}
	idx.toByte = append(idx.toByte, len(text))
	return idx
}

// ToByte converts an offset in the index unit to a byte offset, clamping to the text.
func (x *Index) ToByte(off int) int {
	if x.unit == Bytes {
		return off
	}
	if off <= 0 {
		return 0
	}
	if off >= len(x.toByte) {
		return x.toByte[len(x.toByte)-1]
	}
	return x.toByte[off]
}

// FromByte converts a byte offset to the index unit. A byte offset inside a
// multi-byte sequence maps to the unit that starts the sequence.
func (x *Index) FromByte(off int) int {
	if x.unit == Bytes {
		return off
	}
	lo, hi := 0, len(x.toByte)-1
	if off <= 0 {
		return 0
	}
	if off >= x.toByte[hi] {
		return hi
	}
	// Last unit whose byte offset is <= off.
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if x.toByte[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	// Surrogate pairs share a byte offset; report the first half.
	for lo > 0 && x.toByte[lo-1] == x.toByte[lo] {
		lo--
	}
	return lo
}

// RangeToBytes converts a range expressed in the index unit.
func (x *Index) RangeToBytes(r domain.Range) domain.Range {
	return domain.Range{Start: x.ToByte(r.Start), End: x.ToByte(r.End)}
}

// RangeFromBytes converts a byte range into the index unit.
func (x *Index) RangeFromBytes(r domain.Range) domain.Range {
	return domain.Range{Start: x.FromByte(r.Start), End: x.FromByte(r.End)}
}

// TokensToBytes rewrites token ranges from unit into byte offsets of text.
func TokensToBytes(text string, unit Unit, tokens []domain.Token) []domain.Token {
	if unit == Bytes || unit == noUnit {
		return tokens
	}
	idx := NewIndex(text, unit)
	out := make([]domain.Token, len(tokens))
	for i, t := range tokens {
		out[i] = domain.Token{Range: idx.RangeToBytes(t.Range), Kind: t.Kind}
	}
	return out
}

// TokensFromBytes rewrites byte-offset token ranges of text into unit.
func TokensFromBytes(text string, unit Unit, tokens []domain.Token) []domain.Token {
	if unit == Bytes || unit == noUnit {
		return tokens
	}
	idx := NewIndex(text, unit)
	out := make([]domain.Token, len(tokens))
	for i, t := range tokens {
		out[i] = domain.Token{Range: idx.RangeFromBytes(t.Range), Kind: t.Kind}
	}
	return out
}
