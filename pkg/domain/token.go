package domain

import "fmt"

// TokenKind classifies a highlighted span.
type TokenKind int

const (
	KindString TokenKind = iota
	KindNumber
	KindKeyword
	KindComment
)

var kindNames = [...]string{
	KindString:  "string",
	KindNumber:  "number",
	KindKeyword: "keyword",
	KindComment: "comment",
}

// String returns the lower case name of the kind.
func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseTokenKind maps a lower case name back to its kind.
func ParseTokenKind(name string) (TokenKind, error) {
	for i, n := range kindNames {
		if n == name {
			return TokenKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown token kind %q", name)
}

// MarshalText encodes the kind by name so JSON and YAML stay readable.
func (k TokenKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid token kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind from its name.
func (k *TokenKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Range is a half-open [Start, End) span of byte offsets.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether offset lies inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Shift moves the range by delta bytes.
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

// Token is one highlighted span. Its range is local to the text it was produced for.
type Token struct {
	Range Range     `json:"range"`
	Kind  TokenKind `json:"kind"`
}
