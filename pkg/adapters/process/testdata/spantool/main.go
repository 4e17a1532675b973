// Command spantool is a toy external tokenizer used by the process adapter tests.
//
//	spantool [-unit byte|utf16|rune] [-fail] [-garbage] FILE
//
// It classifies keywords (let, var, func), integers, double-quoted strings and
// // comments, and also reports identifiers, which callers are expected to ignore.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"unicode"
	"unicode/utf8"
)

type span struct {
	Kind  string `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

var keywords = map[string]bool{"let": true, "var": true, "func": true}

func main() {
	unit := flag.String("unit", "byte", "offset unit")
	fail := flag.Bool("fail", false, "exit with an error")
	garbage := flag.Bool("garbage", false, "print invalid output")
	flag.Parse()

	if *fail {
		fmt.Fprintln(os.Stderr, "spantool: lexer exploded")
		os.Exit(2)
	}
	if *garbage {
		fmt.Println("this is not json")
		return
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	src := string(data)

	// offsets[i] is the offset, in the requested unit, of byte i.
	offsets := make([]int, len(src)+1)
	pos := 0
	for i, r := range src {
		offsets[i] = pos
		size := utf8.RuneLen(r)
		for k := 1; k < size; k++ {
			offsets[i+k] = pos
		}
		switch *unit {
		case "utf16":
			if r >= 0x10000 {
				pos += 2
			} else {
				pos++
			}
		case "rune":
			pos++
		default:
			pos += size
		}
	}
	offsets[len(src)] = pos

	var spans []span
	emit := func(kind string, start, end int) {
		spans = append(spans, span{Kind: kind, Start: offsets[start], End: offsets[end]})
	}

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case r == '/' && i+1 < len(src) && src[i+1] == '/':
			j := i
			for j < len(src) && src[j] != '\n' {
				j++
			}
			emit("comment", i, j)
			i = j
		case r == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				j++
			}
			if j < len(src) {
				j++
			}
			emit("string", i, j)
			i = j
		case r >= '0' && r <= '9':
			j := i
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			emit("number", i, j)
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(src) {
				rr, s := utf8.DecodeRuneInString(src[j:])
				if !unicode.IsLetter(rr) {
					break
				}
				j += s
			}
			if keywords[src[i:j]] {
				emit("keyword", i, j)
			} else {
				emit("identifier", i, j)
			}
			i = j
		default:
			i += size
		}
	}

	if spans == nil {
		spans = []span{}
	}
	_ = json.NewEncoder(os.Stdout).Encode(spans)
}
