package scribe_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/config"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/ports"
)

// ExampleNotebook_Highlight highlights a notebook without ever starting an interpreter.
func ExampleNotebook_Highlight() {
	// 1. A toy tokenizer: every digit is a number.
	digits := ports.TokenizerFunc(func(_ context.Context, _ string, source string) ([]domain.Token, error) {
		var tokens []domain.Token
		for i, r := range source {
			if r >= '0' && r <= '9' {
				tokens = append(tokens, domain.Token{Range: domain.Range{Start: i, End: i + 1}, Kind: domain.KindNumber})
			}
		}
		return tokens, nil
	})

	nb, err := scribe.New(config.Default(), scribe.WithTokenizer(digits))
	if err != nil {
		log.Fatal(err)
	}
	defer nb.Close()

	// 2. Load markdown and highlight its blocks.
	nb.Load([]byte("# Demo\n\n```swift\nlet x = 42\n```\n"))
	results, err := nb.Highlight(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, res := range results {
		var parts []string
		for _, tok := range res.Tokens {
			parts = append(parts, fmt.Sprintf("%s@%d", tok.Kind, tok.Range.Start))
		}
		fmt.Println(res.Fragment.Text, "->", strings.Join(parts, " "))
	}
	// Output:
	// let x = 42 -> number@8 number@9
}
