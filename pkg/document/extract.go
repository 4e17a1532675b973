package document

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/aretw0/scribe/pkg/domain"
)

var parser = goldmark.New().Parser()

// Extract returns the fenced code blocks of a markdown source in document order.
// Range is the byte range of the block content (without the final line break);
// Language is the first word of the info string. Empty blocks are skipped.
func Extract(source []byte) []domain.Fragment {
	root := parser.Parse(text.NewReader(source))

	var fragments []domain.Fragment
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if f, ok := fragmentOf(block, source); ok {
			fragments = append(fragments, f)
		}
		return ast.WalkSkipChildren, nil
	})
	return fragments
}

func fragmentOf(block *ast.FencedCodeBlock, source []byte) (domain.Fragment, bool) {
	lines := block.Lines()
	if lines.Len() == 0 {
		return domain.Fragment{}, false
	}

	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	start := lines.At(0).Start
	end := lines.At(lines.Len() - 1).Stop

	content := buf.Bytes()
	if bytes.HasSuffix(content, []byte("\n")) {
		content = content[:len(content)-1]
		if end > start && source[end-1] == '\n' {
			end--
		}
	}
	if bytes.HasSuffix(content, []byte("\r")) {
		content = content[:len(content)-1]
		if end > start && source[end-1] == '\r' {
			end--
		}
	}

	return domain.Fragment{
		Text:     string(content),
		Language: string(block.Language(source)),
		Range:    domain.Range{Start: start, End: end},
	}, true
}
