package treesitter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps one tree-sitter parser. It is not safe for concurrent use;
// create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// Parse returns the syntax tree of content. The caller closes the tree.
func (p *Parser) Parse(ctx context.Context, content []byte, language string) (*sitter.Tree, error) {
	lang := GetLanguage(strings.ToLower(language))
	if lang == nil {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.parser.SetLanguage(lang)

	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return tree, nil
}

func (p *Parser) Close() {
	p.parser.Close()
}
