package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Keys are lowercase language names.
var languages = map[string]*sitter.Language{
	"java": java.GetLanguage(),
}

func GetLanguage(name string) *sitter.Language {
	return languages[name]
}
