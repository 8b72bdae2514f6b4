package models

import (
	"path/filepath"
	"strings"
)

type SourceFile struct {
	ID         string `json:"id"`
	CodebaseID string `json:"codebaseId"`
	Path       string `json:"path"`
	Content    string `json:"content,omitempty"`
	Language   string `json:"language"`
	LineCount  int    `json:"lineCount"`
	Size       int64  `json:"size"`
}

const LanguageJava = "Java"

// Language detection by extension
var LanguageByExtension = map[string]string{
	".java": LanguageJava,
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".py":   "Python",
	".cpp":  "C++",
	".hpp":  "C++",
	".c":    "C",
	".h":    "C/C++ Header",
	".go":   "Go",
	".rs":   "Rust",
	".rb":   "Ruby",
	".php":  "PHP",
}

// DetectLanguage returns the language for path, or "" when the extension is not ingested.
func DetectLanguage(path string) string {
	return LanguageByExtension[strings.ToLower(filepath.Ext(path))]
}

// CountLines counts newline-delimited lines plus one.
func CountLines(content string) int {
	return strings.Count(content, "\n") + 1
}
