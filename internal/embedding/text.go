package embedding

import (
	"strings"

	"github.com/dpolishuk/coderag/internal/models"
)

const previewLimit = 1000

// ClassText is the canonical text embedded for a class.
func ClassText(c *models.CodeClass) string {
	var b strings.Builder
	b.WriteString("Class: " + c.Name + "\n")
	b.WriteString("Package: " + c.PackageName + "\n")
	b.WriteString("Fully Qualified Name: " + c.FQN + "\n")

	if len(c.Methods) > 0 {
		names := make([]string, len(c.Methods))
		for i, m := range c.Methods {
			names[i] = m.Name
		}
		b.WriteString("Methods: " + strings.Join(names, ", ") + "\n")
	}
	if len(c.Fields) > 0 {
		fields := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.Name + ": " + f.Type
		}
		b.WriteString("Fields: " + strings.Join(fields, ", ") + "\n")
	}
	if c.ExtendsName != "" {
		b.WriteString("Extends: " + c.ExtendsName + "\n")
	}
	return b.String()
}

// MethodText is the canonical text embedded for a method of class c.
func MethodText(c *models.CodeClass, m *models.CodeMethod) string {
	var b strings.Builder
	b.WriteString("Method: " + m.Name + "\n")
	b.WriteString("Class: " + c.Name + "\n")
	if m.Parameters != "" {
		b.WriteString("Parameters: " + m.Parameters + "\n")
	}
	if m.ReturnType != "" {
		b.WriteString("Return Type: " + m.ReturnType + "\n")
	}
	return b.String()
}

// Preview truncates text to 1000 characters, appending "..." when cut.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
