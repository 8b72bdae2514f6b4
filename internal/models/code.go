package models

type CodeClass struct {
	ID          string       `json:"id"`
	FileID      string       `json:"fileId"`
	CodebaseID  string       `json:"codebaseId"`
	Name        string       `json:"name"`
	PackageName string       `json:"packageName,omitempty"`
	FQN         string       `json:"fullyQualifiedName"`
	IsInterface bool         `json:"isInterface"`
	IsAbstract  bool         `json:"isAbstract"`
	ExtendsName string       `json:"extendsName,omitempty"`
	StartLine   int          `json:"startLine"`
	EndLine     int          `json:"endLine"`
	Methods     []CodeMethod `json:"methods"`
	Fields      []CodeField  `json:"fields"`
}

type CodeMethod struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ReturnType string `json:"returnType,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	IsStatic   bool   `json:"isStatic"`
	IsPublic   bool   `json:"isPublic"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
}

type CodeField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsStatic bool   `json:"isStatic"`
	IsFinal  bool   `json:"isFinal"`
	Line     int    `json:"lineNumber"`
}

type RelationshipKind string

const (
	RelImports    RelationshipKind = "IMPORTS"
	RelExtends    RelationshipKind = "EXTENDS"
	RelImplements RelationshipKind = "IMPLEMENTS"
	RelUses       RelationshipKind = "USES"
)

type CodeRelationship struct {
	ID              string           `json:"id"`
	CodebaseID      string           `json:"codebaseId"`
	SourceClassID   string           `json:"sourceClassId"`
	TargetClassID   *string          `json:"targetClassId"`
	TargetClassName string           `json:"targetClassName"`
	Kind            RelationshipKind `json:"kind"`
	SourceMethodID  *string          `json:"sourceMethodId,omitempty"`
	Line            *int             `json:"lineNumber"`
}

// PrimitiveTypes never produce a USES relationship. String is included on purpose.
var PrimitiveTypes = map[string]bool{
	"int":     true,
	"long":    true,
	"double":  true,
	"float":   true,
	"boolean": true,
	"char":    true,
	"byte":    true,
	"short":   true,
	"String":  true,
	"void":    true,
}

// ParseResult is the structural document produced for one source file.
type ParseResult struct {
	Classes       []*CodeClass
	Relationships []*CodeRelationship
}
