package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/pkg/treesitter"
	"github.com/google/uuid"
	sitter "github.com/smacker/go-tree-sitter"
)

// JavaParser turns Java source files into classes and relationships.
type JavaParser struct{}

func NewJavaParser() *JavaParser {
	return &JavaParser{}
}

// Parse extracts every class and interface declared in file, nested ones
// included, in declaration order. Files in other languages yield an empty
// result. Syntax errors yield an empty result and an error wrapping
// errs.ErrParseFailed.
func (p *JavaParser) Parse(ctx context.Context, file *models.SourceFile) (result models.ParseResult, err error) {
	if file.Language != models.LanguageJava {
		return result, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = models.ParseResult{}
			err = fmt.Errorf("%s: panic: %v: %w", file.Path, r, errs.ErrParseFailed)
		}
	}()

	// tree-sitter parsers are not goroutine-safe.
	parser := treesitter.NewParser()
	defer parser.Close()

	content := []byte(file.Content)
	tree, err := parser.Parse(ctx, content, file.Language)
	if err != nil {
		return result, fmt.Errorf("%s: %v: %w", file.Path, err, errs.ErrParseFailed)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return result, fmt.Errorf("%s: syntax error: %w", file.Path, errs.ErrParseFailed)
	}

	unit := compilationUnit{
		packageName: packageName(root, content),
		imports:     imports(root, content),
	}

	traverseNode(root, func(node *sitter.Node) {
		switch node.Type() {
		case "class_declaration", "interface_declaration":
			class, rels := unit.extractClass(node, content, file)
			result.Classes = append(result.Classes, class)
			result.Relationships = append(result.Relationships, rels...)
		}
	})
	return result, nil
}

type compilationUnit struct {
	packageName string
	imports     []string
}

func (u compilationUnit) extractClass(node *sitter.Node, content []byte, file *models.SourceFile) (*models.CodeClass, []*models.CodeRelationship) {
	name := getNodeContent(node.ChildByFieldName("name"), content)
	fqn := name
	if u.packageName != "" {
		fqn = u.packageName + "." + name
	}

	class := &models.CodeClass{
		ID:          uuid.New().String(),
		FileID:      file.ID,
		CodebaseID:  file.CodebaseID,
		Name:        name,
		PackageName: u.packageName,
		FQN:         fqn,
		IsInterface: node.Type() == "interface_declaration",
		IsAbstract:  hasModifier(node, "abstract"),
		StartLine:   startLine(node),
		EndLine:     endLine(node),
		Methods:     []models.CodeMethod{},
		Fields:      []models.CodeField{},
	}

	var extended, implemented []string
	if class.IsInterface {
		extended = typeList(childOfType(node, "extends_interfaces"), content)
	} else {
		if sc := childOfType(node, "superclass"); sc != nil && sc.NamedChildCount() > 0 {
			extended = []string{simpleTypeName(sc.NamedChild(0), content)}
		}
		implemented = typeList(childOfType(node, "super_interfaces"), content)
	}
	if len(extended) > 0 {
		class.ExtendsName = extended[0]
	}

	var usesFields []*sitter.Node
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			switch member.Type() {
			case "method_declaration":
				class.Methods = append(class.Methods, extractMethod(member, content))
			case "field_declaration", "constant_declaration":
				class.Fields = append(class.Fields, extractFields(member, content)...)
				usesFields = append(usesFields, member)
			}
		}
	}

	newRel := func(kind models.RelationshipKind, target string, line *int) *models.CodeRelationship {
		return &models.CodeRelationship{
			ID:              uuid.New().String(),
			CodebaseID:      file.CodebaseID,
			SourceClassID:   class.ID,
			TargetClassName: target,
			Kind:            kind,
			Line:            line,
		}
	}

	var rels []*models.CodeRelationship
	for _, imp := range u.imports {
		rels = append(rels, newRel(models.RelImports, imp, nil))
	}
	for _, ext := range extended {
		rels = append(rels, newRel(models.RelExtends, ext, intPtr(class.StartLine)))
	}
	for _, impl := range implemented {
		rels = append(rels, newRel(models.RelImplements, impl, intPtr(class.StartLine)))
	}
	for _, field := range usesFields {
		fieldType := getNodeContent(field.ChildByFieldName("type"), content)
		if fieldType == "" || models.PrimitiveTypes[fieldType] {
			continue
		}
		rels = append(rels, newRel(models.RelUses, fieldType, intPtr(startLine(field))))
	}
	return class, rels
}

func extractMethod(node *sitter.Node, content []byte) models.CodeMethod {
	return models.CodeMethod{
		ID:         uuid.New().String(),
		Name:       getNodeContent(node.ChildByFieldName("name"), content),
		ReturnType: getNodeContent(node.ChildByFieldName("type"), content),
		Parameters: parameterSignature(node.ChildByFieldName("parameters"), content),
		IsStatic:   hasModifier(node, "static"),
		IsPublic:   hasModifier(node, "public"),
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}
}

// parameterSignature renders formal parameters as "Type name, Type name".
func parameterSignature(params *sitter.Node, content []byte) string {
	if params == nil {
		return ""
	}
	var parts []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "formal_parameter":
			parts = append(parts, getNodeContent(param.ChildByFieldName("type"), content)+" "+
				getNodeContent(param.ChildByFieldName("name"), content))
		case "spread_parameter":
			var typ, name string
			for j := 0; j < int(param.NamedChildCount()); j++ {
				child := param.NamedChild(j)
				switch child.Type() {
				case "modifiers":
				case "variable_declarator":
					name = getNodeContent(child.ChildByFieldName("name"), content)
				default:
					if typ == "" {
						typ = getNodeContent(child, content)
					}
				}
			}
			parts = append(parts, typ+"... "+name)
		}
	}
	return strings.Join(parts, ", ")
}

// extractFields returns one field per declarator of a field declaration.
func extractFields(node *sitter.Node, content []byte) []models.CodeField {
	fieldType := getNodeContent(node.ChildByFieldName("type"), content)
	isStatic := hasModifier(node, "static")
	isFinal := hasModifier(node, "final")

	var fields []models.CodeField
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		// C-style arrays put the brackets on the declarator: int counts[];
		dims := strings.Join(strings.Fields(getNodeContent(decl.ChildByFieldName("dimensions"), content)), "")
		fields = append(fields, models.CodeField{
			Name:     getNodeContent(decl.ChildByFieldName("name"), content),
			Type:     fieldType + dims,
			IsStatic: isStatic,
			IsFinal:  isFinal,
			Line:     startLine(decl),
		})
	}
	return fields
}

func packageName(root *sitter.Node, content []byte) string {
	decl := childOfType(root, "package_declaration")
	if decl == nil {
		return ""
	}
	return qualifiedName(decl, content)
}

// imports returns the imported names in source order, without a trailing ".*".
func imports(root *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "import_declaration" {
			if name := qualifiedName(child, content); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func qualifiedName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			return getNodeContent(child, content)
		}
	}
	return ""
}

// typeList returns the simple names listed in an extends/implements clause.
func typeList(clause *sitter.Node, content []byte) []string {
	if clause == nil {
		return nil
	}
	list := childOfType(clause, "type_list")
	if list == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		names = append(names, simpleTypeName(list.NamedChild(i), content))
	}
	return names
}

// simpleTypeName drops type arguments and qualifiers: a.b.Base<T> becomes Base.
func simpleTypeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "generic_type":
		if node.NamedChildCount() > 0 {
			return simpleTypeName(node.NamedChild(0), content)
		}
	case "scoped_type_identifier":
		if n := node.NamedChildCount(); n > 0 {
			return simpleTypeName(node.NamedChild(int(n)-1), content)
		}
	}
	return getNodeContent(node, content)
}

func hasModifier(node *sitter.Node, modifier string) bool {
	mods := childOfType(node, "modifiers")
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		if mods.Child(i).Type() == modifier {
			return true
		}
	}
	return false
}

func childOfType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// traverseNode visits node and its named descendants in pre-order.
func traverseNode(node *sitter.Node, callback func(*sitter.Node)) {
	if node == nil {
		return
	}

	callback(node)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		traverseNode(node.NamedChild(i), callback)
	}
}

func getNodeContent(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(content)
}

func startLine(node *sitter.Node) int { return int(node.StartPoint().Row) + 1 }

func endLine(node *sitter.Node) int { return int(node.EndPoint().Row) + 1 }

func intPtr(v int) *int { return &v }
