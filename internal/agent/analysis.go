package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/coderag/internal/models"
)

const (
	explainInstruction  = "You are a code analysis expert. Explain classes thoroughly with design patterns and improvement suggestions."
	refactorInstruction = "You are a refactoring expert. Identify SOLID violations, code smells, and suggest specific improvements."
)

// ExplainClass asks the provider to explain class. outgoing and incoming are
// the relationships whose source and target is the class.
func (a *Assembler) ExplainClass(ctx context.Context, class *models.CodeClass, outgoing, incoming []*models.CodeRelationship) (*models.ClassAnalysis, error) {
	details := ClassDetails(class)
	deps := Summarize(outgoing, incoming)
	user := fmt.Sprintf("Explain this class:\n%s\nDependencies: %d, Dependents: %d", details, deps.Dependencies, deps.Dependents)
	return a.analyze(ctx, explainInstruction, user, details, deps)
}

// SuggestRefactoring asks the provider for refactoring advice on class.
func (a *Assembler) SuggestRefactoring(ctx context.Context, class *models.CodeClass, outgoing, incoming []*models.CodeRelationship) (*models.ClassAnalysis, error) {
	details := ClassDetails(class)
	return a.analyze(ctx, refactorInstruction, "Analyze for refactoring:\n"+details, details, Summarize(outgoing, incoming))
}

func (a *Assembler) analyze(ctx context.Context, system, user, details string, deps models.DependencySummary) (*models.ClassAnalysis, error) {
	answer, err := a.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return &models.ClassAnalysis{Answer: answer, ClassDetails: details, Dependencies: deps}, nil
}

// Status pings the provider. A failed ping is reported, not returned.
func (a *Assembler) Status(ctx context.Context) models.ProviderStatus {
	st := models.ProviderStatus{Provider: a.generator.Name(), Model: a.generator.Model()}
	if err := a.generator.Ping(ctx); err != nil {
		a.log.Warningf("provider %s is not responding: %s", st.Provider, err)
		st.Message = st.Provider + " is not responding. Please check configuration."
		return st
	}
	st.Connected = true
	st.Message = st.Provider + " is running and ready"
	return st
}

// ClassDetails renders the outline of class used in class prompts.
func ClassDetails(class *models.CodeClass) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Class: %s ===\n", class.Name)
	fmt.Fprintf(&b, "Package: %s\n", class.PackageName)
	kind := "Class"
	if class.IsInterface {
		kind = "Interface"
	}
	fmt.Fprintf(&b, "Type: %s\n", kind)
	if class.ExtendsName != "" {
		fmt.Fprintf(&b, "Extends: %s\n", class.ExtendsName)
	}
	fmt.Fprintf(&b, "\nMethods: %d\n", len(class.Methods))
	for _, m := range class.Methods {
		ret := m.ReturnType
		if ret == "" {
			ret = "void"
		}
		fmt.Fprintf(&b, "  %s %s(%s)\n", ret, m.Name, m.Parameters)
	}
	fmt.Fprintf(&b, "Fields: %d\n", len(class.Fields))
	for _, f := range class.Fields {
		fmt.Fprintf(&b, "  %s %s\n", f.Type, f.Name)
	}
	b.WriteString("\n")
	return b.String()
}

// Summarize counts outgoing and incoming relationships, grouping the
// outgoing ones by kind.
func Summarize(outgoing, incoming []*models.CodeRelationship) models.DependencySummary {
	sum := models.DependencySummary{
		Dependencies:   len(outgoing),
		Dependents:     len(incoming),
		OutgoingByType: map[string]int{},
	}
	for _, r := range outgoing {
		sum.OutgoingByType[string(r.Kind)]++
	}
	return sum
}
