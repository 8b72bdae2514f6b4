package api

import (
	"context"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/gofiber/fiber/v3"
)

type classAnalyzer func(ctx context.Context, class *models.CodeClass, outgoing, incoming []*models.CodeRelationship) (*models.ClassAnalysis, error)

// ExplainClass asks the chat provider to explain one class.
func (h *Handler) ExplainClass(c fiber.Ctx) error {
	return h.analyzeClass(c, h.Assistant.ExplainClass)
}

// SuggestRefactoring asks the chat provider for refactoring advice on one class.
func (h *Handler) SuggestRefactoring(c fiber.Ctx) error {
	return h.analyzeClass(c, h.Assistant.SuggestRefactoring)
}

func (h *Handler) analyzeClass(c fiber.Ctx, analyze classAnalyzer) error {
	ctx := c.Context()
	class, err := h.ownedClass(c, c.Params("classId"))
	if err != nil {
		return h.fail(c, err)
	}
	outgoing, err := db.Dependencies(ctx, h.Store, class.ID)
	if err != nil {
		return h.fail(c, err)
	}
	incoming, err := db.Dependents(ctx, h.Store, class.ID)
	if err != nil {
		return h.fail(c, err)
	}
	analysis, err := analyze(ctx, class, outgoing, incoming)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(analysis)
}

// ProviderStatus reports whether the chat provider answers.
func (h *Handler) ProviderStatus(c fiber.Ctx) error {
	return c.JSON(h.Assistant.Status(c.Context()))
}
