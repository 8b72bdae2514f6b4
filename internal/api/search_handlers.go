package api

import (
	"fmt"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/gofiber/fiber/v3"
)

type semanticRequest struct {
	Query string `json:"query"`
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

type chatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId"`
}

// GenerateEmbeddings regenerates every embedding record of a completed codebase.
func (h *Handler) GenerateEmbeddings(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if cb.Status != models.StatusCompleted {
		return h.fail(c, fmt.Errorf("codebase %s is %s: %w", cb.ID, cb.Status, errs.ErrStateConflict))
	}
	n, err := h.Embeddings.GenerateAll(c.Context(), cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"codebaseId": cb.ID, "generated": n})
}

func (h *Handler) EmbeddingStats(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	records, err := h.Store.ListEmbeddings(c.Context(), cb.ID, models.KindAll)
	if err != nil {
		return h.fail(c, err)
	}
	stats := models.EmbeddingStats{CodebaseID: cb.ID, Total: len(records)}
	for _, r := range records {
		switch r.ElementKind {
		case models.KindClass:
			stats.Classes++
		case models.KindMethod:
			stats.Methods++
		}
	}
	return c.JSON(stats)
}

func (h *Handler) DeleteEmbeddings(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	n, err := h.Store.DeleteEmbeddings(c.Context(), cb.ID, models.KindAll)
	if err != nil {
		return h.fail(c, err)
	}
	h.Log.Infof("codebase %s: deleted %d embeddings", cb.ID, n)
	return c.JSON(fiber.Map{"codebaseId": cb.ID, "deleted": n})
}

// SemanticSearch ranks the codebase's records against a natural-language query.
func (h *Handler) SemanticSearch(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req semanticRequest
	if err := decodeStrict(c, &req); err != nil {
		return h.fail(c, err)
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		return h.fail(c, fmt.Errorf("%v: %w", err, errs.ErrInvalidInput))
	}
	if req.Limit < 1 || req.Limit > maxLimit {
		req.Limit = defaultLimit
	}
	hits, err := h.Search.SearchByQuery(c.Context(), cb.ID, req.Query, kind, req.Limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"query": req.Query, "results": hits, "count": len(hits)})
}

// SimilarElements returns the records closest to an existing one.
func (h *Handler) SimilarElements(c fiber.Ctx) error {
	record, err := h.Store.GetEmbedding(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if _, err := h.ownedCodebase(c, record.CodebaseID); err != nil {
		return h.fail(c, err)
	}
	hits, err := h.Search.FindSimilar(c.Context(), record.ID, limitParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hits)
}

// Chat answers a question about a codebase.
func (h *Handler) Chat(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req chatRequest
	if err := decodeStrict(c, &req); err != nil {
		return h.fail(c, err)
	}
	answer, err := h.Assistant.Ask(c.Context(), cb.ID, req.Question, req.ConversationID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(answer)
}

// GetConversation returns the exchanges of a conversation. Unknown ids are empty.
func (h *Handler) GetConversation(c fiber.Ctx) error {
	return c.JSON(h.Assistant.History(c.Params("id")))
}

func (h *Handler) ClearConversation(c fiber.Ctx) error {
	h.Assistant.Clear(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
