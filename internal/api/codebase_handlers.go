package api

import (
	"context"
	"fmt"

	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/gofiber/fiber/v3"
)

// IngestCodebase starts ingesting a repository and answers before the fetch.
func (h *Handler) IngestCodebase(c fiber.Ctx) error {
	var req models.IngestRequest
	if err := decodeStrict(c, &req); err != nil {
		return h.fail(c, err)
	}
	cb, err := h.Pipeline.Ingest(c.Context(), currentUser(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(cb)
}

func (h *Handler) ListCodebases(c fiber.Ctx) error {
	codebases, err := h.Store.ListCodebases(c.Context(), currentUser(c))
	if err != nil {
		return h.fail(c, err)
	}
	if codebases == nil {
		codebases = []*models.Codebase{}
	}
	return c.JSON(codebases)
}

func (h *Handler) GetCodebase(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cb)
}

// GetCodebaseStatus is the polling endpoint for an ingest in progress.
func (h *Handler) GetCodebaseStatus(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"id":        cb.ID,
		"status":    cb.Status,
		"errorMsg":  cb.ErrorMsg,
		"fileCount": cb.FileCount,
		"parsed":    cb.Parsed,
	})
}

// ListFiles returns the files of a codebase without their content.
func (h *Handler) ListFiles(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	files, err := h.Store.ListFiles(c.Context(), cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]models.SourceFile, 0, len(files))
	for _, f := range files {
		summary := *f
		summary.Content = ""
		out = append(out, summary)
	}
	return c.JSON(out)
}

func (h *Handler) GetFile(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	file, err := h.Store.GetFile(c.Context(), c.Params("fileId"))
	if err != nil {
		return h.fail(c, err)
	}
	if file.CodebaseID != cb.ID {
		return h.fail(c, fmt.Errorf("file %s: %w", file.ID, errs.ErrNotFound))
	}
	return c.JSON(file)
}

func (h *Handler) ListClasses(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	classes, err := h.Store.ListClasses(c.Context(), cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	if classes == nil {
		classes = []*models.CodeClass{}
	}
	return c.JSON(classes)
}

// GetCodebaseGraph returns the class dependency graph for visualization.
func (h *Handler) GetCodebaseGraph(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	graph, err := db.ClassGraph(c.Context(), h.Store, cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(graph)
}

// GetClassDependencies returns the outgoing relationships of one class.
func (h *Handler) GetClassDependencies(c fiber.Ctx) error {
	return h.classRelationships(c, db.Dependencies)
}

// GetClassDependents returns the relationships that point at one class.
func (h *Handler) GetClassDependents(c fiber.Ctx) error {
	return h.classRelationships(c, db.Dependents)
}

type relationshipLookup func(ctx context.Context, store db.Store, classID string) ([]*models.CodeRelationship, error)

func (h *Handler) classRelationships(c fiber.Ctx, lookup relationshipLookup) error {
	class, err := h.ownedClass(c, c.Params("classId"))
	if err != nil {
		return h.fail(c, err)
	}
	rels, err := lookup(c.Context(), h.Store, class.ID)
	if err != nil {
		return h.fail(c, err)
	}
	if rels == nil {
		rels = []*models.CodeRelationship{}
	}
	return c.JSON(rels)
}

// ownedClass loads a class and checks that its codebase belongs to the caller.
func (h *Handler) ownedClass(c fiber.Ctx, classID string) (*models.CodeClass, error) {
	class, err := h.Store.GetClass(c.Context(), classID)
	if err != nil {
		return nil, err
	}
	if _, err := h.ownedCodebase(c, class.CodebaseID); err != nil {
		return nil, err
	}
	return class, nil
}

// DeleteCodebase removes a codebase and everything derived from it.
func (h *Handler) DeleteCodebase(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Pipeline.DeleteCodebase(c.Context(), cb.ID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
