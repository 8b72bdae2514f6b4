package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dpolishuk/coderag/internal/agent"
	"github.com/dpolishuk/coderag/internal/auth"
	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/embedding"
	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/indexer"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/quality"
	"github.com/dpolishuk/coderag/internal/search"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/gofiber/fiber/v3"
	"github.com/jcgregorio/slog"
)

const (
	userKey      = "userID"
	defaultLimit = 10
	maxLimit     = 100
)

// Deps are the services the handlers delegate to.
type Deps struct {
	Store      db.Store
	Pipeline   *indexer.Pipeline
	Embeddings *embedding.Generator
	Search     *search.Engine
	Assistant  *agent.Assembler
	Quality    *quality.Calculator
	OAuth      *auth.OAuth
	Sessions   *auth.Sessions
	Vault      *auth.Vault
	// GitHubAPIURL is empty for api.github.com.
	GitHubAPIURL string
	Metrics      *telemetry.Metrics
	Log          slog.Logger
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and, for remote stores, reachability.
func (h *Handler) Health(c fiber.Ctx) error {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "coderag-backend",
	})
}

// fail writes err as {"error": msg} with the status of its kind.
func (h *Handler) fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.Log.Errorf("%s %s: %s", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrNotAuthorized:
		return fiber.StatusUnauthorized
	case errs.ErrForbidden:
		return fiber.StatusForbidden
	case errs.ErrNotFound:
		return fiber.StatusNotFound
	case errs.ErrInvalidInput:
		return fiber.StatusBadRequest
	case errs.ErrStateConflict:
		return fiber.StatusConflict
	case errs.ErrFetchFailed, errs.ErrEmbedFailed, errs.ErrProviderUnavailable:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// decodeStrict parses a JSON body, rejecting unknown fields and trailing data.
func decodeStrict(c fiber.Ctx, v any) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, errs.ErrInvalidInput)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: trailing data: %w", errs.ErrInvalidInput)
	}
	return nil
}

func limitParam(c fiber.Ctx) int {
	limit := fiber.Query[int](c, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}

func currentUser(c fiber.Ctx) string {
	id, _ := c.Locals(userKey).(string)
	return id
}

// ownedCodebase loads the codebase named by the :id param and checks that
// the caller owns it.
func (h *Handler) ownedCodebase(c fiber.Ctx, id string) (*models.Codebase, error) {
	cb, err := h.Store.GetCodebase(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if cb.UserID != currentUser(c) {
		return nil, fmt.Errorf("codebase %s: %w", id, errs.ErrForbidden)
	}
	return cb, nil
}
