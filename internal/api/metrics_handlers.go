package api

import (
	"github.com/gofiber/fiber/v3"
)

// GetMetrics returns the quality metrics of a codebase, computing them on first use.
func (h *Handler) GetMetrics(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.Quality.Get(c.Context(), cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) CalculateMetrics(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.Quality.Calculate(c.Context(), cb.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) TopComplexMethods(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	methods, err := h.Quality.TopComplexMethods(c.Context(), cb.ID, limitParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(methods)
}

func (h *Handler) TopCoupledClasses(c fiber.Ctx) error {
	cb, err := h.ownedCodebase(c, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	classes, err := h.Quality.TopCoupledClasses(c.Context(), cb.ID, limitParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(classes)
}
