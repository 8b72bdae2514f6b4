package api

import (
	"net/url"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RequireSession resolves the bearer session and stores the user id in Locals.
func (h *Handler) RequireSession(c fiber.Ctx) error {
	userID, err := h.Sessions.Resolve(bearer(c))
	if err != nil {
		return h.fail(c, err)
	}
	c.Locals(userKey, userID)
	return c.Next()
}

func bearer(c fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// GitHubLogin returns the consent page to send the browser to.
func (h *Handler) GitHubLogin(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"authUrl": h.OAuth.AuthURL(uuid.New().String())})
}

// GitHubCallback completes sign-in and redirects to the frontend with a session token.
func (h *Handler) GitHubCallback(c fiber.Ctx) error {
	frontend := h.Sessions.FrontendURL()
	user, err := h.OAuth.Exchange(c.Context(), c.Query("code"))
	if err != nil {
		h.Log.Warningf("github callback failed: %s", err)
		return c.Redirect().Status(fiber.StatusFound).To(frontend + "/login?error=auth_failed")
	}
	token := h.Sessions.Create(user.ID)
	return c.Redirect().Status(fiber.StatusFound).To(frontend + "/dashboard?token=" + url.QueryEscape(token))
}

// CurrentUser returns the signed-in user.
func (h *Handler) CurrentUser(c fiber.Ctx) error {
	user, err := h.Store.GetUser(c.Context(), currentUser(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(user)
}

// Logout revokes the bearer session if there is one.
func (h *Handler) Logout(c fiber.Ctx) error {
	token := bearer(c)
	if token == "" {
		return h.fail(c, errs.ErrNotAuthorized)
	}
	h.Sessions.Revoke(token)
	return c.JSON(fiber.Map{"message": "logged out"})
}
