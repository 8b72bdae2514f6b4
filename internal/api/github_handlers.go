package api

import (
	"github.com/dpolishuk/coderag/internal/hosting"
	"github.com/gofiber/fiber/v3"
)

func (h *Handler) hostingClient(c fiber.Ctx) (*hosting.Client, error) {
	token, err := h.Vault.Token(c.Context(), currentUser(c))
	if err != nil {
		return nil, err
	}
	return hosting.NewClient(c.Context(), h.GitHubAPIURL, token)
}

// ListGitHubRepositories lists the repositories the user can ingest.
func (h *Handler) ListGitHubRepositories(c fiber.Ctx) error {
	client, err := h.hostingClient(c)
	if err != nil {
		return h.fail(c, err)
	}
	repos, err := client.Repositories(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(repos)
}

func (h *Handler) GetGitHubRepository(c fiber.Ctx) error {
	client, err := h.hostingClient(c)
	if err != nil {
		return h.fail(c, err)
	}
	repo, err := client.Repository(c.Context(), c.Params("owner"), c.Params("repo"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(repo)
}
