package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: h.Sessions.Origins(),
		AllowHeaders: []string{fiber.HeaderAuthorization, fiber.HeaderContentType},
	}))

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))

	api := app.Group("/api")

	// Sign-in
	authGroup := api.Group("/auth")
	authGroup.Get("/github", h.GitHubLogin)
	authGroup.Get("/github/callback", h.GitHubCallback)
	authGroup.Post("/logout", h.Logout)
	authGroup.Get("/user", h.RequireSession, h.CurrentUser)

	github := api.Group("/github", h.RequireSession)
	github.Get("/repositories", h.ListGitHubRepositories)
	github.Get("/repositories/:owner/:repo", h.GetGitHubRepository)

	// Codebases
	codebases := api.Group("/codebases", h.RequireSession)
	codebases.Post("/ingest", h.IngestCodebase)
	codebases.Get("/", h.ListCodebases)
	codebases.Get("/classes/:classId/dependencies", h.GetClassDependencies)
	codebases.Get("/classes/:classId/dependents", h.GetClassDependents)
	codebases.Get("/:id", h.GetCodebase)
	codebases.Delete("/:id", h.DeleteCodebase)
	codebases.Get("/:id/status", h.GetCodebaseStatus)
	codebases.Get("/:id/files", h.ListFiles)
	codebases.Get("/:id/files/:fileId", h.GetFile)
	codebases.Get("/:id/classes", h.ListClasses)
	codebases.Get("/:id/graph", h.GetCodebaseGraph)

	embeddings := api.Group("/embeddings", h.RequireSession)
	embeddings.Post("/codebases/:id/generate", h.GenerateEmbeddings)
	embeddings.Get("/codebases/:id/stats", h.EmbeddingStats)
	embeddings.Delete("/codebases/:id", h.DeleteEmbeddings)

	// Retrieval and chat
	search := api.Group("/search", h.RequireSession)
	search.Post("/codebases/:id/semantic", h.SemanticSearch)
	search.Get("/embeddings/:id/similar", h.SimilarElements)
	search.Post("/codebases/:id/chat", h.Chat)
	search.Get("/conversations/:id", h.GetConversation)
	search.Delete("/conversations/:id", h.ClearConversation)

	ai := api.Group("/ai", h.RequireSession)
	ai.Get("/status", h.ProviderStatus)
	ai.Post("/explain-class/:classId", h.ExplainClass)
	ai.Post("/suggest-refactoring/:classId", h.SuggestRefactoring)

	metrics := api.Group("/metrics", h.RequireSession)
	metrics.Get("/codebases/:id", h.GetMetrics)
	metrics.Post("/codebases/:id/calculate", h.CalculateMetrics)
	metrics.Get("/codebases/:id/methods/top-complex", h.TopComplexMethods)
	metrics.Get("/codebases/:id/classes/top-coupled", h.TopCoupledClasses)
}
