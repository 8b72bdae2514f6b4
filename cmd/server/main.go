package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpolishuk/coderag/internal/agent"
	"github.com/dpolishuk/coderag/internal/api"
	"github.com/dpolishuk/coderag/internal/auth"
	"github.com/dpolishuk/coderag/internal/config"
	"github.com/dpolishuk/coderag/internal/db"
	"github.com/dpolishuk/coderag/internal/embedding"
	"github.com/dpolishuk/coderag/internal/git"
	"github.com/dpolishuk/coderag/internal/indexer"
	"github.com/dpolishuk/coderag/internal/logging"
	"github.com/dpolishuk/coderag/internal/quality"
	"github.com/dpolishuk/coderag/internal/search"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/gofiber/fiber/v3"
	"github.com/jcgregorio/slog"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Debug)
	if err := run(cfg, log); err != nil {
		log.Errorf("coderag: %s", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	key, err := cfg.TokenKeyBytes()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()

	store, index, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var embedder embedding.Embedder = embedding.NewLexicalEmbedder(cfg.EmbeddingDim)
	if cfg.Embedder == "tei" {
		embedder = embedding.NewTEIClient(cfg.TEI_URL, cfg.EmbeddingDim)
	}
	log.Infof("embedder %s, dimension %d", cfg.Embedder, embedder.Dimension())

	var generator agent.Generator = agent.NewOllamaGenerator(cfg.OllamaURL, cfg.OllamaModel)
	if cfg.AIProvider == "openai" {
		generator = agent.NewOpenAIGenerator(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel)
	}
	log.Infof("chat provider %s", generator.Name())

	cipher, err := auth.NewCipher(key)
	if err != nil {
		return err
	}
	vault := auth.NewVault(store, cipher)

	embeddings := embedding.NewGenerator(store, embedder, log, metrics)
	pipeline := indexer.NewPipeline(store, git.NewFetcher(git.DefaultBaseURL, log), vault, embeddings, log, metrics, indexer.Options{
		WorkDir:       cfg.WorkDir,
		AppName:       cfg.AppName,
		Timeout:       cfg.IngestTimeout,
		RespectIgnore: cfg.RespectIgnore,
		OriginBaseURL: git.DefaultBaseURL,
	})

	engine := search.NewEngine(store, embedder, log, metrics)
	if index != nil && cfg.VectorIndex {
		engine.WithIndex(index)
	}
	assistant := agent.NewAssembler(engine, generator, cfg.ChatTimeout, cfg.ConversationTTL, log, metrics)

	h := api.NewHandler(api.Deps{
		Store:      store,
		Pipeline:   pipeline,
		Embeddings: embeddings,
		Search:     engine,
		Assistant:  assistant,
		Quality:    quality.NewCalculator(store, log),
		OAuth: auth.NewOAuth(auth.OAuthOptions{
			ClientID:     cfg.GitHubID,
			ClientSecret: cfg.GitHubSecret,
			RedirectURL:  cfg.GitHubRedir,
			APIURL:       cfg.GitHubAPIURL,
		}, store, cipher, log),
		Sessions:     auth.NewSessions(cfg.SessionTTL, cfg.FrontendURLs),
		Vault:        vault,
		GitHubAPIURL: cfg.GitHubAPIURL,
		Metrics:      metrics,
		Log:          log,
	})

	app := fiber.New(fiber.Config{
		AppName: "CodeRAG API",
	})
	api.SetupRoutes(app, h)

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting CodeRAG backend on port %s", cfg.Port)
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warningf("http shutdown: %s", err)
	}
	assistant.Close()
	pipeline.Wait()
	return nil
}

// openStore returns the configured store and, for Neo4j, its vector index.
func openStore(ctx context.Context, cfg *config.Config, log slog.Logger) (db.Store, search.VectorIndex, func(), error) {
	if cfg.Store == "memory" {
		log.Infof("using in-memory store")
		return db.NewMemoryStore(), nil, func() {}, nil
	}

	client, err := db.NewNeo4jClient(ctx, db.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPass,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	store := db.NewNeo4jStore(client, cfg.EmbeddingDim)
	if err := store.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	log.Infof("using neo4j store at %s", cfg.Neo4jURI)
	closeStore := func() {
		if err := client.Close(); err != nil {
			log.Warningf("neo4j close: %s", err)
		}
	}
	return store, store, closeStore, nil
}
