package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

type Config struct {
	Port      string
	Debug     bool
	Store     string
	Neo4jURI  string
	Neo4jUser string
	Neo4jPass string

	AppName         string
	WorkDir         string
	IngestTimeout   time.Duration
	RespectIgnore   bool
	EmbeddingDim    int
	VectorIndex     bool
	Embedder        string
	TEI_URL         string
	ChatTimeout     time.Duration
	ConversationTTL time.Duration

	AIProvider   string
	OllamaURL    string
	OllamaModel  string
	OpenAIURL    string
	OpenAIKey    string
	OpenAIModel  string
	GitHubID     string
	GitHubSecret string
	GitHubRedir  string
	GitHubAPIURL string
	TokenKey     string
	SessionTTL   time.Duration
	FrontendURLs []string
}

func Load() *Config {
	return &Config{
		Port:      getEnv("BACKEND_PORT", "3001"),
		Debug:     getEnvBool("LOG_DEBUG", false),
		Store:     getEnv("STORE", "memory"),
		Neo4jURI:  getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser: getEnv("NEO4J_USER", "neo4j"),
		Neo4jPass: getEnv("NEO4J_PASSWORD", "coderag_password"),

		AppName:         getEnv("APP_NAME", "coderag"),
		WorkDir:         getEnv("WORK_DIR", os.TempDir()),
		IngestTimeout:   getEnvDuration("INGEST_TIMEOUT", 10*time.Minute),
		RespectIgnore:   getEnvBool("RESPECT_GITIGNORE", false),
		EmbeddingDim:    getEnvInt("EMBEDDING_DIM", 384),
		VectorIndex:     getEnvBool("VECTOR_INDEX", false),
		Embedder:        getEnv("EMBEDDER", "lexical"),
		TEI_URL:         getEnv("TEI_URL", "http://localhost:8080"),
		ChatTimeout:     getEnvDuration("CHAT_TIMEOUT", 2*time.Minute),
		ConversationTTL: getEnvDuration("CONVERSATION_TTL", 0),

		AIProvider:   getEnv("AI_PROVIDER", "ollama"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "deepseek-coder:6.7b"),
		OpenAIURL:    getEnv("OPENAI_URL", "https://api.groq.com/openai/v1"),
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "llama-3.3-70b-versatile"),
		GitHubID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubRedir:  getEnv("GITHUB_REDIRECT_URL", "http://localhost:3001/api/auth/github/callback"),
		GitHubAPIURL: getEnv("GITHUB_API_URL", ""),
		TokenKey:     getEnv("TOKEN_KEY", ""),
		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),
		FrontendURLs: splitList(getEnv("FRONTEND_URLS", "http://localhost:5173")),
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	key, err := c.TokenKeyBytes()
	if err != nil {
		return err
	}
	if len(key) != chacha20poly1305.KeySize {
		return fmt.Errorf("TOKEN_KEY must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	switch c.Store {
	case "memory", "neo4j":
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	switch c.Embedder {
	case "lexical", "tei":
	default:
		return fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}
	switch c.AIProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	// An empty origin list would make the CORS layer allow every origin.
	if len(c.FrontendURLs) == 0 {
		return fmt.Errorf("FRONTEND_URLS must list at least one origin")
	}
	return nil
}

// TokenKeyBytes decodes the hex TOKEN_KEY.
func (c *Config) TokenKeyBytes() ([]byte, error) {
	if c.TokenKey == "" {
		return nil, fmt.Errorf("TOKEN_KEY is not set")
	}
	key, err := hex.DecodeString(c.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_KEY is not valid hex: %w", err)
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
