package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
)

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// OllamaGenerator calls a local Ollama /api/generate endpoint.
type OllamaGenerator struct {
	proxy
	model string
}

func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	return &OllamaGenerator{
		proxy: newProxy(strings.TrimSuffix(baseURL, "/"), nil),
		model: model,
	}
}

func (g *OllamaGenerator) Name() string { return "ollama" }

func (g *OllamaGenerator) Model() string { return g.model }

// Ping lists the local models.
func (g *OllamaGenerator) Ping(ctx context.Context) error {
	return g.get(ctx, "/api/tags")
}

// Generate sends the system instruction and the user prompt as one prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	prompt := user
	if system != "" {
		prompt = system + "\n\n" + user
	}

	var resp ollamaResponse
	if err := g.post(ctx, "/api/generate", ollamaRequest{Model: g.model, Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	if resp.Response == "" {
		return "", fmt.Errorf("ollama returned an empty response: %w", errs.ErrProviderUnavailable)
	}
	return resp.Response, nil
}
