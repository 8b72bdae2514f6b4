package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/coderag/internal/errs"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIGenerator calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIGenerator struct {
	proxy
	model string
}

func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &OpenAIGenerator{
		proxy: newProxy(strings.TrimSuffix(baseURL, "/"), headers),
		model: model,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Model() string { return g.model }

// Ping lists the models the key can use.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	return g.get(ctx, "/models")
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	req := completionRequest{
		Model:       g.model,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})

	var resp completionResponse
	if err := g.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion has no content: %w", errs.ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
