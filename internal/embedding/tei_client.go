package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dpolishuk/coderag/internal/errs"
)

// TEIClient embeds text through a text-embeddings-inference server.
type TEIClient struct {
	baseURL    string
	dim        int
	maxRetries uint64
	httpClient *http.Client
}

func NewTEIClient(baseURL string, dim int) *TEIClient {
	return &TEIClient{
		baseURL:    baseURL,
		dim:        dim,
		maxRetries: 2,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type EmbedRequest struct {
	Inputs []string `json:"inputs"`
}

func (c *TEIClient) Dimension() int {
	return c.dim
}

// Embed returns the normalized embedding of a single text.
func (c *TEIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d: %w", len(embeddings), errs.ErrEmbedFailed)
	}
	vec := embeddings[0]
	if len(vec) != c.dim {
		return nil, fmt.Errorf("expected dimension %d, got %d: %w", c.dim, len(vec), errs.ErrEmbedFailed)
	}
	return unit(vec), nil
}

// EmbedBatch returns the raw embeddings for texts in input order.
// Transport failures and 5xx responses are retried.
func (c *TEIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody, err := json.Marshal(EmbedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var embeddings [][]float32
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embed", bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("TEI error (status %d): %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func unit(v []float32) []float32 {
	wide := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(float64(x)) {
			return make([]float32, len(v))
		}
		wide[i] = float64(x)
	}
	return normalize(wide)
}
