package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dpolishuk/coderag/internal/errs"
)

// Generator produces a chat completion for a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	// Ping checks that the provider answers, without generating.
	Ping(ctx context.Context) error
	Name() string
	Model() string
}

// maxAttempts bounds calls to a chat provider, the first one included.
const maxAttempts = 3

// proxy posts JSON to a chat provider and decodes the JSON reply.
type proxy struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	retryWait  time.Duration
}

func newProxy(baseURL string, headers map[string]string) proxy {
	return proxy{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		headers:    headers,
		retryWait:  500 * time.Millisecond,
	}
}

// post sends body to path and decodes the reply into out. Transport errors
// and 5xx responses are retried; every failure wraps errs.ErrProviderUnavailable.
func (p proxy) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewReader(jsonData))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range p.headers {
			req.Header.Set(k, v)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryWait
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)); err != nil {
		return fmt.Errorf("%s%s: %v: %w", p.baseURL, path, err, errs.ErrProviderUnavailable)
	}
	return nil
}

// get sends one GET to path and expects a 200. It is not retried.
func (p proxy) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s%s: %v: %w", p.baseURL, path, err, errs.ErrProviderUnavailable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s%s: provider returned status %d: %w", p.baseURL, path, resp.StatusCode, errs.ErrProviderUnavailable)
	}
	return nil
}
