package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxLoggedBody caps how much of a response body goes into debug logs.
const maxLoggedBody = 512

// errorParser turns a non-2xx response into a ProviderError
type errorParser func(provider, model string, status int, body []byte) error

// httpCaller is the shared JSON-over-HTTP plumbing of the REST adapters
type httpCaller struct {
	provider   string
	httpClient *http.Client
	parseError errorParser
	headers    func(h http.Header)
}

func (c *httpCaller) postJSON(ctx context.Context, model, url string, body, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req, model)
	if err != nil {
		return err
	}
	return c.decode(model, req, respBody, result)
}

func (c *httpCaller) getJSON(ctx context.Context, model, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	respBody, err := c.do(req, model)
	if err != nil {
		return err
	}
	return c.decode(model, req, respBody, result)
}

// postRaw sends a JSON body and returns the raw response bytes (audio).
func (c *httpCaller) postRaw(ctx context.Context, model, url string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, model)
}

// do executes a request and returns the body of a 2xx response. Transport
// failures and error statuses come back as ProviderErrors.
func (c *httpCaller) do(req *http.Request, model string) ([]byte, error) {
	if c.headers != nil {
		c.headers(req.Header)
	}

	slog.Debug("provider request", "provider", c.provider, "method", req.Method, "url", redactURL(req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("provider request failed", "provider", c.provider, "method", req.Method, "error", err)
		return nil, transportError(c.provider, model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.provider, model, err)
	}

	slog.Debug("provider response", "provider", c.provider, "status", resp.StatusCode, "body", truncate(string(respBody), maxLoggedBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		parse := c.parseError
		if parse == nil {
			parse = statusError
		}
		return nil, parse(c.provider, model, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *httpCaller) decode(model string, req *http.Request, body []byte, result any) error {
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		slog.Warn("provider response not decodable", "provider", c.provider, "method", req.Method, "error", err)
		return malformed(c.provider, model, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// redactURL strips query strings that may carry API keys.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
