package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// OllamaClient runs text generation against a local Ollama server through
// langchaingo. One langchaingo model is kept per model id.
type OllamaClient struct {
	serverURL string

	mu     sync.Mutex
	models map[string]llms.Model
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg *config.OllamaConfig) *OllamaClient {
	return &OllamaClient{
		serverURL: cfg.ServerURL,
		models:    make(map[string]llms.Model),
	}
}

func (c *OllamaClient) Provider() string { return "ollama" }

// IsConfigured returns true when a server URL is set. Ollama needs no key.
func (c *OllamaClient) IsConfigured() bool {
	return c.serverURL != ""
}

func (c *OllamaClient) model(modelID string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[modelID]; ok {
		return m, nil
	}
	m, err := ollama.New(
		ollama.WithModel(modelID),
		ollama.WithServerURL(c.serverURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	c.models[modelID] = m
	return m, nil
}

// Do runs a text generation call.
func (c *OllamaClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleTextGeneration || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}

	llm, err := c.model(req.Model)
	if err != nil {
		return nil, err
	}

	p := req.Payload
	var messages []llms.MessageContent
	if p.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, p.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, p.Prompt))

	var opts []llms.CallOption
	if p.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(p.Temperature))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	if p.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, ollamaError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed(c.Provider(), req.Model, fmt.Errorf("no response choices"))
	}

	choice := resp.Choices[0]
	units := 0
	if n, ok := choice.GenerationInfo["TotalTokens"].(int); ok {
		units = n
	}
	return &Response{Text: choice.Content, Units: units}, nil
}

// ollamaError classifies langchaingo errors, which carry no status codes.
func ollamaError(modelID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return transportError("ollama", modelID, err)
	}

	msg := strings.ToLower(err.Error())
	kind := apperr.KindUnknown
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		kind = apperr.KindNetworkError
	case strings.Contains(msg, "not found"):
		kind = apperr.KindModelNotFound
	case strings.Contains(msg, "timeout"):
		kind = apperr.KindTimeout
	}
	return &apperr.ProviderError{Provider: "ollama", Model: modelID, Kind: kind, Message: err.Error(), Cause: err}
}
