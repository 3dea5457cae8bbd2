package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// GeminiClient talks to the Gemini generateContent REST endpoint
type GeminiClient struct {
	caller  *httpCaller
	baseURL string
	apiKey  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient creates a new Gemini API client
func NewGeminiClient(cfg *config.GeminiConfig) *GeminiClient {
	apiKey := cfg.APIKey
	return &GeminiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		caller: &httpCaller{
			provider:   "gemini",
			httpClient: &http.Client{Timeout: 60 * time.Second},
			parseError: geminiError,
			headers: func(h http.Header) {
				h.Set("x-goog-api-key", apiKey)
			},
		},
	}
}

func (c *GeminiClient) Provider() string { return "gemini" }

// IsConfigured returns true if the client has valid configuration
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do runs a text generation call.
func (c *GeminiClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleTextGeneration || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}

	p := req.Payload
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: p.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     p.Temperature,
			MaxOutputTokens: p.MaxTokens,
		},
	}
	if p.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.System}}}
	}
	if p.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, req.Model)
	var resp geminiResponse
	if err := c.caller.postJSON(ctx, req.Model, url, body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		return nil, malformed(c.Provider(), req.Model, fmt.Errorf("no candidates in response"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return &Response{Text: sb.String(), Units: resp.UsageMetadata.TotalTokenCount}, nil
}
