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

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest is the OpenAI-compatible request body
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatCompleter speaks the OpenAI chat completions protocol
type chatCompleter struct {
	caller  *httpCaller
	baseURL string
}

func newChatCompleter(provider, baseURL, apiKey string, timeout time.Duration) *chatCompleter {
	return &chatCompleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller: &httpCaller{
			provider:   provider,
			httpClient: &http.Client{Timeout: timeout},
			parseError: openAIError,
			headers: func(h http.Header) {
				h.Set("Authorization", "Bearer "+apiKey)
			},
		},
	}
}

func (c *chatCompleter) complete(ctx context.Context, modelID string, p Payload) (*Response, error) {
	var messages []ChatMessage
	if p.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: p.Prompt})

	reqBody := ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if reqBody.Temperature == 0 {
		reqBody.Temperature = 0.7
	}
	if reqBody.MaxTokens == 0 {
		reqBody.MaxTokens = 1024
	}
	if p.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var chatResp ChatCompletionResponse
	if err := c.caller.postJSON(ctx, modelID, c.baseURL+"/chat/completions", reqBody, &chatResp); err != nil {
		return nil, err
	}

	if len(chatResp.Choices) == 0 {
		return nil, malformed(c.caller.provider, modelID, fmt.Errorf("no choices in response"))
	}

	return &Response{
		Text:  chatResp.Choices[0].Message.Content,
		Units: chatResp.Usage.TotalTokens,
	}, nil
}

// GroqClient handles communication with Groq API
type GroqClient struct {
	chat   *chatCompleter
	apiKey string
}

// NewGroqClient creates a new Groq API client
func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		chat:   newChatCompleter("groq", cfg.BaseURL, cfg.APIKey, 60*time.Second),
		apiKey: cfg.APIKey,
	}
}

func (c *GroqClient) Provider() string { return "groq" }

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do runs a text generation call.
func (c *GroqClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleTextGeneration || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}
	return c.chat.complete(ctx, req.Model, req.Payload)
}

// ChatCompletion sends a single system/user exchange to Groq.
func (c *GroqClient) ChatCompletion(ctx context.Context, modelID, system, user string) (string, error) {
	resp, err := c.Do(ctx, &Request{
		Role:    model.RoleTextGeneration,
		Model:   modelID,
		Op:      OpGenerate,
		Payload: Payload{System: system, Prompt: user},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
