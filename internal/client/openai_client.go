package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// OpenAIClient covers chat, image and speech models of OpenAI
type OpenAIClient struct {
	chat    *chatCompleter
	media   *httpCaller
	baseURL string
	apiKey  string
	voice   string
	store   AssetStore
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// NewOpenAIClient creates an OpenAI client. Speech output is uploaded to
// store; a nil store disables speech synthesis.
func NewOpenAIClient(cfg *config.OpenAIConfig, store AssetStore) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{
		chat:    newChatCompleter("openai", baseURL, cfg.APIKey, 60*time.Second),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		voice:   cfg.Voice,
		store:   store,
		media: &httpCaller{
			provider:   "openai",
			httpClient: &http.Client{Timeout: 120 * time.Second},
			parseError: openAIError,
			headers: func(h http.Header) {
				h.Set("Authorization", "Bearer "+cfg.APIKey)
			},
		},
	}
}

func (c *OpenAIClient) Provider() string { return "openai" }

// IsConfigured returns true if the client has valid configuration
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do dispatches on the requested role.
func (c *OpenAIClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}

	switch req.Role {
	case model.RoleTextGeneration:
		return c.chat.complete(ctx, req.Model, req.Payload)
	case model.RoleImageGeneration:
		return c.image(ctx, req)
	case model.RoleSpeechSynthesis:
		return c.speech(ctx, req)
	}
	return nil, unsupported(c.Provider(), req)
}

func (c *OpenAIClient) image(ctx context.Context, req *Request) (*Response, error) {
	size := "1024x1792"
	if req.Payload.Width > req.Payload.Height {
		size = "1792x1024"
	}

	var resp imageResponse
	err := c.media.postJSON(ctx, req.Model, c.baseURL+"/images/generations", imageRequest{
		Model:          req.Model,
		Prompt:         req.Payload.Prompt,
		N:              1,
		Size:           size,
		ResponseFormat: "url",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, malformed(c.Provider(), req.Model, fmt.Errorf("no image in response"))
	}

	return &Response{
		Units: 1,
		Asset: &Asset{URL: resp.Data[0].URL, MIMEType: "image/png"},
	}, nil
}

func (c *OpenAIClient) speech(ctx context.Context, req *Request) (*Response, error) {
	if c.store == nil {
		return nil, &apperr.ConfigError{Key: "r2", Reason: "asset storage required for speech synthesis"}
	}

	voice := req.Payload.Voice
	if voice == "" {
		voice = c.voice
	}

	audio, err := c.media.postRaw(ctx, req.Model, c.baseURL+"/audio/speech", speechRequest{
		Model:          req.Model,
		Input:          req.Payload.Prompt,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}

	url, err := c.store.Upload(ctx, req.Payload.Key, bytes.NewReader(audio), "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("store narration: %w", err)
	}

	return &Response{
		Units: len([]rune(req.Payload.Prompt)),
		Asset: &Asset{URL: url, MIMEType: "audio/mpeg"},
	}, nil
}
