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

// ElevenLabsClient synthesizes narration with ElevenLabs voices
type ElevenLabsClient struct {
	caller  *httpCaller
	baseURL string
	apiKey  string
	voiceID string
	store   AssetStore
}

type ttsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs client. Generated audio is
// uploaded to store.
func NewElevenLabsClient(cfg *config.ElevenLabsConfig, store AssetStore) *ElevenLabsClient {
	apiKey := cfg.APIKey
	return &ElevenLabsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		voiceID: cfg.VoiceID,
		store:   store,
		caller: &httpCaller{
			provider:   "elevenlabs",
			httpClient: &http.Client{Timeout: 120 * time.Second},
			parseError: elevenLabsError,
			headers: func(h http.Header) {
				h.Set("xi-api-key", apiKey)
				h.Set("Accept", "audio/mpeg")
			},
		},
	}
}

func (c *ElevenLabsClient) Provider() string { return "elevenlabs" }

// IsConfigured returns true if the client has valid configuration
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do synthesizes speech and stores the audio.
func (c *ElevenLabsClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleSpeechSynthesis || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}
	if c.store == nil {
		return nil, &apperr.ConfigError{Key: "r2", Reason: "asset storage required for speech synthesis"}
	}

	voice := req.Payload.Voice
	if voice == "" {
		voice = c.voiceID
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128", c.baseURL, voice)
	audio, err := c.caller.postRaw(ctx, req.Model, url, ttsRequest{
		Text:          req.Payload.Prompt,
		ModelID:       req.Model,
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, err
	}

	assetURL, err := c.store.Upload(ctx, req.Payload.Key, bytes.NewReader(audio), "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("store narration: %w", err)
	}

	return &Response{
		Units: len([]rune(req.Payload.Prompt)),
		Asset: &Asset{URL: assetURL, MIMEType: "audio/mpeg"},
	}, nil
}
