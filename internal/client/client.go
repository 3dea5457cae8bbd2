// Package client holds the provider translators: one adapter per external
// AI or media service, all behind the same request/response contract.
package client

import (
	"context"
	"sort"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/model"
)

// Op selects what an adapter call does
type Op string

const (
	OpGenerate Op = "generate"
	OpStatus   Op = "status"
)

// Request is one provider call
type Request struct {
	Action  model.ActionID
	Role    model.Role
	Model   string
	Op      Op
	Payload Payload
}

// Payload carries the inputs of every kind of call. Adapters read only the
// fields that apply to their role.
type Payload struct {
	// text generation
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSON        bool

	// image generation and speech synthesis
	Width  int
	Height int
	Seed   int64
	Voice  string
	Key    string // storage key for generated bytes

	// stock media
	Query string
	Limit int

	// analytics
	VideoIDs  []string
	ChannelID string

	// render and publishing
	Render  *RenderSpec
	JobID   string
	Publish *PublishSpec
}

// RenderSpec is a timeline submitted to a render provider
type RenderSpec struct {
	Title       string
	Scenes      []model.Scene
	AspectRatio string
	Resolution  string
}

// PublishSpec describes a video upload
type PublishSpec struct {
	VideoURL     string
	ThumbnailURL string
	Title        string
	Description  string
	Tags         []string
	Privacy      string
	CategoryID   string
}

// Response is the raw outcome of a provider call before per-action decoding
type Response struct {
	Text        string       `json:"text"`
	Units       int          `json:"units"`
	Asset       *Asset       `json:"asset"`
	Media       []Asset      `json:"media"`
	Job         *JobState    `json:"job"`
	Videos      []VideoStats `json:"videos"`
	Publication *Publication `json:"publication"`
}

// Asset is a generated or found media file
type Asset struct {
	URL         string  `json:"url"`
	MIMEType    string  `json:"mimeType"`
	DurationSec float64 `json:"durationSec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// JobState is a render provider's view of a job
type JobState struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"resultUrl"`
	Message   string `json:"message"`
}

// VideoStats is public metadata of a platform video
type VideoStats struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Channel     string   `json:"channel"`
	ChannelID   string   `json:"channelId"`
	PublishedAt string   `json:"publishedAt"`
	Duration    string   `json:"duration"`
	Views       int64    `json:"views"`
	Likes       int64    `json:"likes"`
	Comments    int64    `json:"comments"`
	Tags        []string `json:"tags"`
}

// Publication is the result of a successful upload
type Publication struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
	Privacy string `json:"privacy"`
}

// Adapter translates generic requests into one provider's wire protocol
type Adapter interface {
	Provider() string
	IsConfigured() bool
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Set indexes adapters by provider id
type Set struct {
	adapters map[string]Adapter
}

// NewSet builds a set; later adapters replace earlier ones with the same id.
func NewSet(adapters ...Adapter) *Set {
	s := &Set{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			s.adapters[a.Provider()] = a
		}
	}
	return s
}

// Get returns the adapter for a provider. A missing or unconfigured
// adapter yields a ConfigError.
func (s *Set) Get(provider string) (Adapter, error) {
	a, ok := s.adapters[provider]
	if !ok {
		return nil, &apperr.ConfigError{Key: provider, Reason: "no adapter for provider"}
	}
	if !a.IsConfigured() {
		return nil, &apperr.ConfigError{Key: provider, Reason: "provider credentials not configured"}
	}
	return a, nil
}

// Configured reports which providers have usable credentials.
func (s *Set) Configured() map[string]bool {
	out := make(map[string]bool, len(s.adapters))
	for id, a := range s.adapters {
		out[id] = a.IsConfigured()
	}
	return out
}

// Providers returns the sorted provider ids.
func (s *Set) Providers() []string {
	ids := make([]string, 0, len(s.adapters))
	for id := range s.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func unsupported(provider string, req *Request) error {
	return &apperr.ProviderError{
		Provider: provider,
		Model:    req.Model,
		Kind:     apperr.KindModelNotFound,
		Message:  "unsupported role " + string(req.Role) + " for op " + string(req.Op),
	}
}
