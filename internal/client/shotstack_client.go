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

// ShotstackClient submits timelines to the Shotstack render API and
// reports job status. The model id is the API environment (stage or v1).
type ShotstackClient struct {
	caller  *httpCaller
	baseURL string
	apiKey  string
}

type shotstackAsset struct {
	Type  string `json:"type"`
	Src   string `json:"src,omitempty"`
	Text  string `json:"text,omitempty"`
	Style string `json:"style,omitempty"`
}

type shotstackClip struct {
	Asset  shotstackAsset `json:"asset"`
	Start  float64        `json:"start"`
	Length float64        `json:"length"`
	Fit    string         `json:"fit,omitempty"`
}

type shotstackTrack struct {
	Clips []shotstackClip `json:"clips"`
}

type shotstackEdit struct {
	Timeline struct {
		Background string           `json:"background"`
		Tracks     []shotstackTrack `json:"tracks"`
	} `json:"timeline"`
	Output struct {
		Format      string `json:"format"`
		Resolution  string `json:"resolution"`
		AspectRatio string `json:"aspectRatio"`
	} `json:"output"`
}

type shotstackEnvelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Status  string `json:"status"`
		URL     string `json:"url"`
		Error   string `json:"error"`
	} `json:"response"`
}

// NewShotstackClient creates a new Shotstack client
func NewShotstackClient(cfg *config.ShotstackConfig) *ShotstackClient {
	apiKey := cfg.APIKey
	return &ShotstackClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		caller: &httpCaller{
			provider:   "shotstack",
			httpClient: &http.Client{Timeout: 30 * time.Second},
			headers: func(h http.Header) {
				h.Set("x-api-key", apiKey)
			},
		},
	}
}

func (c *ShotstackClient) Provider() string { return "shotstack" }

// IsConfigured returns true if the client has valid configuration
func (c *ShotstackClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do submits a render or fetches its status.
func (c *ShotstackClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleVideoRender {
		return nil, unsupported(c.Provider(), req)
	}

	switch req.Op {
	case OpGenerate:
		return c.submit(ctx, req)
	case OpStatus:
		return c.status(ctx, req)
	}
	return nil, unsupported(c.Provider(), req)
}

func (c *ShotstackClient) submit(ctx context.Context, req *Request) (*Response, error) {
	spec := req.Payload.Render
	if spec == nil || len(spec.Scenes) == 0 {
		return nil, fmt.Errorf("render spec has no scenes")
	}

	var env shotstackEnvelope
	url := fmt.Sprintf("%s/%s/render", c.baseURL, req.Model)
	if err := c.caller.postJSON(ctx, req.Model, url, buildEdit(spec), &env); err != nil {
		return nil, err
	}
	if env.Response.ID == "" {
		return nil, malformed(c.Provider(), req.Model, fmt.Errorf("no render id: %s", env.Message))
	}

	return &Response{
		Units: 1,
		Job:   &JobState{ID: env.Response.ID, Status: string(model.RenderSubmitted), Message: env.Response.Message},
	}, nil
}

func (c *ShotstackClient) status(ctx context.Context, req *Request) (*Response, error) {
	var env shotstackEnvelope
	url := fmt.Sprintf("%s/%s/render/%s", c.baseURL, req.Model, req.Payload.JobID)
	if err := c.caller.getJSON(ctx, req.Model, url, &env); err != nil {
		return nil, err
	}

	return &Response{
		Job: &JobState{
			ID:        req.Payload.JobID,
			Status:    normalizeRenderStatus(env.Response.Status),
			ResultURL: env.Response.URL,
			Message:   env.Response.Error,
		},
	}, nil
}

// normalizeRenderStatus maps the queued/fetching/rendering/saving states to
// processing and keeps done and failed.
func normalizeRenderStatus(s string) string {
	switch s {
	case "done":
		return string(model.RenderDone)
	case "failed":
		return string(model.RenderFailed)
	}
	return string(model.RenderProcessing)
}

// buildEdit lays scenes out as three tracks: captions on top, narration
// audio and footage below.
func buildEdit(spec *RenderSpec) shotstackEdit {
	var edit shotstackEdit
	edit.Timeline.Background = "#000000"

	var captions, audio, footage shotstackTrack
	for _, sc := range spec.Scenes {
		length := sc.End - sc.Start
		if length <= 0 {
			continue
		}
		captions.Clips = append(captions.Clips, shotstackClip{
			Asset: shotstackAsset{Type: "title", Text: sc.Narration, Style: "subtitle"},
			Start: sc.Start, Length: length,
		})
		if sc.AudioURL != "" {
			audio.Clips = append(audio.Clips, shotstackClip{
				Asset: shotstackAsset{Type: "audio", Src: sc.AudioURL},
				Start: sc.Start, Length: length,
			})
		}
		if sc.VisualURL != "" {
			footage.Clips = append(footage.Clips, shotstackClip{
				Asset: shotstackAsset{Type: "video", Src: sc.VisualURL},
				Start: sc.Start, Length: length, Fit: "cover",
			})
		}
	}

	for _, t := range []shotstackTrack{captions, audio, footage} {
		if len(t.Clips) > 0 {
			edit.Timeline.Tracks = append(edit.Timeline.Tracks, t)
		}
	}

	edit.Output.Format = "mp4"
	edit.Output.Resolution = spec.Resolution
	if edit.Output.Resolution == "" {
		edit.Output.Resolution = "hd"
	}
	edit.Output.AspectRatio = spec.AspectRatio
	if edit.Output.AspectRatio == "" {
		edit.Output.AspectRatio = "9:16"
	}
	return edit
}
