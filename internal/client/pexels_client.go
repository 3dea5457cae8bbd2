package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// PexelsClient searches stock footage on Pexels
type PexelsClient struct {
	caller  *httpCaller
	baseURL string
	apiKey  string
}

type pexelsVideoFile struct {
	Link     string `json:"link"`
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type pexelsSearchResponse struct {
	TotalResults int `json:"total_results"`
	Videos       []struct {
		ID         int               `json:"id"`
		Width      int               `json:"width"`
		Height     int               `json:"height"`
		Duration   float64           `json:"duration"`
		URL        string            `json:"url"`
		VideoFiles []pexelsVideoFile `json:"video_files"`
	} `json:"videos"`
}

// NewPexelsClient creates a new Pexels client
func NewPexelsClient(cfg *config.PexelsConfig) *PexelsClient {
	apiKey := cfg.APIKey
	return &PexelsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		caller: &httpCaller{
			provider:   "pexels",
			httpClient: &http.Client{Timeout: 30 * time.Second},
			headers: func(h http.Header) {
				h.Set("Authorization", apiKey)
			},
		},
	}
}

func (c *PexelsClient) Provider() string { return "pexels" }

// IsConfigured returns true if the client has valid configuration
func (c *PexelsClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Do searches portrait videos matching the payload query.
func (c *PexelsClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, missingKey(c.Provider())
	}
	if req.Role != model.RoleStockMedia || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}

	limit := req.Payload.Limit
	if limit <= 0 {
		limit = 3
	}
	q := url.Values{}
	q.Set("query", req.Payload.Query)
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("orientation", "portrait")

	var resp pexelsSearchResponse
	if err := c.caller.getJSON(ctx, req.Model, c.baseURL+"/videos/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := &Response{Units: 1, Media: []Asset{}}
	for _, v := range resp.Videos {
		f, ok := bestVideoFile(v.VideoFiles)
		if !ok {
			continue
		}
		out.Media = append(out.Media, Asset{
			URL:         f.Link,
			MIMEType:    f.FileType,
			DurationSec: v.Duration,
			Width:       f.Width,
			Height:      f.Height,
		})
	}
	return out, nil
}

// bestVideoFile prefers HD portrait mp4 files, then any mp4.
func bestVideoFile(files []pexelsVideoFile) (pexelsVideoFile, bool) {
	var best pexelsVideoFile
	bestScore := -1
	for _, f := range files {
		if f.Link == "" || f.FileType != "video/mp4" {
			continue
		}
		score := 0
		if f.Height > f.Width {
			score += 2
		}
		if f.Quality == "hd" {
			score++
		}
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return best, bestScore >= 0
}
