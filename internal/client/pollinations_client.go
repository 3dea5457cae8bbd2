package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// minImageBytes rejects tiny bodies, which are error pages rather than images.
const minImageBytes = 100

// PollinationsClient generates images via Pollinations.ai (free, no key needed).
// The image URL is deterministic in prompt, size, model and seed.
type PollinationsClient struct {
	caller  *httpCaller
	baseURL string
}

// NewPollinationsClient creates a new Pollinations client
func NewPollinationsClient(cfg *config.PollinationsConfig) *PollinationsClient {
	return &PollinationsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		caller: &httpCaller{
			provider:   "pollinations",
			httpClient: &http.Client{Timeout: 90 * time.Second},
			headers: func(h http.Header) {
				h.Set("User-Agent", "luzdodia/1.0")
			},
		},
	}
}

func (c *PollinationsClient) Provider() string { return "pollinations" }

// IsConfigured is always true; the service is keyless.
func (c *PollinationsClient) IsConfigured() bool {
	return c.baseURL != ""
}

// ImageURL builds the generation URL for a prompt.
func (c *PollinationsClient) ImageURL(prompt, modelID string, width, height int, seed int64) string {
	q := url.Values{}
	q.Set("width", fmt.Sprint(width))
	q.Set("height", fmt.Sprint(height))
	q.Set("model", modelID)
	q.Set("seed", fmt.Sprint(seed))
	q.Set("nologo", "true")
	return fmt.Sprintf("%s/prompt/%s?%s", c.baseURL, url.PathEscape(prompt), q.Encode())
}

// Do generates an image. The first GET renders it on the provider side;
// later GETs of the same URL are served from its cache.
func (c *PollinationsClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Role != model.RoleImageGeneration || req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}

	p := req.Payload
	width, height := p.Width, p.Height
	if width == 0 || height == 0 {
		width, height = 1080, 1920
	}
	imageURL := c.ImageURL(p.Prompt, req.Model, width, height, p.Seed)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	body, err := c.caller.do(httpReq, req.Model)
	if err != nil {
		return nil, err
	}
	if len(body) < minImageBytes {
		return nil, malformed(c.Provider(), req.Model, fmt.Errorf("response too small (%d bytes)", len(body)))
	}

	return &Response{
		Units: 1,
		Asset: &Asset{URL: imageURL, MIMEType: "image/jpeg", Width: width, Height: height},
	}, nil
}
