package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/model"
)

// YouTubeClient reads public video statistics with an API key and
// publishes videos with an OAuth refresh token
type YouTubeClient struct {
	cfg        config.YouTubeConfig
	httpClient *http.Client
	extra      []option.ClientOption
}

// NewYouTubeClient creates a YouTube Data API client. Extra options are
// appended to every service built by the client.
func NewYouTubeClient(cfg *config.YouTubeConfig, extra ...option.ClientOption) *YouTubeClient {
	return &YouTubeClient{
		cfg:        *cfg,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		extra:      extra,
	}
}

func (c *YouTubeClient) Provider() string { return "youtube" }

// IsConfigured returns true when either analytics or publishing can run.
func (c *YouTubeClient) IsConfigured() bool {
	return c.cfg.APIKey != "" || c.canPublish()
}

func (c *YouTubeClient) canPublish() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.RefreshToken != ""
}

// Do dispatches on the requested role.
func (c *YouTubeClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Op != OpGenerate {
		return nil, unsupported(c.Provider(), req)
	}
	switch req.Role {
	case model.RoleVideoAnalytics:
		if c.cfg.APIKey == "" {
			return nil, &apperr.ConfigError{Key: "youtube.api_key", Reason: "YOUTUBE_API_KEY not set"}
		}
		return c.analytics(ctx, req)
	case model.RoleVideoPublishing:
		if !c.canPublish() {
			return nil, &apperr.ConfigError{Key: "youtube.refresh_token", Reason: "YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set"}
		}
		return c.publish(ctx, req)
	}
	return nil, unsupported(c.Provider(), req)
}

func (c *YouTubeClient) service(ctx context.Context, opts ...option.ClientOption) (*youtube.Service, error) {
	svc, err := youtube.NewService(ctx, append(opts, c.extra...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return svc, nil
}

func (c *YouTubeClient) analytics(ctx context.Context, req *Request) (*Response, error) {
	svc, err := c.service(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return nil, err
	}

	ids := req.Payload.VideoIDs
	if len(ids) == 0 && req.Payload.ChannelID != "" {
		ids, err = c.topChannelVideos(ctx, svc, req)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return &Response{Videos: []VideoStats{}}, nil
	}

	list, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, googleAPIError(c.Provider(), req.Model, err)
	}

	out := &Response{Units: 1, Videos: make([]VideoStats, 0, len(list.Items))}
	for _, v := range list.Items {
		stats := VideoStats{ID: v.Id}
		if v.Snippet != nil {
			stats.Title = v.Snippet.Title
			stats.Channel = v.Snippet.ChannelTitle
			stats.ChannelID = v.Snippet.ChannelId
			stats.PublishedAt = v.Snippet.PublishedAt
			stats.Tags = v.Snippet.Tags
		}
		if v.Statistics != nil {
			stats.Views = int64(v.Statistics.ViewCount)
			stats.Likes = int64(v.Statistics.LikeCount)
			stats.Comments = int64(v.Statistics.CommentCount)
		}
		if v.ContentDetails != nil {
			stats.Duration = v.ContentDetails.Duration
		}
		out.Videos = append(out.Videos, stats)
	}
	return out, nil
}

func (c *YouTubeClient) topChannelVideos(ctx context.Context, svc *youtube.Service, req *Request) ([]string, error) {
	limit := int64(req.Payload.Limit)
	if limit <= 0 {
		limit = 10
	}
	search, err := svc.Search.List([]string{"id"}).
		ChannelId(req.Payload.ChannelID).
		Type("video").
		Order("viewCount").
		MaxResults(limit).
		Context(ctx).Do()
	if err != nil {
		return nil, googleAPIError(c.Provider(), req.Model, err)
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return ids, nil
}

func (c *YouTubeClient) publish(ctx context.Context, req *Request) (*Response, error) {
	spec := req.Payload.Publish
	if spec == nil || spec.VideoURL == "" {
		return nil, fmt.Errorf("publish spec has no video url")
	}

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: c.cfg.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))

	svc, err := c.service(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	video, err := c.open(ctx, spec.VideoURL)
	if err != nil {
		return nil, transportError(c.Provider(), req.Model, err)
	}
	defer video.Body.Close()

	privacy := spec.Privacy
	if privacy == "" {
		privacy = "private"
	}
	category := spec.CategoryID
	if category == "" {
		category = c.cfg.CategoryID
	}

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       spec.Title,
			Description: spec.Description,
			Tags:        spec.Tags,
			CategoryId:  category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
		},
	}

	inserted, err := svc.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(video.Body).Context(ctx).Do()
	if err != nil {
		return nil, googleAPIError(c.Provider(), req.Model, err)
	}

	if spec.ThumbnailURL != "" {
		if thumb, err := c.open(ctx, spec.ThumbnailURL); err == nil {
			// Custom thumbnails need a verified channel; failure keeps the upload.
			_, _ = svc.Thumbnails.Set(inserted.Id).Media(thumb.Body).Context(ctx).Do()
			thumb.Body.Close()
		}
	}

	return &Response{
		Units: 1,
		Publication: &Publication{
			VideoID: inserted.Id,
			URL:     fmt.Sprintf("https://www.youtube.com/watch?v=%s", inserted.Id),
			Privacy: privacy,
		},
	}, nil
}

func (c *YouTubeClient) open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: HTTP %d", redactURL(rawURL), resp.StatusCode)
	}
	return resp, nil
}

// VideoIDFromURL extracts the video id from watch, short-link and shorts URLs.
func VideoIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtu.be":
		if segments[0] != "" {
			return segments[0], true
		}
	case "youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v, true
		}
		if len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live") {
			return segments[1], true
		}
	}
	return "", false
}
