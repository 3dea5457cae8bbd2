package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/model"
)

const (
	maxOptions = 3
	minOptions = 2
	maxTags    = 15
)

// decode turns a raw provider response into the action's result. Live and
// simulated responses both pass through here.
func decode(id model.ActionID, raw *client.Response, in Input) (*Result, error) {
	if raw == nil {
		return nil, errors.New("empty response")
	}
	res := &Result{Units: raw.Units}

	switch id {
	case model.ActionCompetitorMetadata:
		if len(raw.Videos) == 0 {
			return nil, errors.New("no video metadata")
		}
		res.Videos = raw.Videos

	case model.ActionDraftPlan, model.ActionGenerateScript:
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			return nil, errors.New("empty text")
		}
		res.Text = text

	case model.ActionCompetitorAnalysis:
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			return nil, errors.New("empty analysis")
		}
		res.Analysis = text

	case model.ActionChannelAnalysis:
		if len(raw.Videos) == 0 {
			return nil, errors.New("no channel videos")
		}
		res.Videos = raw.Videos
		res.Analysis = summarizeChannel(raw.Videos)

	case model.ActionResearch:
		var body struct {
			Facts     []string         `json:"facts"`
			Trivia    []string         `json:"trivia"`
			Citations []model.Citation `json:"citations"`
		}
		if err := decodeJSON(raw.Text, &body); err != nil {
			return nil, err
		}
		res.Facts = compact(body.Facts)
		if len(res.Facts) == 0 {
			return nil, errors.New("research returned no facts")
		}
		res.Trivia = compact(body.Trivia)
		for _, c := range body.Citations {
			if strings.TrimSpace(c.Title) != "" || strings.TrimSpace(c.URL) != "" {
				res.Citations = append(res.Citations, c)
			}
		}

	case model.ActionGenerateOptions:
		var body struct {
			Options []struct {
				Title            string `json:"title"`
				ThumbnailConcept string `json:"thumbnailConcept"`
				Hook             string `json:"hook"`
				ImagePrompt      string `json:"imagePrompt"`
			} `json:"options"`
		}
		if err := decodeJSON(raw.Text, &body); err != nil {
			return nil, err
		}
		for _, o := range body.Options {
			if strings.TrimSpace(o.Title) == "" || len(res.Options) == maxOptions {
				continue
			}
			res.Options = append(res.Options, model.CreativeOption{
				ID:               fmt.Sprintf("opt-%d", len(res.Options)+1),
				Title:            strings.TrimSpace(o.Title),
				ThumbnailConcept: strings.TrimSpace(o.ThumbnailConcept),
				Hook:             strings.TrimSpace(o.Hook),
				ImagePrompt:      strings.TrimSpace(o.ImagePrompt),
			})
		}
		if len(res.Options) < minOptions {
			return nil, fmt.Errorf("expected %d-%d options, got %d", minOptions, maxOptions, len(res.Options))
		}

	case model.ActionThumbnailImage, model.ActionNarration:
		if raw.Asset == nil || raw.Asset.URL == "" {
			return nil, errors.New("no asset in response")
		}
		res.Asset = raw.Asset

	case model.ActionSceneBreakdown:
		var body struct {
			Scenes []struct {
				Narration   string  `json:"narration"`
				VisualQuery string  `json:"visualQuery"`
				DurationSec float64 `json:"durationSec"`
			} `json:"scenes"`
		}
		if err := decodeJSON(raw.Text, &body); err != nil {
			return nil, err
		}
		var durations []float64
		for _, sc := range body.Scenes {
			text := strings.TrimSpace(sc.Narration)
			if text == "" {
				continue
			}
			res.Scenes = append(res.Scenes, model.Scene{
				Index:       len(res.Scenes),
				Narration:   text,
				VisualQuery: strings.TrimSpace(sc.VisualQuery),
			})
			durations = append(durations, sc.DurationSec)
		}
		if len(res.Scenes) == 0 {
			return nil, errors.New("no scenes in breakdown")
		}
		TimeScenes(res.Scenes, durations, in.Hints.TargetDurationSec)

	case model.ActionSceneVisuals:
		res.Media = raw.Media

	case model.ActionRenderVideo:
		if raw.Job == nil || raw.Job.ID == "" {
			return nil, errors.New("render submission returned no job id")
		}
		res.Job = raw.Job

	case model.ActionDeliveryMetadata:
		var body model.PublishMetadata
		if err := decodeJSON(raw.Text, &body); err != nil {
			return nil, err
		}
		body.Title = strings.TrimSpace(body.Title)
		if body.Title == "" {
			return nil, errors.New("metadata has no title")
		}
		body.Description = strings.TrimSpace(body.Description)
		body.Tags = compact(body.Tags)
		if len(body.Tags) > maxTags {
			body.Tags = body.Tags[:maxTags]
		}
		res.Metadata = &body

	case model.ActionPublish:
		if raw.Publication == nil || raw.Publication.VideoID == "" {
			return nil, errors.New("publish returned no video id")
		}
		res.Publication = raw.Publication

	default:
		return nil, fmt.Errorf("no decoder for action %s", id)
	}

	return res, nil
}

// decodeJSON parses model output that may be wrapped in prose or markdown
// code fences.
func decodeJSON(text string, v any) error {
	obj, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)

	// Handle markdown code blocks
	if strings.Contains(response, "```") {
		lines := strings.Split(response, "\n")
		var jsonLines []string
		inBlock := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inBlock = !inBlock
				continue
			}
			if inBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		response = strings.Join(jsonLines, "\n")
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("no JSON found in response")
	}
	return response[start : end+1], nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// summarizeChannel renders channel statistics as a short analysis.
func summarizeChannel(videos []client.VideoStats) string {
	sorted := make([]client.VideoStats, len(videos))
	copy(sorted, videos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })

	var total int64
	for _, v := range sorted {
		total += v.Views
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d vídeos analisados, média de %d visualizações.\n", len(sorted), total/int64(len(sorted)))
	fmt.Fprintln(&sb, "Mais vistos:")
	for i, v := range sorted {
		if i == 3 {
			break
		}
		fmt.Fprintf(&sb, "- %q: %d visualizações, %d curtidas\n", v.Title, v.Views, v.Likes)
	}
	return strings.TrimSpace(sb.String())
}
