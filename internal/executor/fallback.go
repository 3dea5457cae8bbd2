package executor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/model"
)

// fallback returns the deterministic default of a non-critical action.
// ok is false for actions that have no default.
func fallback(id model.ActionID, in Input) (*Result, bool) {
	h := in.Hints
	switch id {
	case model.ActionCompetitorMetadata:
		return &Result{Videos: []client.VideoStats{}}, true

	case model.ActionChannelAnalysis:
		return &Result{Analysis: "Sem dados de desempenho do canal disponíveis."}, true

	case model.ActionCompetitorAnalysis:
		return &Result{Analysis: "Sem análise de concorrentes disponível."}, true

	case model.ActionThumbnailImage:
		return &Result{Asset: &client.Asset{
			URL:      placeholderImage(h.Title, h.OptionID),
			MIMEType: "image/png",
			Width:    1080,
			Height:   1920,
		}}, true

	case model.ActionSceneBreakdown:
		scenes := ScenesFromScript(h.Script, h.TargetDurationSec)
		if len(scenes) == 0 {
			return nil, false
		}
		return &Result{Scenes: scenes}, true

	case model.ActionSceneVisuals:
		return &Result{Media: []client.Asset{}}, true

	case model.ActionNarration:
		return &Result{}, true

	case model.ActionDeliveryMetadata:
		return &Result{Metadata: defaultMetadata(h)}, true
	}
	return nil, false
}

func placeholderImage(title, optionID string) string {
	text := title
	if text == "" {
		text = optionID
	}
	return fmt.Sprintf("https://placehold.co/1080x1920/1d3557/f1faee.png?text=%s", url.QueryEscape(text))
}

// defaultMetadata builds publication metadata from the winner option and
// the script.
func defaultMetadata(h Hints) *model.PublishMetadata {
	title := h.Title
	if title == "" {
		title = h.Topic
	}
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}

	var desc []string
	if h.Hook != "" {
		desc = append(desc, h.Hook)
	}
	if excerpt := firstRunes(strings.Join(strings.Fields(h.Script), " "), 300); excerpt != "" {
		desc = append(desc, excerpt)
	}

	tags := []string{}
	for _, w := range strings.Fields(strings.ToLower(h.Topic)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if len([]rune(w)) > 3 {
			tags = append(tags, w)
		}
	}
	if h.ContentType != "" {
		tags = append(tags, string(h.ContentType))
	}
	for _, t := range h.Triggers {
		tags = append(tags, string(t))
	}
	tags = append(tags, "fé", "shorts")

	return &model.PublishMetadata{
		Title:       title,
		Description: strings.Join(desc, "\n\n"),
		Tags:        compactLimit(tags, maxTags),
	}
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func compactLimit(items []string, n int) []string {
	out := compact(items)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
