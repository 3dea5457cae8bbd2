package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/poller"
)

const simHost = "https://sim.luzdodia.local"

// simulate produces provider-shaped raw output without network I/O. The
// content depends only on the action and its input.
func (e *Executor) simulate(ctx context.Context, id model.ActionID, sel model.Selection, in Input) (*client.Response, error) {
	if e.settings.SimulatedDelay > 0 {
		if err := e.settings.Clock.Sleep(ctx, e.settings.SimulatedDelay); err != nil {
			return nil, err
		}
	}

	seed := simSeed(id, sel, in)
	topic := in.Hints.Topic
	if topic == "" {
		topic = "Fé no dia a dia"
	}

	switch id {
	case model.ActionCompetitorMetadata:
		var videos []client.VideoStats
		for _, vid := range in.Payload.VideoIDs {
			s := simSeed(id, sel, Input{Hints: Hints{Topic: vid}})
			videos = append(videos, client.VideoStats{
				ID:          vid,
				Title:       fmt.Sprintf("Vídeo de referência %s", vid),
				Channel:     "Canal de Referência",
				PublishedAt: "2025-01-15T09:00:00Z",
				Duration:    "PT58S",
				Views:       int64(10000 + s%90000),
				Likes:       int64(500 + s%4500),
				Tags:        []string{"oração", "fé"},
			})
		}
		return &client.Response{Units: 1, Videos: videos}, nil

	case model.ActionChannelAnalysis:
		videos := make([]client.VideoStats, 3)
		for i := range videos {
			videos[i] = client.VideoStats{
				ID:       fmt.Sprintf("sim-ch-%d", i+1),
				Title:    fmt.Sprintf("%s #%d", topic, i+1),
				Channel:  "Luz do Dia",
				Duration: "PT45S",
				Views:    int64(30000 - i*8000 + int(seed%1000)),
				Likes:    int64(1500 - i*300),
			}
		}
		return &client.Response{Units: 1, Videos: videos}, nil

	case model.ActionDraftPlan:
		return text(fmt.Sprintf(
			"Plano de pesquisa: %s\n\n1. Passagens bíblicas centrais sobre o tema.\n2. Contexto histórico e devocional.\n3. Aplicação prática para a manhã do espectador.\n4. Gancho emocional: %s.",
			topic, triggersOr(in.Hints.Triggers, "esperança"))), nil

	case model.ActionResearch:
		return jsonText(map[string]any{
			"facts": []string{
				fmt.Sprintf("%s é um tema recorrente nos Salmos.", topic),
				"Salmo 5:3 associa a oração ao amanhecer.",
				"Jesus se retirava cedo para orar (Marcos 1:35).",
			},
			"trivia": []string{"Lamentações 3:22-23 fala de misericórdias que se renovam a cada manhã."},
			"citations": []model.Citation{
				{Title: "Salmo 5", URL: "https://www.bibliaonline.com.br/acf/sl/5"},
				{Title: "Marcos 1", URL: "https://www.bibliaonline.com.br/acf/mc/1"},
			},
		}), nil

	case model.ActionCompetitorAnalysis:
		return text(fmt.Sprintf("Concorrentes abordam %q com ganchos curtos nos 3 primeiros segundos e trilha suave. Oportunidade: aplicação prática e chamada à oração.", topic)), nil

	case model.ActionGenerateOptions:
		hooks := []string{"Comece seu dia assim", "Você já orou hoje?", "Um minuto com Deus"}
		var opts []map[string]string
		for i := 0; i < 3; i++ {
			hook := hooks[(int(seed)+i)%len(hooks)]
			opts = append(opts, map[string]string{
				"title":            fmt.Sprintf("%s: %s", topic, hook),
				"thumbnailConcept": fmt.Sprintf("Amanhecer dourado com texto \"%s\"", hook),
				"hook":             hook + "...",
				"imagePrompt":      fmt.Sprintf("golden sunrise, open bible, soft light, %s", strings.ToLower(topic)),
			})
		}
		return jsonText(map[string]any{"options": opts}), nil

	case model.ActionThumbnailImage:
		return &client.Response{Units: 1, Asset: &client.Asset{
			URL:      fmt.Sprintf("%s/thumbnails/%s-%08x.png", simHost, slug(in.Hints.OptionID), seed),
			MIMEType: "image/png",
			Width:    1080,
			Height:   1920,
		}}, nil

	case model.ActionGenerateScript:
		openers := []string{"Bom dia.", "Antes de tudo, respire.", "Hoje começa com Deus."}
		return text(fmt.Sprintf(
			"%s %s\n\nSenhor, obrigado por mais este dia. Entrego em tuas mãos meus planos, meus medos e minhas esperanças.\n\nQue a tua paz guarde meu coração e que eu seja luz para quem cruzar meu caminho. Amém.",
			openers[seed%uint32(len(openers))], firstNonEmpty(in.Hints.Hook, topic+"."))), nil

	case model.ActionSceneBreakdown:
		parts := SplitScript(in.Hints.Script)
		if len(parts) == 0 {
			parts = []string{topic}
		}
		scenes := make([]map[string]any, len(parts))
		for i, p := range parts {
			scenes[i] = map[string]any{
				"narration":   p,
				"visualQuery": []string{"sunrise", "praying hands", "open bible", "peaceful field"}[i%4],
			}
		}
		return jsonText(map[string]any{"scenes": scenes}), nil

	case model.ActionSceneVisuals:
		return &client.Response{Units: 1, Media: []client.Asset{{
			URL:         fmt.Sprintf("%s/stock/%s-%08x.mp4", simHost, slug(in.Payload.Query), seed),
			MIMEType:    "video/mp4",
			DurationSec: 10,
			Width:       1080,
			Height:      1920,
		}}}, nil

	case model.ActionNarration:
		return &client.Response{Units: len([]rune(in.Payload.Prompt)), Asset: &client.Asset{
			URL:      fmt.Sprintf("%s/audio/scene-%d-%08x.mp3", simHost, in.Hints.SceneIndex, seed),
			MIMEType: "audio/mpeg",
		}}, nil

	case model.ActionRenderVideo:
		// Job ids are scoped to the session so concurrent sessions with
		// the same input keep separate poll counts.
		jobID := fmt.Sprintf("sim-render-%08x", renderSeed(seed, in.Hints.SessionID))
		e.mu.Lock()
		e.simJobs[jobID] = 0
		e.mu.Unlock()
		return &client.Response{Units: 1, Job: &client.JobState{ID: jobID, Status: string(model.RenderSubmitted)}}, nil

	case model.ActionDeliveryMetadata:
		meta := defaultMetadata(in.Hints)
		return jsonText(meta), nil

	case model.ActionPublish:
		videoID := fmt.Sprintf("sim-%08x", seed)
		privacy := "private"
		if in.Payload.Publish != nil && in.Payload.Publish.Privacy != "" {
			privacy = in.Payload.Publish.Privacy
		}
		return &client.Response{Units: 1, Publication: &client.Publication{
			VideoID: videoID,
			URL:     "https://www.youtube.com/watch?v=" + videoID,
			Privacy: privacy,
		}}, nil
	}

	return nil, fmt.Errorf("no simulation for action %s", id)
}

// simulatePoll reports processing until the configured poll count, then done.
// A job is forgotten once it reports done.
func (e *Executor) simulatePoll(jobID string) poller.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.simJobs[jobID]++
	if e.simJobs[jobID] < e.settings.SimulatedRenderPolls {
		return poller.Status{State: string(model.RenderProcessing)}
	}
	delete(e.simJobs, jobID)
	return poller.Status{
		State:     string(model.RenderDone),
		ResultURL: fmt.Sprintf("%s/renders/%s.mp4", simHost, jobID),
	}
}

func simSeed(id model.ActionID, sel model.Selection, in Input) uint32 {
	h := fnv.New32a()
	for _, s := range []string{
		string(id), sel.Provider, sel.Model,
		in.Payload.System, in.Payload.Prompt, in.Payload.Query,
		in.Hints.Topic, in.Hints.OptionID, in.Hints.Script,
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return h.Sum32()
}

func renderSeed(seed uint32, sessionID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte{byte(seed >> 24), byte(seed >> 16), byte(seed >> 8), byte(seed)})
	h.Write([]byte(sessionID))
	return h.Sum32()
}

func text(s string) *client.Response {
	return &client.Response{Text: s, Units: len(strings.Fields(s)) * 4 / 3}
}

func jsonText(v any) *client.Response {
	data, _ := json.Marshal(v)
	return &client.Response{Text: string(data), Units: len(data) / 4}
}

func triggersOr(ts []model.EmotionalTrigger, def string) string {
	if len(ts) == 0 {
		return def
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	if sb.Len() == 0 {
		return "x"
	}
	return sb.String()
}
