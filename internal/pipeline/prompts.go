package pipeline

import (
	"fmt"
	"strings"

	"github.com/luzdodia/api/internal/model"
)

const systemPrompt = `Você é roteirista e pesquisador de um canal cristão de vídeos curtos (YouTube Shorts).
Escreva em %s, com linguagem acolhedora, fiel às Escrituras e sem promessas sensacionalistas.`

var contentTypeNames = map[model.ContentType]string{
	model.ContentPrayer:     "oração",
	model.ContentDevotional: "devocional",
	model.ContentReflection: "reflexão",
	model.ContentVerse:      "versículo comentado",
	model.ContentTestimony:  "testemunho",
}

var triggerNames = map[model.EmotionalTrigger]string{
	model.TriggerHope:      "esperança",
	model.TriggerFaith:     "fé",
	model.TriggerGratitude: "gratidão",
	model.TriggerPeace:     "paz",
	model.TriggerComfort:   "consolo",
	model.TriggerCuriosity: "curiosidade",
	model.TriggerUrgency:   "urgência",
}

func (o *Orchestrator) system() string {
	return fmt.Sprintf(systemPrompt, o.opts.Language)
}

// brief summarizes the trigger for every prompt.
func brief(s *model.PipelineSession) string {
	var sb strings.Builder
	t := s.Trigger
	if t.Topic != "" {
		fmt.Fprintf(&sb, "Tema: %s\n", t.Topic)
	}
	if name, ok := contentTypeNames[t.ContentType]; ok {
		fmt.Fprintf(&sb, "Formato: %s\n", name)
	}
	fmt.Fprintf(&sb, "Duração alvo: %d segundos\n", t.TargetDurationSec)
	if len(t.EmotionalTriggers) > 0 {
		names := make([]string, 0, len(t.EmotionalTriggers))
		for _, tr := range t.EmotionalTriggers {
			if n, ok := triggerNames[tr]; ok {
				names = append(names, n)
			} else {
				names = append(names, string(tr))
			}
		}
		fmt.Fprintf(&sb, "Gatilhos emocionais: %s\n", strings.Join(names, ", "))
	}
	for i, c := range t.Competitors {
		switch {
		case c.Metadata != nil:
			fmt.Fprintf(&sb, "Referência %d: %q (%s, %d visualizações)\n", i+1, c.Metadata.Title, c.Metadata.Channel, c.Metadata.Views)
		case c.URL != "":
			fmt.Fprintf(&sb, "Referência %d: %s\n", i+1, c.URL)
		}
		if c.Transcript != "" {
			fmt.Fprintf(&sb, "Transcrição %d: %s\n", i+1, firstRunes(c.Transcript, 1500))
		}
	}
	return strings.TrimSpace(sb.String())
}

// previous asks the model for a different version when regenerating.
func previous(old string) string {
	if strings.TrimSpace(old) == "" {
		return ""
	}
	return "\n\nVersão anterior (escreva uma versão diferente):\n" + firstRunes(old, 2000)
}

func planPrompt(s *model.PipelineSession, old string) string {
	return brief(s) + `

Escreva um plano de pesquisa curto para este vídeo: passagens bíblicas a consultar,
contexto histórico relevante, ângulo devocional e a aplicação prática para o espectador.
Use uma lista numerada.` + previous(old)
}

func researchPrompt(s *model.PipelineSession, old []string) string {
	return brief(s) + "\n\nPlano aprovado:\n" + s.Planning.Plan + `

Execute o plano. Responda somente com JSON no formato
{"facts": ["..."], "trivia": ["..."], "citations": [{"title": "...", "url": "..."}]}
com 3 a 6 fatos verificáveis e referências bíblicas exatas.` + previous(strings.Join(old, "\n"))
}

func competitorPrompt(s *model.PipelineSession, old string) string {
	return brief(s) + `

Analise as referências acima: ganchos usados nos primeiros segundos, estrutura,
tom e o que falta nelas. Termine com uma oportunidade clara para o nosso vídeo.` + previous(old)
}

func optionsPrompt(s *model.PipelineSession, old []model.CreativeOption) string {
	var sb strings.Builder
	sb.WriteString(brief(s))
	sb.WriteString("\n\nFatos da pesquisa:\n")
	for _, f := range s.Intelligence.Facts {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	if s.Intelligence.CompetitorAnalysis != "" {
		fmt.Fprintf(&sb, "\nAnálise de concorrentes:\n%s\n", s.Intelligence.CompetitorAnalysis)
	}
	sb.WriteString(`
Crie 3 opções de título, conceito de thumbnail e gancho de abertura. Responda somente com JSON:
{"options": [{"title": "...", "thumbnailConcept": "...", "hook": "...", "imagePrompt": "prompt em inglês para gerar a thumbnail"}]}`)
	if len(old) > 0 {
		titles := make([]string, len(old))
		for i, opt := range old {
			titles[i] = opt.Title
		}
		sb.WriteString(previous(strings.Join(titles, "\n")))
	}
	return sb.String()
}

func scriptPrompt(s *model.PipelineSession, winner model.CreativeOption, old string) string {
	words := s.Trigger.TargetDurationSec * 130 / 60
	var sb strings.Builder
	sb.WriteString(brief(s))
	fmt.Fprintf(&sb, "\n\nTítulo escolhido: %s\nGancho: %s\n\nFatos:\n", winner.Title, winner.Hook)
	for _, f := range s.Intelligence.Facts {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	fmt.Fprintf(&sb, `
Escreva o roteiro narrado com cerca de %d palavras. Comece pelo gancho, use parágrafos curtos
separados por linha em branco e termine com uma oração ou chamada à reflexão.
Responda apenas com o texto da narração.`, words)
	sb.WriteString(previous(old))
	return sb.String()
}

func scenesPrompt(s *model.PipelineSession) string {
	return fmt.Sprintf(`Divida o roteiro abaixo em cenas de 3 a 8 segundos para um vídeo vertical de %d segundos.
Para cada cena informe a narração exata, uma busca curta em inglês para vídeo de banco de imagens
e a duração estimada. Responda somente com JSON:
{"scenes": [{"narration": "...", "visualQuery": "...", "durationSec": 5}]}

Roteiro:
%s`, s.Trigger.TargetDurationSec, s.Creation.Script)
}

func metadataPrompt(s *model.PipelineSession, winner model.CreativeOption) string {
	return fmt.Sprintf(`%s

Título escolhido: %s
Gancho: %s

Roteiro:
%s

Gere os metadados de publicação para YouTube Shorts: título com até 100 caracteres,
descrição com referência bíblica e chamada para inscrição, e até 15 tags.
Responda somente com JSON: {"title": "...", "description": "...", "tags": ["..."]}`,
		brief(s), winner.Title, winner.Hook, firstRunes(s.Creation.Script, 3000))
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
