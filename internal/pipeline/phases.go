// Package pipeline is the production state machine: phase readiness, the
// planning approval gate, and the action runners that fill each phase.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/registry"
)

// DefaultTargetDurationSec is used when the trigger does not set a duration.
const DefaultTargetDurationSec = 60

// NewSession starts a production in the Trigger phase with the catalog's
// default selections.
func NewSession(id, owner string, reg *registry.Registry, now time.Time) *model.PipelineSession {
	return &model.PipelineSession{
		ID:           id,
		Owner:        owner,
		CurrentPhase: model.PhaseTrigger,
		Trigger: model.TriggerData{
			TargetDurationSec: DefaultTargetDurationSec,
			EmotionalTriggers: []model.EmotionalTrigger{},
			Competitors:       []model.CompetitorRef{},
		},
		Actions:   reg.NewActionSet(),
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: owner,
	}
}

// readiness returns nil when phase may be left forward, or a
// ValidationError naming what is missing.
func readiness(s *model.PipelineSession, phase model.Phase) error {
	switch phase {
	case model.PhaseTrigger:
		if strings.TrimSpace(s.Trigger.Topic) != "" {
			return nil
		}
		for _, c := range s.Trigger.Competitors {
			if strings.TrimSpace(c.URL) != "" || strings.TrimSpace(c.Transcript) != "" {
				return nil
			}
		}
		return apperr.Validation("trigger", "a topic or a competitor link or transcript is required")

	case model.PhasePlanning:
		if !s.Planning.Approved {
			return apperr.Validation("planning", "the research plan must be approved")
		}
		return nil

	case model.PhaseIntelligence:
		if len(s.Intelligence.Facts) == 0 {
			return apperr.Validation("intelligence", "research facts are required")
		}
		return nil

	case model.PhaseCreation:
		if _, ok := s.Creation.Winner(); !ok {
			return apperr.Validation("creation", "an option must be selected")
		}
		if strings.TrimSpace(s.Creation.Script) == "" {
			return apperr.Validation("creation", "a script is required")
		}
		return nil

	case model.PhaseStudio:
		if len(s.Studio.Scenes) == 0 {
			return apperr.Validation("studio", "at least one scene is required")
		}
		if s.Studio.Render.Succeeded() || s.Studio.ManualAssembly {
			return nil
		}
		return apperr.Validation("studio", "the render must finish or manual assembly must be acknowledged")

	case model.PhaseDelivery:
		return apperr.Validation("delivery", "delivery is the last phase")
	}
	return apperr.Validation("phase", "unknown phase %q", phase)
}

// CanAdvance reports whether phase's readiness predicate holds.
func CanAdvance(s *model.PipelineSession, phase model.Phase) bool {
	return readiness(s, phase) == nil
}

// Advance moves to the next phase when the current phase and every phase
// before it are ready.
func Advance(s *model.PipelineSession) error {
	cur := s.CurrentPhase
	if !cur.Valid() {
		return apperr.Validation("currentPhase", "unknown phase %q", cur)
	}
	next, ok := cur.Next()
	if !ok {
		return apperr.Validation("currentPhase", "%s is the last phase", cur)
	}
	for _, p := range model.Phases[:cur.Index()+1] {
		if err := readiness(s, p); err != nil {
			return err
		}
	}
	s.CurrentPhase = next
	return nil
}

// GoBack returns to a strictly earlier phase. No phase data is touched.
func GoBack(s *model.PipelineSession, to model.Phase) error {
	if !to.Valid() {
		return apperr.Validation("phase", "unknown phase %q", to)
	}
	if to.Index() >= s.CurrentPhase.Index() {
		return apperr.Validation("phase", "%s is not before %s", to, s.CurrentPhase)
	}
	s.CurrentPhase = to
	return nil
}

// ApprovePlanning opens the planning gate. The first approval time is kept
// on repeated calls.
func ApprovePlanning(s *model.PipelineSession, now time.Time) error {
	if strings.TrimSpace(s.Planning.Plan) == "" {
		return apperr.Validation("plan", "there is no plan to approve")
	}
	s.Planning.Approved = true
	if s.Planning.ApprovedAt == nil {
		t := now
		s.Planning.ApprovedAt = &t
	}
	return nil
}

// EditPlan stores a user edit of the plan. originalPlan keeps the
// generated text so the edit shows as dirty.
func EditPlan(s *model.PipelineSession, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Validation("plan", "plan must not be empty")
	}
	s.Planning.Plan = text
	return nil
}

// EditScript stores a user edit of the script.
func EditScript(s *model.PipelineSession, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Validation("script", "script must not be empty")
	}
	s.Creation.Script = text
	return nil
}

// SelectOption marks the winner option; any previous selection is replaced.
func SelectOption(s *model.PipelineSession, optionID string) error {
	if _, ok := s.Creation.Option(optionID); !ok {
		return apperr.Validation("optionId", "unknown option %q", optionID)
	}
	s.Creation.SelectedOptionID = optionID
	return nil
}

// UpdateTrigger replaces the trigger data. Metadata already fetched for a
// competitor link is kept when the link is unchanged.
func UpdateTrigger(s *model.PipelineSession, req model.TriggerRequest) {
	known := make(map[string]*model.CompetitorMetadata, len(s.Trigger.Competitors))
	for _, c := range s.Trigger.Competitors {
		if c.URL != "" && c.Metadata != nil {
			known[c.URL] = c.Metadata
		}
	}

	competitors := make([]model.CompetitorRef, 0, len(req.Competitors))
	for _, c := range req.Competitors {
		ref := model.CompetitorRef{
			URL:        strings.TrimSpace(c.URL),
			Transcript: strings.TrimSpace(c.Transcript),
		}
		if ref.URL == "" && ref.Transcript == "" {
			continue
		}
		ref.Metadata = known[ref.URL]
		competitors = append(competitors, ref)
	}

	duration := req.TargetDurationSec
	if duration <= 0 {
		duration = DefaultTargetDurationSec
	}

	s.Trigger = model.TriggerData{
		Topic:             strings.TrimSpace(req.Topic),
		ContentType:       req.ContentType,
		TargetDurationSec: duration,
		EmotionalTriggers: normalizeTriggers(req.EmotionalTriggers),
		Competitors:       competitors,
	}
}

func normalizeTriggers(in []model.EmotionalTrigger) []model.EmotionalTrigger {
	seen := make(map[model.EmotionalTrigger]bool, len(in))
	out := make([]model.EmotionalTrigger, 0, len(in))
	for _, t := range in {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AcknowledgeManualAssembly lets Studio complete without an automated
// render. Scenes are still required.
func AcknowledgeManualAssembly(s *model.PipelineSession) error {
	if len(s.Studio.Scenes) == 0 {
		return apperr.Validation("studio", "build scenes before choosing manual assembly")
	}
	s.Studio.ManualAssembly = true
	return nil
}
