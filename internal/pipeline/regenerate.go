package pipeline

import (
	"context"
	"strings"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/model"
)

// Field names accepted by Regenerate
const (
	FieldPlan               = "plan"
	FieldFacts              = "facts"
	FieldChannelAnalysis    = "channelAnalysis"
	FieldCompetitorAnalysis = "competitorAnalysis"
	FieldOptions            = "options"
	FieldScript             = "script"
	FieldScenes             = "scenes"
	FieldMetadata           = "metadata"
)

type fieldKey struct {
	phase model.Phase
	name  string
}

var fieldAliases = map[fieldKey]string{
	{model.PhasePlanning, "plan"}:                    FieldPlan,
	{model.PhasePlanning, "plano"}:                   FieldPlan,
	{model.PhaseIntelligence, "facts"}:               FieldFacts,
	{model.PhaseIntelligence, "fatos"}:               FieldFacts,
	{model.PhaseIntelligence, "channelanalysis"}:     FieldChannelAnalysis,
	{model.PhaseIntelligence, "analisecanal"}:        FieldChannelAnalysis,
	{model.PhaseIntelligence, "competitoranalysis"}:  FieldCompetitorAnalysis,
	{model.PhaseIntelligence, "analiseconcorrentes"}: FieldCompetitorAnalysis,
	{model.PhaseCreation, "options"}:                 FieldOptions,
	{model.PhaseCreation, "opcoes"}:                  FieldOptions,
	{model.PhaseCreation, "script"}:                  FieldScript,
	{model.PhaseCreation, "roteiro"}:                 FieldScript,
	{model.PhaseStudio, "scenes"}:                    FieldScenes,
	{model.PhaseStudio, "cenas"}:                     FieldScenes,
	{model.PhaseDelivery, "metadata"}:                FieldMetadata,
	{model.PhaseDelivery, "metadados"}:               FieldMetadata,
}

var unaccent = strings.NewReplacer("á", "a", "ã", "a", "â", "a", "é", "e", "ê", "e", "í", "i", "ó", "o", "õ", "o", "ç", "c")

// ResolveField maps an English or Portuguese field name of phase to its
// canonical name.
func ResolveField(phase model.Phase, field string) (string, error) {
	name := unaccent.Replace(strings.ToLower(strings.TrimSpace(field)))
	canonical, ok := fieldAliases[fieldKey{phase, name}]
	if !ok {
		return "", apperr.Validation("field", "%q cannot be regenerated in %s", field, phase)
	}
	return canonical, nil
}

// Regenerate replaces exactly one field of one phase. Every other field of
// the session is left as it was.
func (o *Orchestrator) Regenerate(ctx context.Context, s *model.PipelineSession, phase model.Phase, field string) (*executor.Result, error) {
	name, err := ResolveField(phase, field)
	if err != nil {
		return nil, err
	}

	switch name {
	case FieldPlan:
		res, err := o.draftPlan(ctx, s, s.Planning.Plan)
		if err != nil {
			return nil, err
		}
		s.Planning.Plan = res.Text
		s.Planning.OriginalPlan = res.Text
		return res, nil

	case FieldFacts:
		res, err := o.research(ctx, s)
		if err != nil {
			return nil, err
		}
		s.Intelligence.Facts = res.Facts
		return res, nil

	case FieldChannelAnalysis:
		return o.AnalyzeChannel(ctx, s)

	case FieldCompetitorAnalysis:
		return o.AnalyzeCompetitors(ctx, s)

	case FieldOptions:
		res, err := o.generateOptions(ctx, s)
		if err != nil {
			return nil, err
		}
		// Option ids are positional, so a selection survives unless the
		// new list is shorter.
		s.Creation.Options = res.Options
		if _, ok := s.Creation.Option(s.Creation.SelectedOptionID); !ok {
			s.Creation.SelectedOptionID = ""
		}
		return res, nil

	case FieldScript:
		return o.GenerateScript(ctx, s)

	case FieldScenes:
		scenes, res, err := o.buildScenes(ctx, s)
		if err != nil {
			return nil, err
		}
		s.Studio.Scenes = scenes
		return res, nil

	case FieldMetadata:
		res, err := o.metadata(ctx, s)
		if err != nil {
			return nil, err
		}
		applyMetadata(s, res.Metadata)
		return res, nil
	}
	return nil, apperr.Validation("field", "%q cannot be regenerated", field)
}
