package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
)

var t0 = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, wrap func(Executor) Executor, mode model.Mode) (*Orchestrator, *registry.Registry, *poller.FakeClock) {
	t.Helper()
	reg := registry.Default()
	clock := poller.NewFakeClock(t0)
	var exec Executor = executor.New(reg, nil, executor.Settings{Clock: clock, SimulatedRenderPolls: 2})
	if wrap != nil {
		exec = wrap(exec)
	}
	o := New(reg, exec, StaticMode(mode), Options{
		Poller: poller.Config{MaxAttempts: 60, Interval: 5 * time.Second},
		Clock:  clock,
	})
	return o, reg, clock
}

func morningPrayer(reg *registry.Registry) *model.PipelineSession {
	s := NewSession("sess-1", "user-1", reg, t0)
	UpdateTrigger(s, model.TriggerRequest{
		Topic:             "Oração da manhã",
		ContentType:       model.ContentPrayer,
		EmotionalTriggers: []model.EmotionalTrigger{model.TriggerPeace, model.TriggerHope, model.TriggerPeace},
	})
	return s
}

func TestAdvanceRequiresReadiness(t *testing.T) {
	reg := registry.Default()
	s := NewSession("s", "u", reg, t0)

	err := Advance(s)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, model.PhaseTrigger, s.CurrentPhase)

	s.Trigger.Competitors = []model.CompetitorRef{{Transcript: "Senhor, obrigado..."}}
	require.NoError(t, Advance(s))
	assert.Equal(t, model.PhasePlanning, s.CurrentPhase)

	assert.True(t, apperr.IsValidation(Advance(s)))

	s.Planning.Plan = "1. Salmos"
	require.NoError(t, ApprovePlanning(s, t0))
	require.NoError(t, Advance(s))
	assert.Equal(t, model.PhaseIntelligence, s.CurrentPhase)

	// an earlier phase that lost readiness blocks advancing
	s.Intelligence.Facts = []string{"fato"}
	s.Trigger.Competitors = nil
	assert.True(t, apperr.IsValidation(Advance(s)))
	assert.Equal(t, model.PhaseIntelligence, s.CurrentPhase)
}

func TestDeliveryIsTerminal(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	s.CurrentPhase = model.PhaseDelivery
	assert.False(t, CanAdvance(s, model.PhaseDelivery))
	assert.True(t, apperr.IsValidation(Advance(s)))
}

func TestStudioReadiness(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	assert.False(t, CanAdvance(s, model.PhaseStudio))

	s.Studio.Scenes = []model.Scene{{Narration: "Bom dia."}}
	assert.False(t, CanAdvance(s, model.PhaseStudio))

	s.Studio.Render = &model.RenderJob{ID: "j", Status: model.RenderFailed}
	assert.False(t, CanAdvance(s, model.PhaseStudio))

	s.Studio.Render = &model.RenderJob{ID: "j", Status: model.RenderDone, ResultURL: "https://r/v.mp4"}
	assert.True(t, CanAdvance(s, model.PhaseStudio))

	s.Studio.Render = nil
	require.NoError(t, AcknowledgeManualAssembly(s))
	assert.True(t, CanAdvance(s, model.PhaseStudio))
}

func TestPhaseOrderingUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSession("s", "u", registry.Default(), t0)

	for i := 0; i < 2000; i++ {
		before := s.CurrentPhase
		ready := CanAdvance(s, before)
		for _, p := range model.Phases[:before.Index()] {
			ready = ready && CanAdvance(s, p)
		}

		switch rng.Intn(8) {
		case 0:
			_ = Advance(s)
			if ready {
				next, _ := before.Next()
				assert.Equal(t, next, s.CurrentPhase)
			} else {
				assert.Equal(t, before, s.CurrentPhase)
			}
		case 1:
			to := model.Phases[rng.Intn(len(model.Phases))]
			err := GoBack(s, to)
			if to.Index() < before.Index() {
				require.NoError(t, err)
				assert.Equal(t, to, s.CurrentPhase)
			} else {
				assert.Error(t, err)
				assert.Equal(t, before, s.CurrentPhase)
			}
		case 2:
			s.Trigger.Topic = []string{"", "Salmo 23"}[rng.Intn(2)]
		case 3:
			s.Planning.Plan = "plano"
			_ = ApprovePlanning(s, t0)
		case 4:
			s.Intelligence.Facts = [][]string{nil, {"fato"}}[rng.Intn(2)]
		case 5:
			s.Creation.Options = []model.CreativeOption{{ID: "opt-1"}, {ID: "opt-2"}}
			_ = SelectOption(s, "opt-2")
			s.Creation.Script = []string{"", "roteiro"}[rng.Intn(2)]
		case 6:
			s.Studio.Scenes = []model.Scene{{Narration: "cena"}}
			_ = AcknowledgeManualAssembly(s)
		case 7:
			s.Planning.Approved = false
		}

		if s.CurrentPhase.Index() > before.Index() {
			assert.Equal(t, before.Index()+1, s.CurrentPhase.Index())
			assert.True(t, ready, "advanced from %s without readiness", before)
		}
	}
}

func TestGoBackKeepsData(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	s.CurrentPhase = model.PhaseCreation
	s.Planning.Plan = "plano"
	s.Intelligence.Facts = []string{"fato"}

	require.NoError(t, GoBack(s, model.PhasePlanning))
	assert.Equal(t, "plano", s.Planning.Plan)
	assert.Equal(t, []string{"fato"}, s.Intelligence.Facts)

	assert.True(t, apperr.IsValidation(GoBack(s, model.PhasePlanning)))
	assert.True(t, apperr.IsValidation(GoBack(s, model.PhaseStudio)))
	assert.True(t, apperr.IsValidation(GoBack(s, "nowhere")))
}

func TestApprovePlanningKeepsFirstTimestamp(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	assert.True(t, apperr.IsValidation(ApprovePlanning(s, t0)))

	s.Planning.Plan = "plano"
	require.NoError(t, ApprovePlanning(s, t0))
	require.NoError(t, ApprovePlanning(s, t0.Add(time.Hour)))

	assert.True(t, s.Planning.Approved)
	require.NotNil(t, s.Planning.ApprovedAt)
	assert.Equal(t, t0, *s.Planning.ApprovedAt)
}

func TestEditPlanMarksDirty(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	s.Planning.Plan, s.Planning.OriginalPlan = "gerado", "gerado"
	assert.False(t, s.Planning.Dirty())

	require.NoError(t, EditPlan(s, "editado"))
	assert.True(t, s.Planning.Dirty())
	assert.Error(t, EditPlan(s, "  "))
}

func TestUpdateTriggerNormalizes(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	s.Trigger.Competitors = []model.CompetitorRef{{
		URL:      "https://youtu.be/abc123",
		Metadata: &model.CompetitorMetadata{VideoID: "abc123", Title: "Ref"},
	}}

	UpdateTrigger(s, model.TriggerRequest{
		Topic:             "  Salmo 91 ",
		EmotionalTriggers: []model.EmotionalTrigger{model.TriggerPeace, model.TriggerFaith, model.TriggerPeace},
		Competitors: []model.CompetitorInput{
			{URL: "https://youtu.be/abc123"},
			{},
			{Transcript: "texto"},
		},
	})

	assert.Equal(t, "Salmo 91", s.Trigger.Topic)
	assert.Equal(t, DefaultTargetDurationSec, s.Trigger.TargetDurationSec)
	assert.Equal(t, []model.EmotionalTrigger{model.TriggerFaith, model.TriggerPeace}, s.Trigger.EmotionalTriggers)
	require.Len(t, s.Trigger.Competitors, 2)
	require.NotNil(t, s.Trigger.Competitors[0].Metadata)
	assert.Equal(t, "Ref", s.Trigger.Competitors[0].Metadata.Title)
}

func TestResolveField(t *testing.T) {
	tests := []struct {
		phase model.Phase
		field string
		want  string
	}{
		{model.PhasePlanning, "plano", FieldPlan},
		{model.PhaseIntelligence, "análiseCanal", FieldChannelAnalysis},
		{model.PhaseIntelligence, "competitorAnalysis", FieldCompetitorAnalysis},
		{model.PhaseCreation, "Roteiro", FieldScript},
		{model.PhaseCreation, "opções", FieldOptions},
		{model.PhaseStudio, "cenas", FieldScenes},
		{model.PhaseDelivery, "metadados", FieldMetadata},
	}
	for _, tt := range tests {
		got, err := ResolveField(tt.phase, tt.field)
		require.NoError(t, err, tt.field)
		assert.Equal(t, tt.want, got)
	}

	_, err := ResolveField(model.PhaseCreation, "plano")
	assert.True(t, apperr.IsValidation(err))
	_, err = ResolveField(model.PhaseTrigger, "topic")
	assert.True(t, apperr.IsValidation(err))
}

// toCreation runs the pipeline up to a selected option and a script.
func toCreation(t *testing.T, o *Orchestrator, s *model.PipelineSession) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, Advance(s))
	_, err := o.DraftPlan(ctx, s)
	require.NoError(t, err)
	require.NoError(t, ApprovePlanning(s, o.Now()))
	require.NoError(t, Advance(s))

	_, err = o.Research(ctx, s)
	require.NoError(t, err)
	require.NoError(t, Advance(s))

	_, err = o.GenerateOptions(ctx, s)
	require.NoError(t, err)
	require.NoError(t, SelectOption(s, "opt-2"))
	_, err = o.GenerateScript(ctx, s)
	require.NoError(t, err)
}

func sessionJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRegenerateScriptTouchesOnlyScript(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := morningPrayer(reg)
	toCreation(t, o, s)

	before := *s
	creation := s.Creation
	creation.Script = ""
	wantCreation := sessionJSON(t, creation)
	wantOthers := sessionJSON(t, []any{before.Trigger, before.Planning, before.Intelligence, before.Studio, before.Delivery, before.Actions, before.CurrentPhase})

	res, err := o.Regenerate(context.Background(), s, model.PhaseCreation, "roteiro")
	require.NoError(t, err)
	assert.Equal(t, res.Text, s.Creation.Script)
	assert.NotEmpty(t, s.Creation.Script)

	after := s.Creation
	after.Script = ""
	assert.Equal(t, wantCreation, sessionJSON(t, after))
	assert.Equal(t, wantOthers, sessionJSON(t, []any{s.Trigger, s.Planning, s.Intelligence, s.Studio, s.Delivery, s.Actions, s.CurrentPhase}))
}

func TestRegenerateOptionsKeepsSelection(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := morningPrayer(reg)
	toCreation(t, o, s)

	_, err := o.Regenerate(context.Background(), s, model.PhaseCreation, "opcoes")
	require.NoError(t, err)
	assert.Len(t, s.Creation.Options, 3)
	assert.Equal(t, "opt-2", s.Creation.SelectedOptionID)
}

func TestMorningPrayerEndToEnd(t *testing.T) {
	o, reg, clock := newTestOrchestrator(t, nil, model.ModeSimulated)
	ctx := context.Background()
	s := morningPrayer(reg)
	assert.Empty(t, s.Trigger.Competitors)
	assert.True(t, CanAdvance(s, model.PhaseTrigger))

	toCreation(t, o, s)
	assert.NotEmpty(t, s.Planning.Plan)
	assert.NotEmpty(t, s.Intelligence.Facts)
	assert.Len(t, s.Creation.Options, 3)

	_, err := o.Regenerate(ctx, s, model.PhaseCreation, "roteiro")
	require.NoError(t, err)
	assert.Equal(t, "opt-2", s.Creation.SelectedOptionID)
	require.NoError(t, Advance(s))
	assert.Equal(t, model.PhaseStudio, s.CurrentPhase)

	_, err = o.BuildScenes(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, s.Studio.Scenes)
	assert.Equal(t, float64(s.Trigger.TargetDurationSec), s.Studio.Scenes[len(s.Studio.Scenes)-1].End)
	for _, sc := range s.Studio.Scenes {
		assert.NotEmpty(t, sc.VisualURL)
		assert.NotEmpty(t, sc.AudioURL)
	}

	job, err := o.SubmitRender(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, model.RenderSubmitted, job.Status)
	assert.False(t, CanAdvance(s, model.PhaseStudio))

	var attempts []int
	res, err := o.TrackRender(ctx, *job, o.Mode(), func(n int, st poller.Status, err error) {
		attempts = append(attempts, n)
	})
	require.NoError(t, err)
	assert.Equal(t, poller.OutcomeDone, res.Outcome)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, []int{1, 1}, attempts)

	assert.True(t, ApplyRenderOutcome(s, job.ID, res, clock.Now()))
	assert.True(t, CanAdvance(s, model.PhaseStudio))
	assert.NoError(t, RenderFailure(s.Studio.Render))
	require.NoError(t, Advance(s))
	assert.Equal(t, model.PhaseDelivery, s.CurrentPhase)

	_, err = o.PrepareDelivery(ctx, s)
	require.NoError(t, err)
	winner, _ := s.Creation.Winner()
	assert.Equal(t, winner.Title, s.Delivery.Title)
	assert.Equal(t, res.ResultURL, s.Delivery.VideoURL)

	pub, err := o.Publish(ctx, s, "unlisted")
	require.NoError(t, err)
	assert.True(t, s.Delivery.Published)
	assert.Equal(t, pub.Publication.VideoID, s.Delivery.PlatformVideoID)

	_, err = o.Publish(ctx, s, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestSubmitRenderWhileRunning(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := morningPrayer(reg)
	s.Studio.Scenes = []model.Scene{{Narration: "Bom dia.", End: 60}}

	_, err := o.SubmitRender(context.Background(), s)
	require.NoError(t, err)
	_, err = o.SubmitRender(context.Background(), s)
	assert.True(t, apperr.IsValidation(err))
}

func TestApplyRenderOutcome(t *testing.T) {
	s := NewSession("s", "u", registry.Default(), t0)
	s.Studio.Render = &model.RenderJob{ID: "job-2", Status: model.RenderProcessing}

	assert.False(t, ApplyRenderOutcome(s, "job-1", poller.Result{Outcome: poller.OutcomeDone, ResultURL: "x"}, t0))
	assert.True(t, RecordPollAttempt(s, "job-2", 3))
	assert.Equal(t, 3, s.Studio.Render.Attempts)

	assert.True(t, ApplyRenderOutcome(s, "job-2", poller.Result{Outcome: poller.OutcomeInconsistent, Attempts: 3}, t0))
	assert.Equal(t, model.RenderFailed, s.Studio.Render.Status)
	var re *apperr.RenderError
	require.True(t, errors.As(RenderFailure(s.Studio.Render), &re))
	assert.Equal(t, apperr.RenderInconsistent, re.Kind)

	// terminal jobs never change again
	assert.False(t, ApplyRenderOutcome(s, "job-2", poller.Result{Outcome: poller.OutcomeDone, ResultURL: "x"}, t0))
	assert.False(t, RecordPollAttempt(s, "job-2", 4))
	assert.Equal(t, model.RenderFailed, s.Studio.Render.Status)

	s.Studio.Render = &model.RenderJob{ID: "job-3", Status: model.RenderSubmitted}
	assert.True(t, ApplyRenderOutcome(s, "job-3", poller.Result{Outcome: poller.OutcomeTimeout, Attempts: 60}, t0))
	require.True(t, errors.As(RenderFailure(s.Studio.Render), &re))
	assert.Equal(t, apperr.RenderTimeout, re.Kind)

	s.Studio.Render = &model.RenderJob{ID: "job-4", Status: model.RenderProcessing}
	assert.True(t, ApplyRenderOutcome(s, "job-4", poller.Result{Outcome: poller.OutcomeExplicitError, Last: poller.Status{State: "error", Message: "bad asset"}}, t0))
	assert.Equal(t, model.RenderError, s.Studio.Render.Status)
	require.True(t, errors.As(RenderFailure(s.Studio.Render), &re))
	assert.Equal(t, apperr.RenderExplicitFailure, re.Kind)
	assert.Equal(t, "bad asset", re.Message)
}

// stuckRender never finishes a render.
type stuckRender struct {
	Executor
	polls int
}

func (f *stuckRender) Poll(ctx context.Context, sel model.Selection, jobID string, mode model.Mode) (poller.Status, error) {
	f.polls++
	if f.polls%2 == 0 {
		return poller.Status{}, errors.New("connection reset")
	}
	return poller.Status{State: "processing"}, nil
}

func TestTrackRenderTimesOutAfterMaxAttempts(t *testing.T) {
	stuck := &stuckRender{}
	o, _, _ := newTestOrchestrator(t, func(e Executor) Executor {
		stuck.Executor = e
		return stuck
	}, model.ModeLive)

	job := model.RenderJob{ID: "job", Provider: registry.ProviderShotstack, Model: "stage", SubmittedAt: t0}
	res, err := o.TrackRender(context.Background(), job, model.ModeLive, nil)
	require.NoError(t, err)
	assert.Equal(t, poller.OutcomeTimeout, res.Outcome)
	assert.Equal(t, 60, res.Polls)
	assert.Equal(t, 60, stuck.polls)
}

// failingThumbnail fails the image of one option.
type failingThumbnail struct {
	Executor
	option string
}

func (f *failingThumbnail) Execute(ctx context.Context, a *model.Action, sel model.Selection, in executor.Input, mode model.Mode) (*executor.Result, error) {
	if a.ID == model.ActionThumbnailImage && in.Hints.OptionID == f.option {
		return nil, apperr.Validation("selection", "boom")
	}
	return f.Executor.Execute(ctx, a, sel, in, mode)
}

func TestGenerateThumbnailsIsolatesFailures(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, func(e Executor) Executor {
		return &failingThumbnail{Executor: e, option: "opt-2"}
	}, model.ModeSimulated)
	s := morningPrayer(reg)
	toCreation(t, o, s)

	out, err := o.GenerateThumbnails(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NotEmpty(t, out[0].URL)
	assert.NotEmpty(t, out[1].Error)
	assert.NotEmpty(t, out[2].URL)
	assert.NotEmpty(t, s.Creation.Options[0].ThumbnailURL)
	assert.Empty(t, s.Creation.Options[1].ThumbnailURL)
	assert.Equal(t, out[2].URL, s.Creation.Options[2].ThumbnailURL)

	_, err = o.GenerateThumbnail(context.Background(), s, "opt-9")
	assert.True(t, apperr.IsNotFound(err))
}

// brokenText fails every live text call as a provider would.
type brokenText struct {
	Executor
}

func (f brokenText) Execute(ctx context.Context, a *model.Action, sel model.Selection, in executor.Input, mode model.Mode) (*executor.Result, error) {
	return nil, &apperr.ProviderError{Provider: sel.Provider, Kind: apperr.KindQuotaExceeded}
}

func TestCriticalFailureLeavesSessionUntouched(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, func(e Executor) Executor { return brokenText{e} }, model.ModeLive)
	s := morningPrayer(reg)
	s.Planning.Plan = "plano antigo"

	_, err := o.DraftPlan(context.Background(), s)
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, apperr.KindQuotaExceeded, pe.Kind)
	assert.Equal(t, apperr.ConfiguredFailing, apperr.Classify(err))
	assert.Equal(t, "plano antigo", s.Planning.Plan)
}

// failingPublish rejects uploads and serves everything else normally.
type failingPublish struct {
	Executor
}

func (f failingPublish) Execute(ctx context.Context, a *model.Action, sel model.Selection, in executor.Input, mode model.Mode) (*executor.Result, error) {
	if a.ID == model.ActionPublish {
		return nil, &apperr.ProviderError{Provider: sel.Provider, Kind: apperr.KindPermissionDenied}
	}
	return f.Executor.Execute(ctx, a, sel, in, mode)
}

func TestFailedPublishLeavesDeliveryUntouched(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, func(e Executor) Executor { return failingPublish{e} }, model.ModeSimulated)
	s := morningPrayer(reg)
	s.CurrentPhase = model.PhaseDelivery
	s.Studio.Render = &model.RenderJob{ID: "job-1", Status: model.RenderDone, ResultURL: "https://cdn.example/job-1.mp4"}
	s.Delivery.Title = "Oração da manhã"

	_, err := o.Publish(context.Background(), s, "unlisted")
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, s.Delivery.VideoURL)
	assert.False(t, s.Delivery.Published)
	assert.Nil(t, s.Delivery.PublishedAt)
}

func studioWithRender(reg *registry.Registry) *model.PipelineSession {
	s := morningPrayer(reg)
	s.CurrentPhase = model.PhaseStudio
	s.Creation.Script = "Bom dia. Senhor, obrigado.\n\nQue a tua paz me guarde. Amém."
	s.Studio.Scenes = []model.Scene{{Index: 0, End: 60, Narration: "Bom dia."}}
	s.Studio.Render = &model.RenderJob{ID: "job-1", Status: model.RenderDone, ResultURL: "https://cdn.example/job-1.mp4"}
	s.Studio.ManualAssembly = true
	s.Delivery.VideoURL = s.Studio.Render.ResultURL
	return s
}

func TestBuildScenesVoidsPreviousRender(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := studioWithRender(reg)
	require.True(t, CanAdvance(s, model.PhaseStudio))

	_, err := o.BuildScenes(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Studio.Scenes)
	assert.Nil(t, s.Studio.Render)
	assert.False(t, s.Studio.ManualAssembly)
	assert.Empty(t, s.Delivery.VideoURL)
	assert.False(t, CanAdvance(s, model.PhaseStudio))
}

func TestBuildScenesWhileRendering(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := studioWithRender(reg)
	s.Studio.Render.Status = model.RenderProcessing

	_, err := o.BuildScenes(context.Background(), s)
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "render", ve.Field)
	assert.Len(t, s.Studio.Scenes, 1)
	assert.Equal(t, "job-1", s.Studio.Render.ID)
}

func TestRegenerateScenesKeepsRender(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	s := studioWithRender(reg)

	_, err := o.Regenerate(context.Background(), s, model.PhaseStudio, "cenas")
	require.NoError(t, err)
	require.NotNil(t, s.Studio.Render)
	assert.Equal(t, "job-1", s.Studio.Render.ID)
	assert.True(t, s.Studio.ManualAssembly)
	assert.Equal(t, "https://cdn.example/job-1.mp4", s.Delivery.VideoURL)
}

func TestSetSelectionAndEstimate(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeLive)
	s := morningPrayer(reg)

	_, err := o.SetSelection(s, model.ActionGenerateScript, model.Selection{Provider: registry.ProviderPollinations, Model: "flux"})
	assert.True(t, apperr.IsValidation(err))

	a, err := o.SetSelection(s, model.ActionGenerateScript, model.Selection{Provider: registry.ProviderOpenAI, Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", a.Selection.Model)

	cost, err := o.EstimateAction(s, model.ActionGenerateScript)
	require.NoError(t, err)
	assert.InDelta(t, 0.01125, cost, 1e-9)

	def, err := reg.DefaultSelection(model.ActionGenerateScript)
	require.NoError(t, err)
	assert.Equal(t, registry.ProviderGroq, def.Provider)

	overview, err := o.EstimateSession(s)
	require.NoError(t, err)
	assert.Len(t, overview.Actions, len(reg.Actions()))
	assert.GreaterOrEqual(t, overview.Total, cost)

	_, err = o.SetSelection(s, "nope", model.Selection{})
	assert.True(t, apperr.IsNotFound(err))
}

func TestSimulatedEstimatesAreFree(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, nil, model.ModeSimulated)
	overview, err := o.EstimateSession(morningPrayer(reg))
	require.NoError(t, err)
	assert.Zero(t, overview.Total)
}
