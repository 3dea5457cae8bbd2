package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
)

// Executor runs actions and polls render jobs.
type Executor interface {
	Execute(ctx context.Context, action *model.Action, sel model.Selection, in executor.Input, mode model.Mode) (*executor.Result, error)
	Poll(ctx context.Context, sel model.Selection, jobID string, mode model.Mode) (poller.Status, error)
}

// ModeSource reports the current execution mode.
type ModeSource interface {
	Mode() model.Mode
}

// StaticMode is a ModeSource that never changes.
type StaticMode model.Mode

func (m StaticMode) Mode() model.Mode { return model.Mode(m) }

// Options configures an Orchestrator
type Options struct {
	Language             string
	Poller               poller.Config
	Clock                poller.Clock
	ThumbnailConcurrency int
	// ChannelID is the own channel analyzed in Intelligence.
	ChannelID  string
	CategoryID string
}

// Orchestrator runs the actions of every phase against a session. It never
// persists anything; callers hold the session lock around each call.
type Orchestrator struct {
	reg    *registry.Registry
	exec   Executor
	modes  ModeSource
	poller *poller.Poller
	clock  poller.Clock
	opts   Options
}

// New creates an orchestrator.
func New(reg *registry.Registry, exec Executor, modes ModeSource, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = poller.SystemClock{}
	}
	if opts.Language == "" {
		opts.Language = "pt-BR"
	}
	if opts.ThumbnailConcurrency <= 0 {
		opts.ThumbnailConcurrency = 3
	}
	if modes == nil {
		modes = StaticMode(model.ModeSimulated)
	}
	return &Orchestrator{
		reg:    reg,
		exec:   exec,
		modes:  modes,
		poller: poller.New(opts.Poller, opts.Clock),
		clock:  opts.Clock,
		opts:   opts,
	}
}

// Mode returns the current execution mode.
func (o *Orchestrator) Mode() model.Mode {
	return o.modes.Mode()
}

// PollerConfig returns the effective render polling bounds.
func (o *Orchestrator) PollerConfig() poller.Config {
	return o.poller.Config()
}

// Now reads the orchestrator clock.
func (o *Orchestrator) Now() time.Time {
	return o.clock.Now()
}

// action returns the session's record for id, or a fresh default when the
// session predates the action.
func (o *Orchestrator) action(s *model.PipelineSession, id model.ActionID) (*model.Action, error) {
	if a, ok := s.Actions[id]; ok && a != nil {
		return a, nil
	}
	if _, ok := o.reg.Action(id); !ok {
		return nil, &apperr.NotFoundError{Resource: "action", ID: string(id)}
	}
	return o.reg.NewActionSet()[id], nil
}

func topicOf(s *model.PipelineSession) string {
	if t := strings.TrimSpace(s.Trigger.Topic); t != "" {
		return t
	}
	for _, c := range s.Trigger.Competitors {
		if c.Metadata != nil && c.Metadata.Title != "" {
			return c.Metadata.Title
		}
	}
	return "Reflexão do dia"
}

func hints(s *model.PipelineSession) executor.Hints {
	h := executor.Hints{
		SessionID:         s.ID,
		Topic:             topicOf(s),
		ContentType:       s.Trigger.ContentType,
		Triggers:          s.Trigger.EmotionalTriggers,
		TargetDurationSec: s.Trigger.TargetDurationSec,
		Script:            s.Creation.Script,
	}
	if w, ok := s.Creation.Winner(); ok {
		h.OptionID = w.ID
		h.Title = w.Title
		h.Hook = w.Hook
	}
	return h
}

func (o *Orchestrator) textPayload(prompt string, json bool, maxTokens int) client.Payload {
	return client.Payload{
		System:      o.system(),
		Prompt:      prompt,
		JSON:        json,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
}

func (o *Orchestrator) run(ctx context.Context, s *model.PipelineSession, id model.ActionID, in executor.Input) (*executor.Result, error) {
	a, err := o.action(s, id)
	if err != nil {
		return nil, err
	}
	res, err := o.exec.Execute(ctx, a, a.Selection, in, o.Mode())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return res, nil
}

func (o *Orchestrator) runWith(ctx context.Context, s *model.PipelineSession, id model.ActionID, payload client.Payload) (*executor.Result, error) {
	return o.run(ctx, s, id, executor.Input{Payload: payload, Hints: hints(s)})
}

// EnrichCompetitors fetches platform metadata for every competitor link.
func (o *Orchestrator) EnrichCompetitors(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	var ids []string
	for _, c := range s.Trigger.Competitors {
		if id, ok := client.VideoIDFromURL(c.URL); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("competitors", "no video links to enrich")
	}

	res, err := o.runWith(ctx, s, model.ActionCompetitorMetadata, client.Payload{VideoIDs: ids})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]client.VideoStats, len(res.Videos))
	for _, v := range res.Videos {
		byID[v.ID] = v
	}
	for i, c := range s.Trigger.Competitors {
		id, ok := client.VideoIDFromURL(c.URL)
		if !ok {
			continue
		}
		v, ok := byID[id]
		if !ok {
			continue
		}
		s.Trigger.Competitors[i].Metadata = &model.CompetitorMetadata{
			VideoID:     v.ID,
			Title:       v.Title,
			Channel:     v.Channel,
			Views:       v.Views,
			Likes:       v.Likes,
			PublishedAt: v.PublishedAt,
			Duration:    v.Duration,
			Tags:        v.Tags,
		}
	}
	return res, nil
}

func (o *Orchestrator) draftPlan(ctx context.Context, s *model.PipelineSession, old string) (*executor.Result, error) {
	if err := readiness(s, model.PhaseTrigger); err != nil {
		return nil, err
	}
	return o.runWith(ctx, s, model.ActionDraftPlan, o.textPayload(planPrompt(s, old), false, 1024))
}

// DraftPlan generates the research plan. Approval is left as it is.
func (o *Orchestrator) DraftPlan(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.draftPlan(ctx, s, s.Planning.Plan)
	if err != nil {
		return nil, err
	}
	s.Planning.Plan = res.Text
	s.Planning.OriginalPlan = res.Text
	return res, nil
}

func (o *Orchestrator) research(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	if !s.Planning.Approved {
		return nil, apperr.Validation("planning", "approve the plan before research")
	}
	return o.runWith(ctx, s, model.ActionResearch, o.textPayload(researchPrompt(s, s.Intelligence.Facts), true, 2048))
}

// Research fills facts, trivia and citations from the approved plan.
func (o *Orchestrator) Research(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.research(ctx, s)
	if err != nil {
		return nil, err
	}
	s.Intelligence.Facts = res.Facts
	s.Intelligence.Trivia = res.Trivia
	s.Intelligence.Citations = res.Citations
	return res, nil
}

// AnalyzeChannel summarizes the performance of the own channel.
func (o *Orchestrator) AnalyzeChannel(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.runWith(ctx, s, model.ActionChannelAnalysis, client.Payload{ChannelID: o.opts.ChannelID, Limit: 10})
	if err != nil {
		return nil, err
	}
	s.Intelligence.ChannelAnalysis = res.Analysis
	return res, nil
}

// AnalyzeCompetitors compares the references against the topic.
func (o *Orchestrator) AnalyzeCompetitors(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	prompt := competitorPrompt(s, s.Intelligence.CompetitorAnalysis)
	res, err := o.runWith(ctx, s, model.ActionCompetitorAnalysis, o.textPayload(prompt, false, 1024))
	if err != nil {
		return nil, err
	}
	s.Intelligence.CompetitorAnalysis = res.Analysis
	return res, nil
}

func (o *Orchestrator) generateOptions(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	if len(s.Intelligence.Facts) == 0 {
		return nil, apperr.Validation("intelligence", "research facts are required to create options")
	}
	return o.runWith(ctx, s, model.ActionGenerateOptions, o.textPayload(optionsPrompt(s, s.Creation.Options), true, 1024))
}

// GenerateOptions replaces the candidate options and clears the selection.
func (o *Orchestrator) GenerateOptions(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.generateOptions(ctx, s)
	if err != nil {
		return nil, err
	}
	s.Creation.Options = res.Options
	s.Creation.SelectedOptionID = ""
	return res, nil
}

// ThumbnailOutcome reports one slot of a thumbnail batch
type ThumbnailOutcome struct {
	OptionID string  `json:"optionId"`
	URL      string  `json:"url,omitempty"`
	Fallback bool    `json:"fallback"`
	Cost     float64 `json:"cost"`
	Error    string  `json:"error,omitempty"`
}

func (o *Orchestrator) thumbnail(ctx context.Context, s *model.PipelineSession, opt model.CreativeOption) (*executor.Result, error) {
	prompt := opt.ImagePrompt
	if prompt == "" {
		prompt = opt.ThumbnailConcept
	}
	if prompt == "" {
		prompt = opt.Title
	}

	h := fnv.New64a()
	h.Write([]byte(s.ID + "/" + opt.ID))

	in := executor.Input{
		Payload: client.Payload{
			Prompt: prompt,
			Width:  1080,
			Height: 1920,
			Seed:   int64(h.Sum64() >> 1),
			Key:    client.AssetKey(s.ID, "thumbnails", opt.ID+".png"),
		},
		Hints: hints(s),
	}
	in.Hints.OptionID = opt.ID
	in.Hints.Title = opt.Title
	in.Hints.Hook = opt.Hook
	return o.run(ctx, s, model.ActionThumbnailImage, in)
}

// GenerateThumbnails renders one image per option concurrently. A failed
// slot leaves its option untouched and does not affect the others.
func (o *Orchestrator) GenerateThumbnails(ctx context.Context, s *model.PipelineSession) ([]ThumbnailOutcome, error) {
	opts := s.Creation.Options
	if len(opts) == 0 {
		return nil, apperr.Validation("options", "generate options first")
	}

	results := make([]*executor.Result, len(opts))
	errs := make([]error, len(opts))

	var g errgroup.Group
	g.SetLimit(o.opts.ThumbnailConcurrency)
	for i, opt := range opts {
		i, opt := i, opt
		g.Go(func() error {
			results[i], errs[i] = o.thumbnail(ctx, s, opt)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]ThumbnailOutcome, len(opts))
	for i, opt := range opts {
		out[i].OptionID = opt.ID
		if errs[i] != nil {
			out[i].Error = errs[i].Error()
			slog.Warn("thumbnail failed", "session", s.ID, "option", opt.ID, "error", errs[i])
			continue
		}
		s.Creation.Options[i].ThumbnailURL = results[i].Asset.URL
		out[i].URL = results[i].Asset.URL
		out[i].Fallback = results[i].Fallback
		out[i].Cost = results[i].Cost
	}
	return out, nil
}

// GenerateThumbnail retries the image of a single option.
func (o *Orchestrator) GenerateThumbnail(ctx context.Context, s *model.PipelineSession, optionID string) (*executor.Result, error) {
	for i, opt := range s.Creation.Options {
		if opt.ID != optionID {
			continue
		}
		res, err := o.thumbnail(ctx, s, opt)
		if err != nil {
			return nil, err
		}
		s.Creation.Options[i].ThumbnailURL = res.Asset.URL
		return res, nil
	}
	return nil, &apperr.NotFoundError{Resource: "option", ID: optionID}
}

func (o *Orchestrator) generateScript(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	winner, ok := s.Creation.Winner()
	if !ok {
		return nil, apperr.Validation("selectedOptionId", "select an option before writing the script")
	}
	prompt := scriptPrompt(s, winner, s.Creation.Script)
	return o.runWith(ctx, s, model.ActionGenerateScript, o.textPayload(prompt, false, 2048))
}

// GenerateScript writes the narration script for the winner option.
func (o *Orchestrator) GenerateScript(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.generateScript(ctx, s)
	if err != nil {
		return nil, err
	}
	s.Creation.Script = res.Text
	return res, nil
}

func (o *Orchestrator) buildScenes(ctx context.Context, s *model.PipelineSession) ([]model.Scene, *executor.Result, error) {
	if strings.TrimSpace(s.Creation.Script) == "" {
		return nil, nil, apperr.Validation("script", "a script is required to build scenes")
	}

	res, err := o.runWith(ctx, s, model.ActionSceneBreakdown, o.textPayload(scenesPrompt(s), true, 2048))
	if err != nil {
		return nil, nil, err
	}

	scenes := make([]model.Scene, len(res.Scenes))
	copy(scenes, res.Scenes)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.ThumbnailConcurrency)
	for i := range scenes {
		i := i
		g.Go(func() error {
			return o.dressScene(gctx, s, &scenes[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return scenes, res, nil
}

// dressScene attaches stock footage and narration audio to one scene.
func (o *Orchestrator) dressScene(ctx context.Context, s *model.PipelineSession, sc *model.Scene) error {
	query := sc.VisualQuery
	if query == "" {
		query = topicOf(s)
	}
	in := executor.Input{Payload: client.Payload{Query: query, Limit: 1}, Hints: hints(s)}
	in.Hints.SceneIndex = sc.Index
	visuals, err := o.run(ctx, s, model.ActionSceneVisuals, in)
	if err != nil {
		return err
	}
	if len(visuals.Media) > 0 {
		sc.VisualURL = visuals.Media[0].URL
	}

	in = executor.Input{Payload: client.Payload{
		Prompt: sc.Narration,
		Key:    client.AssetKey(s.ID, "narration", fmt.Sprintf("scene-%02d.mp3", sc.Index)),
	}, Hints: hints(s)}
	in.Hints.SceneIndex = sc.Index
	audio, err := o.run(ctx, s, model.ActionNarration, in)
	if err != nil {
		return err
	}
	if audio.Asset != nil {
		sc.AudioURL = audio.Asset.URL
	}
	return nil
}

// BuildScenes breaks the script into timed scenes with footage and audio.
// New scenes void the previous render and the manual assembly flag, so
// Studio has to be completed again. A running render blocks a rebuild.
func (o *Orchestrator) BuildScenes(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	if job := s.Studio.Render; job != nil && !job.Terminal() {
		return nil, apperr.Validation("render", "render %s is still %s", job.ID, job.Status)
	}
	scenes, res, err := o.buildScenes(ctx, s)
	if err != nil {
		return nil, err
	}

	s.Studio.Scenes = scenes
	if job := s.Studio.Render; job != nil && !s.Delivery.Published && s.Delivery.VideoURL == job.ResultURL {
		s.Delivery.VideoURL = ""
	}
	s.Studio.Render = nil
	s.Studio.ManualAssembly = false
	return res, nil
}

func (o *Orchestrator) metadata(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	winner, _ := s.Creation.Winner()
	return o.runWith(ctx, s, model.ActionDeliveryMetadata, o.textPayload(metadataPrompt(s, winner), true, 1024))
}

func applyMetadata(s *model.PipelineSession, meta *model.PublishMetadata) {
	s.Delivery.Title = meta.Title
	s.Delivery.Description = meta.Description
	s.Delivery.Tags = meta.Tags
}

// PrepareDelivery builds the publication package from the winner option
// and the render result.
func (o *Orchestrator) PrepareDelivery(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
	res, err := o.metadata(ctx, s)
	if err != nil {
		return nil, err
	}
	applyMetadata(s, res.Metadata)
	if w, ok := s.Creation.Winner(); ok {
		s.Delivery.ThumbnailURL = w.ThumbnailURL
	}
	if s.Studio.Render.Succeeded() {
		s.Delivery.VideoURL = s.Studio.Render.ResultURL
	}
	return res, nil
}

// Publish uploads the rendered video to the platform.
func (o *Orchestrator) Publish(ctx context.Context, s *model.PipelineSession, privacy string) (*executor.Result, error) {
	if s.CurrentPhase != model.PhaseDelivery {
		return nil, apperr.Validation("phase", "publishing is only possible in delivery")
	}
	if s.Delivery.Published {
		return nil, apperr.Validation("delivery", "already published as %s", s.Delivery.PlatformVideoID)
	}
	videoURL := s.Delivery.VideoURL
	if videoURL == "" && s.Studio.Render.Succeeded() {
		videoURL = s.Studio.Render.ResultURL
	}
	if videoURL == "" {
		return nil, apperr.Validation("videoUrl", "there is no rendered video to publish")
	}
	if strings.TrimSpace(s.Delivery.Title) == "" {
		return nil, apperr.Validation("title", "prepare the delivery metadata first")
	}
	if privacy == "" {
		privacy = "private"
	}

	res, err := o.runWith(ctx, s, model.ActionPublish, client.Payload{Publish: &client.PublishSpec{
		VideoURL:     videoURL,
		ThumbnailURL: s.Delivery.ThumbnailURL,
		Title:        s.Delivery.Title,
		Description:  s.Delivery.Description,
		Tags:         s.Delivery.Tags,
		Privacy:      privacy,
		CategoryID:   o.opts.CategoryID,
	}})
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	s.Delivery.VideoURL = videoURL
	s.Delivery.Published = true
	s.Delivery.PublishedAt = &now
	s.Delivery.PlatformVideoID = res.Publication.VideoID
	slog.Info("video published", "session", s.ID, "videoId", res.Publication.VideoID, "privacy", privacy)
	return res, nil
}

// SetSelection overrides the provider/model of one action for this session.
func (o *Orchestrator) SetSelection(s *model.PipelineSession, id model.ActionID, sel model.Selection) (*model.Action, error) {
	a, err := o.action(s, id)
	if err != nil {
		return nil, err
	}
	if err := o.reg.ValidateSelection(sel, a.Roles); err != nil {
		return nil, apperr.Validation("selection", "%v", err)
	}

	updated := *a
	updated.Selection = sel
	if s.Actions == nil {
		s.Actions = make(map[model.ActionID]*model.Action)
	}
	s.Actions[id] = &updated
	return &updated, nil
}

// EstimateAction prices the current selection of an action.
func (o *Orchestrator) EstimateAction(s *model.PipelineSession, id model.ActionID) (float64, error) {
	a, err := o.action(s, id)
	if err != nil {
		return 0, err
	}
	return o.reg.EstimateCost(a.Selection.Provider, a.Selection.Model, a.EstimatedUnits, o.Mode())
}

// EstimateSession prices every action of the session in declaration order.
func (o *Orchestrator) EstimateSession(s *model.PipelineSession) (*model.ActionCostResponse, error) {
	out := &model.ActionCostResponse{SessionID: s.ID, Actions: []model.ActionCost{}}
	mode := o.Mode()
	for _, def := range o.reg.Actions() {
		a, err := o.action(s, def.ID)
		if err != nil {
			return nil, err
		}
		cost, err := o.EstimateAction(s, def.ID)
		if err != nil {
			return nil, err
		}
		out.Actions = append(out.Actions, model.ActionCost{Action: a, EstimatedCost: cost, Mode: mode})
		out.Total += cost
	}
	return out, nil
}
