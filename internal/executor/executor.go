// Package executor runs one action against one provider/model pair in
// simulated or live mode and returns the same result shape either way.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/metrics"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
)

// Settings configures an Executor
type Settings struct {
	CallTimeout          time.Duration
	PublishTimeout       time.Duration
	SimulatedDelay       time.Duration
	SimulatedRenderPolls int
	// RatePerSec throttles live calls per provider; 0 disables throttling.
	RatePerSec float64
	Clock      poller.Clock
	Metrics    *metrics.Metrics
}

func (s Settings) withDefaults() Settings {
	if s.CallTimeout <= 0 {
		s.CallTimeout = 60 * time.Second
	}
	if s.PublishTimeout <= 0 {
		s.PublishTimeout = 10 * time.Minute
	}
	if s.SimulatedRenderPolls <= 0 {
		s.SimulatedRenderPolls = 2
	}
	if s.Clock == nil {
		s.Clock = poller.SystemClock{}
	}
	return s
}

// Hints carry the session context that simulation and fallbacks draw on
type Hints struct {
	SessionID         string
	Topic             string
	ContentType       model.ContentType
	Triggers          []model.EmotionalTrigger
	TargetDurationSec int
	OptionID          string
	Title             string
	Hook              string
	Script            string
	SceneIndex        int
}

// Input is everything one action call needs
type Input struct {
	Payload client.Payload
	Hints   Hints
}

// Result is the common output of every action. Fields that do not apply
// to an action stay empty; the field set never depends on the mode.
type Result struct {
	ActionID    model.ActionID         `json:"actionId"`
	Provider    string                 `json:"provider"`
	Model       string                 `json:"model"`
	Simulated   bool                   `json:"simulated"`
	Fallback    bool                   `json:"fallback"`
	FallbackErr string                 `json:"fallbackError"`
	Cost        float64                `json:"cost"`
	Units       int                    `json:"units"`
	Text        string                 `json:"text"`
	Facts       []string               `json:"facts"`
	Trivia      []string               `json:"trivia"`
	Citations   []model.Citation       `json:"citations"`
	Analysis    string                 `json:"analysis"`
	Options     []model.CreativeOption `json:"options"`
	Scenes      []model.Scene          `json:"scenes"`
	Metadata    *model.PublishMetadata `json:"metadata"`
	Asset       *client.Asset          `json:"asset"`
	Media       []client.Asset         `json:"media"`
	Job         *client.JobState       `json:"job"`
	Videos      []client.VideoStats    `json:"videos"`
	Publication *client.Publication    `json:"publication"`
}

// normalize replaces nil slices with empty ones so both modes serialize
// identically.
func (r *Result) normalize() {
	if r.Facts == nil {
		r.Facts = []string{}
	}
	if r.Trivia == nil {
		r.Trivia = []string{}
	}
	if r.Citations == nil {
		r.Citations = []model.Citation{}
	}
	if r.Options == nil {
		r.Options = []model.CreativeOption{}
	}
	if r.Scenes == nil {
		r.Scenes = []model.Scene{}
	}
	if r.Media == nil {
		r.Media = []client.Asset{}
	}
	if r.Videos == nil {
		r.Videos = []client.VideoStats{}
	}
}

// Executor dispatches actions to the simulated or the live strategy
type Executor struct {
	registry *registry.Registry
	adapters *client.Set
	settings Settings

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	simJobs  map[string]int
}

// New creates an executor. adapters may be nil when only simulated mode
// is used.
func New(reg *registry.Registry, adapters *client.Set, settings Settings) *Executor {
	if adapters == nil {
		adapters = client.NewSet()
	}
	return &Executor{
		registry: reg,
		adapters: adapters,
		settings: settings.withDefaults(),
		limiters: make(map[string]*rate.Limiter),
		simJobs:  make(map[string]int),
	}
}

// Registry returns the catalog the executor prices against.
func (e *Executor) Registry() *registry.Registry {
	return e.registry
}

// Execute runs action with the given selection. A zero selection uses the
// action's own. Failures of non-critical actions are replaced by a
// deterministic fallback; failures of critical actions are returned.
func (e *Executor) Execute(ctx context.Context, action *model.Action, sel model.Selection, in Input, mode model.Mode) (*Result, error) {
	start := time.Now()
	if sel.IsZero() {
		sel = action.Selection
	}

	role, err := e.role(action, sel)
	if err != nil {
		return nil, err
	}

	var raw *client.Response
	if mode == model.ModeSimulated {
		raw, err = e.simulate(ctx, action.ID, sel, in)
	} else {
		raw, err = e.call(ctx, action.ID, role, sel, client.OpGenerate, in.Payload)
	}

	var res *Result
	if err == nil {
		res, err = decode(action.ID, raw, in)
		if err != nil {
			err = &apperr.ProviderError{Provider: sel.Provider, Model: sel.Model, Kind: apperr.KindUnknown, Message: err.Error(), Cause: err}
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		e.recordError(sel.Provider, err)

		fb, ok := fallback(action.ID, in)
		if action.Critical || !ok {
			e.observe(action.ID, sel, mode, "error", start)
			return nil, err
		}

		slog.Warn("action fell back to default",
			"action", action.ID, "provider", sel.Provider, "model", sel.Model,
			"mode", mode, "remediation", apperr.Classify(err), "error", err)
		e.settings.Metrics.Fallback(string(action.ID))
		res = fb
		res.Fallback = true
		res.FallbackErr = err.Error()
	}

	res.ActionID = action.ID
	res.Provider = sel.Provider
	res.Model = sel.Model
	res.Simulated = mode == model.ModeSimulated
	if !res.Fallback && !res.Simulated {
		units := res.Units
		if units <= 0 {
			units = action.EstimatedUnits
		}
		cost, err := e.registry.EstimateCost(sel.Provider, sel.Model, units, mode)
		if err != nil {
			return nil, err
		}
		res.Cost = cost
	}
	res.normalize()

	outcome := "ok"
	if res.Fallback {
		outcome = "fallback"
	}
	e.observe(action.ID, sel, mode, outcome, start)
	slog.Debug("action executed", "action", action.ID, "provider", sel.Provider, "model", sel.Model,
		"mode", mode, "fallback", res.Fallback, "cost", res.Cost, "elapsed", time.Since(start))

	return res, nil
}

// Poll reports the status of a render job. A returned error is a transport
// failure.
func (e *Executor) Poll(ctx context.Context, sel model.Selection, jobID string, mode model.Mode) (poller.Status, error) {
	e.settings.Metrics.PollAttempt()

	if mode == model.ModeSimulated {
		return e.simulatePoll(jobID), nil
	}

	raw, err := e.call(ctx, model.ActionRenderVideo, model.RoleVideoRender, sel, client.OpStatus, client.Payload{JobID: jobID})
	if err != nil {
		return poller.Status{}, err
	}
	if raw.Job == nil {
		return poller.Status{}, fmt.Errorf("status response for job %s has no job", jobID)
	}
	return poller.Status{State: raw.Job.Status, ResultURL: raw.Job.ResultURL, Message: raw.Job.Message}, nil
}

// role picks the first action role the selected model serves.
func (e *Executor) role(action *model.Action, sel model.Selection) (model.Role, error) {
	if err := e.registry.ValidateSelection(sel, action.Roles); err != nil {
		return "", apperr.Validation("selection", "%s: %v", action.ID, err)
	}
	m, _ := e.registry.Lookup(sel.Provider, sel.Model)
	for _, r := range action.Roles {
		if m.Serves(r) {
			return r, nil
		}
	}
	return "", apperr.Validation("selection", "%s/%s serves no role of %s", sel.Provider, sel.Model, action.ID)
}

func (e *Executor) call(ctx context.Context, id model.ActionID, role model.Role, sel model.Selection, op client.Op, payload client.Payload) (*client.Response, error) {
	adapter, err := e.adapters.Get(sel.Provider)
	if err != nil {
		return nil, err
	}

	if lim := e.limiter(sel.Provider); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	timeout := e.settings.CallTimeout
	if role == model.RoleVideoPublishing {
		timeout = e.settings.PublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return adapter.Do(ctx, &client.Request{
		Action:  id,
		Role:    role,
		Model:   sel.Model,
		Op:      op,
		Payload: payload,
	})
}

func (e *Executor) limiter(provider string) *rate.Limiter {
	if e.settings.RatePerSec <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	lim, ok := e.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(e.settings.RatePerSec), 2)
		e.limiters[provider] = lim
	}
	return lim
}

func (e *Executor) recordError(provider string, err error) {
	var pe *apperr.ProviderError
	if errors.As(err, &pe) {
		e.settings.Metrics.ProviderError(pe.Provider, string(pe.Kind))
		return
	}
	var ce *apperr.ConfigError
	if errors.As(err, &ce) {
		e.settings.Metrics.ProviderError(provider, string(apperr.NotConfigured))
	}
}

func (e *Executor) observe(id model.ActionID, sel model.Selection, mode model.Mode, outcome string, start time.Time) {
	e.settings.Metrics.ObserveAction(string(id), sel.Provider, string(mode), outcome, time.Since(start).Seconds())
}
