// Package registry holds the catalog of providers and models, the actions
// that use them, and the cost estimator.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/luzdodia/api/internal/model"
)

var (
	ErrUnknownModel  = errors.New("unknown provider model")
	ErrUnknownAction = errors.New("unknown action")
)

// PricingKind selects how a model is billed
type PricingKind string

const (
	PerThousandUnits PricingKind = "per_1k_units"
	PerCall          PricingKind = "per_call"
	FreeTier         PricingKind = "free_tier"
)

// Pricing is the billing rule of a model. Rate is in USD per thousand
// units (tokens or characters) or per call.
type Pricing struct {
	Kind PricingKind `json:"kind" yaml:"kind"`
	Rate float64     `json:"rate" yaml:"rate"`
}

// ModelInfo describes one model offered by a provider
type ModelInfo struct {
	ID      string       `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Roles   []model.Role `json:"roles" yaml:"roles"`
	Pricing Pricing      `json:"pricing" yaml:"pricing"`
}

// Serves reports whether the model provides any of the roles.
func (m ModelInfo) Serves(roles ...model.Role) bool {
	for _, want := range roles {
		for _, have := range m.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Provider is an external service with one or more models
type Provider struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Models []ModelInfo `json:"models" yaml:"models"`
}

// ModelOption is one entry of a model selector
type ModelOption struct {
	Provider     string       `json:"provider"`
	ProviderName string       `json:"providerName"`
	Model        string       `json:"model"`
	Name         string       `json:"name"`
	Roles        []model.Role `json:"roles"`
	Pricing      Pricing      `json:"pricing"`
}

// ActionDef declares an action and its default selection
type ActionDef struct {
	ID             model.ActionID
	Phase          model.Phase
	Roles          []model.Role
	Critical       bool
	EstimatedUnits int
	Default        model.Selection
}

type modelKey struct {
	provider string
	model    string
}

// Registry is an immutable catalog; build it with New, Default or Load.
type Registry struct {
	providers []Provider
	models    map[modelKey]ModelInfo
	names     map[string]string
	actions   []ActionDef
	byAction  map[model.ActionID]ActionDef
}

// New validates the catalog and every action default.
func New(providers []Provider, actions []ActionDef) (*Registry, error) {
	r := &Registry{
		providers: providers,
		models:    make(map[modelKey]ModelInfo),
		names:     make(map[string]string),
		actions:   actions,
		byAction:  make(map[model.ActionID]ActionDef),
	}

	for _, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider without id")
		}
		r.names[p.ID] = p.Name
		for _, m := range p.Models {
			if m.Pricing.Rate < 0 {
				return nil, fmt.Errorf("model %s/%s: negative rate", p.ID, m.ID)
			}
			r.models[modelKey{p.ID, m.ID}] = m
		}
	}

	for _, a := range actions {
		if _, dup := r.byAction[a.ID]; dup {
			return nil, fmt.Errorf("action %s declared twice", a.ID)
		}
		m, ok := r.models[modelKey{a.Default.Provider, a.Default.Model}]
		if !ok {
			return nil, fmt.Errorf("action %s: default %s/%s: %w", a.ID, a.Default.Provider, a.Default.Model, ErrUnknownModel)
		}
		if !m.Serves(a.Roles...) {
			return nil, fmt.Errorf("action %s: default %s/%s serves none of %v", a.ID, a.Default.Provider, a.Default.Model, a.Roles)
		}
		r.byAction[a.ID] = a
	}

	return r, nil
}

// Providers returns the catalog.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Lookup returns a model by provider and model id.
func (r *Registry) Lookup(provider, modelID string) (ModelInfo, bool) {
	m, ok := r.models[modelKey{provider, modelID}]
	return m, ok
}

// ModelsForRoles returns every model whose roles intersect the requested
// ones, in catalog order. Unknown roles yield an empty list.
func (r *Registry) ModelsForRoles(roles ...model.Role) []ModelOption {
	out := []ModelOption{}
	for _, p := range r.providers {
		for _, m := range p.Models {
			if !m.Serves(roles...) {
				continue
			}
			out = append(out, ModelOption{
				Provider:     p.ID,
				ProviderName: p.Name,
				Model:        m.ID,
				Name:         m.Name,
				Roles:        m.Roles,
				Pricing:      m.Pricing,
			})
		}
	}
	return out
}

// EstimateCost returns the USD cost of running units through a model.
// It is zero for free-tier models and in simulated mode, and never
// decreases as units grow.
func (r *Registry) EstimateCost(provider, modelID string, units int, mode model.Mode) (float64, error) {
	m, ok := r.Lookup(provider, modelID)
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", provider, modelID, ErrUnknownModel)
	}
	if mode == model.ModeSimulated || units <= 0 {
		return 0, nil
	}

	var cost float64
	switch m.Pricing.Kind {
	case PerThousandUnits:
		cost = m.Pricing.Rate * float64(units) / 1000
	case PerCall:
		cost = m.Pricing.Rate * float64(units)
	default:
		return 0, nil
	}
	return math.Round(cost*1e6) / 1e6, nil
}

// DefaultSelection returns the declared default for an action.
func (r *Registry) DefaultSelection(id model.ActionID) (model.Selection, error) {
	a, ok := r.byAction[id]
	if !ok {
		return model.Selection{}, fmt.Errorf("%s: %w", id, ErrUnknownAction)
	}
	return a.Default, nil
}

// Action returns an action definition.
func (r *Registry) Action(id model.ActionID) (ActionDef, bool) {
	a, ok := r.byAction[id]
	return a, ok
}

// Actions returns every action in declaration order.
func (r *Registry) Actions() []ActionDef {
	return r.actions
}

// NewActionSet returns fresh per-session Action records initialised with
// the declared defaults.
func (r *Registry) NewActionSet() map[model.ActionID]*model.Action {
	set := make(map[model.ActionID]*model.Action, len(r.actions))
	for _, a := range r.actions {
		roles := make([]model.Role, len(a.Roles))
		copy(roles, a.Roles)
		set[a.ID] = &model.Action{
			ID:             a.ID,
			Phase:          a.Phase,
			Roles:          roles,
			Critical:       a.Critical,
			EstimatedUnits: a.EstimatedUnits,
			Selection:      a.Default,
		}
	}
	return set
}

// ValidateSelection checks that sel exists and serves one of the roles.
func (r *Registry) ValidateSelection(sel model.Selection, roles []model.Role) error {
	m, ok := r.Lookup(sel.Provider, sel.Model)
	if !ok {
		return fmt.Errorf("%s/%s: %w", sel.Provider, sel.Model, ErrUnknownModel)
	}
	if !m.Serves(roles...) {
		return fmt.Errorf("%s/%s does not serve %v", sel.Provider, sel.Model, roles)
	}
	return nil
}

// ProviderIDs returns the sorted provider ids.
func (r *Registry) ProviderIDs() []string {
	ids := make([]string, 0, len(r.names))
	for id := range r.names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
