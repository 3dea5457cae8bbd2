package model

// ActionID names a capability-requiring unit of work
type ActionID string

const (
	ActionCompetitorMetadata ActionID = "competitor_metadata"
	ActionDraftPlan          ActionID = "draft_plan"
	ActionResearch           ActionID = "research"
	ActionChannelAnalysis    ActionID = "channel_analysis"
	ActionCompetitorAnalysis ActionID = "competitor_analysis"
	ActionGenerateOptions    ActionID = "generate_options"
	ActionThumbnailImage     ActionID = "thumbnail_image"
	ActionGenerateScript     ActionID = "generate_script"
	ActionSceneBreakdown     ActionID = "scene_breakdown"
	ActionSceneVisuals       ActionID = "scene_visuals"
	ActionNarration          ActionID = "narration"
	ActionRenderVideo        ActionID = "render_video"
	ActionDeliveryMetadata   ActionID = "delivery_metadata"
	ActionPublish            ActionID = "publish"
)

// Selection is a (provider, model) pair
type Selection struct {
	Provider string `json:"provider" validate:"required"`
	Model    string `json:"model" validate:"required"`
}

// IsZero reports whether no selection was made.
func (s Selection) IsZero() bool {
	return s.Provider == "" && s.Model == ""
}

// Action is a declared unit of work within a phase. The Selection carries
// the per-session override; registry defaults are never mutated.
type Action struct {
	ID             ActionID  `json:"id"`
	Phase          Phase     `json:"phase"`
	Roles          []Role    `json:"roles"`
	Critical       bool      `json:"critical"`
	EstimatedUnits int       `json:"estimatedUnits"`
	Selection      Selection `json:"selection"`
}

// HasRole reports whether the action requires role r.
func (a Action) HasRole(r Role) bool {
	for _, role := range a.Roles {
		if role == r {
			return true
		}
	}
	return false
}
