package model

// TriggerRequest creates a session or replaces its trigger data
type TriggerRequest struct {
	Topic             string             `json:"topic" validate:"max=300"`
	ContentType       ContentType        `json:"contentType" validate:"omitempty,oneof=prayer devotional reflection verse testimony"`
	TargetDurationSec int                `json:"targetDurationSec" validate:"omitempty,min=15,max=180"`
	EmotionalTriggers []EmotionalTrigger `json:"emotionalTriggers" validate:"omitempty,max=5,dive,oneof=hope faith gratitude peace comfort curiosity urgency"`
	Competitors       []CompetitorInput  `json:"competitors" validate:"omitempty,max=5,dive"`
}

// CompetitorInput is a competitor reference supplied by the user
type CompetitorInput struct {
	URL        string `json:"url" validate:"omitempty,url"`
	Transcript string `json:"transcript" validate:"max=20000"`
}

// GoBackRequest moves a session to an earlier phase
type GoBackRequest struct {
	Phase Phase `json:"phase" validate:"required,oneof=trigger planning intelligence creation studio"`
}

// RegenerateRequest replaces one field of one phase
type RegenerateRequest struct {
	Phase Phase  `json:"phase" validate:"required,oneof=trigger planning intelligence creation studio delivery"`
	Field string `json:"field" validate:"required,max=64"`
}

// TextRequest carries a user edit of a generated text
type TextRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

// SelectOptionRequest picks the winner option
type SelectOptionRequest struct {
	OptionID string `json:"optionId" validate:"required"`
}

// PublishRequest publishes the rendered video
type PublishRequest struct {
	Privacy string `json:"privacy" validate:"omitempty,oneof=public unlisted private"`
}

// ModeRequest switches the execution mode
type ModeRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=simulated live"`
}

// ModeResponse reports the execution mode
type ModeResponse struct {
	Mode  Mode `json:"mode"`
	Ready bool `json:"ready"`
}

// ActionCost lists an action with its selection and estimated cost
type ActionCost struct {
	Action        *Action `json:"action"`
	EstimatedCost float64 `json:"estimatedCost"`
	Mode          Mode    `json:"mode"`
}

// ActionCostResponse lists every action of a session
type ActionCostResponse struct {
	SessionID string       `json:"sessionId"`
	Actions   []ActionCost `json:"actions"`
	Total     float64      `json:"total"`
}

// CostEstimateResponse is a single catalog estimate
type CostEstimateResponse struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Units    int     `json:"units"`
	Mode     Mode    `json:"mode"`
	Cost     float64 `json:"cost"`
}
