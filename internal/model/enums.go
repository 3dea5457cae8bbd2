package model

// Phase identifies one of the six ordered production stages
type Phase string

const (
	PhaseTrigger      Phase = "trigger"
	PhasePlanning     Phase = "planning"
	PhaseIntelligence Phase = "intelligence"
	PhaseCreation     Phase = "creation"
	PhaseStudio       Phase = "studio"
	PhaseDelivery     Phase = "delivery"
)

// Phases lists every phase in production order
var Phases = []Phase{
	PhaseTrigger, PhasePlanning, PhaseIntelligence,
	PhaseCreation, PhaseStudio, PhaseDelivery,
}

// Index returns the position of the phase in production order, or -1.
func (p Phase) Index() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Next returns the following phase; ok is false for the last phase.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i == len(Phases)-1 {
		return p, false
	}
	return Phases[i+1], true
}

// Content types
type ContentType string

const (
	ContentPrayer     ContentType = "prayer"
	ContentDevotional ContentType = "devotional"
	ContentReflection ContentType = "reflection"
	ContentVerse      ContentType = "verse"
	ContentTestimony  ContentType = "testimony"
)

var ValidContentTypes = []ContentType{
	ContentPrayer, ContentDevotional, ContentReflection, ContentVerse, ContentTestimony,
}

// Emotional triggers
type EmotionalTrigger string

const (
	TriggerHope      EmotionalTrigger = "hope"
	TriggerFaith     EmotionalTrigger = "faith"
	TriggerGratitude EmotionalTrigger = "gratitude"
	TriggerPeace     EmotionalTrigger = "peace"
	TriggerComfort   EmotionalTrigger = "comfort"
	TriggerCuriosity EmotionalTrigger = "curiosity"
	TriggerUrgency   EmotionalTrigger = "urgency"
)

// Role is a capability a model can provide
type Role string

const (
	RoleTextGeneration  Role = "text-generation"
	RoleImageGeneration Role = "image-generation"
	RoleSpeechSynthesis Role = "speech-synthesis"
	RoleStockMedia      Role = "stock-media"
	RoleVideoRender     Role = "video-render"
	RoleVideoAnalytics  Role = "video-analytics"
	RoleVideoPublishing Role = "video-publishing"
)

// Mode selects the execution strategy
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSimulated || m == ModeLive
}

// Render job status
type RenderStatus string

const (
	RenderSubmitted  RenderStatus = "submitted"
	RenderProcessing RenderStatus = "processing"
	RenderDone       RenderStatus = "done"
	RenderError      RenderStatus = "error"
	RenderFailed     RenderStatus = "failed"
	RenderTimeout    RenderStatus = "timeout"
)

// Terminal reports whether the status can no longer change.
func (s RenderStatus) Terminal() bool {
	switch s {
	case RenderDone, RenderError, RenderFailed, RenderTimeout:
		return true
	}
	return false
}
