package model

import "time"

// PipelineSession is the unit of work for one production
type PipelineSession struct {
	ID           string               `json:"id"`
	Owner        string               `json:"owner"`
	CurrentPhase Phase                `json:"currentPhase"`
	Trigger      TriggerData          `json:"trigger"`
	Planning     PlanningData         `json:"planning"`
	Intelligence IntelligenceData     `json:"intelligence"`
	Creation     CreationData         `json:"creation"`
	Studio       StudioData           `json:"studio"`
	Delivery     DeliveryData         `json:"delivery"`
	Actions      map[ActionID]*Action `json:"actions"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	UpdatedBy    string               `json:"updatedBy,omitempty"`
}

// TriggerData holds what the user asked for
type TriggerData struct {
	Topic             string             `json:"topic"`
	ContentType       ContentType        `json:"contentType,omitempty"`
	TargetDurationSec int                `json:"targetDurationSec"`
	EmotionalTriggers []EmotionalTrigger `json:"emotionalTriggers"`
	Competitors       []CompetitorRef    `json:"competitors"`
}

// CompetitorRef points at an existing video used as a reference
type CompetitorRef struct {
	URL        string              `json:"url"`
	Metadata   *CompetitorMetadata `json:"metadata,omitempty"`
	Transcript string              `json:"transcript,omitempty"`
}

// CompetitorMetadata is what the video platform reports for a reference
type CompetitorMetadata struct {
	VideoID     string   `json:"videoId"`
	Title       string   `json:"title"`
	Channel     string   `json:"channel"`
	Views       int64    `json:"views"`
	Likes       int64    `json:"likes"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PlanningData holds the research plan and its approval
type PlanningData struct {
	Plan         string     `json:"plan"`
	OriginalPlan string     `json:"originalPlan"`
	Approved     bool       `json:"approved"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
}

// Dirty reports whether the plan was edited after generation.
func (p PlanningData) Dirty() bool {
	return p.Plan != p.OriginalPlan
}

// IntelligenceData holds research findings and analyses
type IntelligenceData struct {
	Facts              []string   `json:"facts"`
	Trivia             []string   `json:"trivia"`
	Citations          []Citation `json:"citations"`
	ChannelAnalysis    string     `json:"channelAnalysis"`
	CompetitorAnalysis string     `json:"competitorAnalysis"`
}

// Citation is a source backing a research fact
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CreationData holds the candidate options and the script
type CreationData struct {
	Options          []CreativeOption `json:"options"`
	SelectedOptionID string           `json:"selectedOptionId,omitempty"`
	Script           string           `json:"script"`
}

// Option returns the option with the given id.
func (c CreationData) Option(id string) (CreativeOption, bool) {
	for _, opt := range c.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return CreativeOption{}, false
}

// Winner returns the selected option, if any.
func (c CreationData) Winner() (CreativeOption, bool) {
	if c.SelectedOptionID == "" {
		return CreativeOption{}, false
	}
	return c.Option(c.SelectedOptionID)
}

// CreativeOption is one title/thumbnail/hook candidate
type CreativeOption struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ThumbnailConcept string `json:"thumbnailConcept"`
	Hook             string `json:"hook"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	ImagePrompt      string `json:"imagePrompt,omitempty"`
}

// StudioData holds scenes and the render job
type StudioData struct {
	Scenes         []Scene    `json:"scenes"`
	Render         *RenderJob `json:"render,omitempty"`
	ManualAssembly bool       `json:"manualAssembly"`
}

// Scene is one timed segment of the video
type Scene struct {
	Index       int     `json:"index"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Narration   string  `json:"narration"`
	VisualQuery string  `json:"visualQuery,omitempty"`
	VisualURL   string  `json:"visualUrl,omitempty"`
	AudioURL    string  `json:"audioUrl,omitempty"`
}

// DeliveryData holds the publication package
type DeliveryData struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Tags            []string   `json:"tags"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty"`
	VideoURL        string     `json:"videoUrl,omitempty"`
	Published       bool       `json:"published"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	PlatformVideoID string     `json:"platformVideoId,omitempty"`
}

// PublishMetadata is the generated title/description/tags package
type PublishMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
