package registry

import "github.com/luzdodia/api/internal/model"

// Provider ids
const (
	ProviderGroq         = "groq"
	ProviderOpenAI       = "openai"
	ProviderGemini       = "gemini"
	ProviderOllama       = "ollama"
	ProviderPollinations = "pollinations"
	ProviderElevenLabs   = "elevenlabs"
	ProviderPexels       = "pexels"
	ProviderShotstack    = "shotstack"
	ProviderYouTube      = "youtube"
)

var (
	text    = []model.Role{model.RoleTextGeneration}
	image   = []model.Role{model.RoleImageGeneration}
	speech  = []model.Role{model.RoleSpeechSynthesis}
	stock   = []model.Role{model.RoleStockMedia}
	render  = []model.Role{model.RoleVideoRender}
	youtube = []model.Role{model.RoleVideoAnalytics, model.RoleVideoPublishing}
)

// DefaultProviders is the built-in catalog. Token rates blend input and
// output prices.
func DefaultProviders() []Provider {
	return []Provider{
		{ID: ProviderGroq, Name: "Groq", Models: []ModelInfo{
			{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", Roles: text, Pricing: Pricing{PerThousandUnits, 0.00069}},
			{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B Instant", Roles: text, Pricing: Pricing{PerThousandUnits, 0.00006}},
		}},
		{ID: ProviderOpenAI, Name: "OpenAI", Models: []ModelInfo{
			{ID: "gpt-4o-mini", Name: "GPT-4o mini", Roles: text, Pricing: Pricing{PerThousandUnits, 0.000375}},
			{ID: "gpt-4o", Name: "GPT-4o", Roles: text, Pricing: Pricing{PerThousandUnits, 0.00625}},
			{ID: "dall-e-3", Name: "DALL·E 3", Roles: image, Pricing: Pricing{PerCall, 0.04}},
			{ID: "tts-1", Name: "TTS 1", Roles: speech, Pricing: Pricing{PerThousandUnits, 0.015}},
		}},
		{ID: ProviderGemini, Name: "Google Gemini", Models: []ModelInfo{
			{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Roles: text, Pricing: Pricing{PerThousandUnits, 0.00025}},
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Roles: text, Pricing: Pricing{PerThousandUnits, 0.003125}},
		}},
		{ID: ProviderOllama, Name: "Ollama (local)", Models: []ModelInfo{
			{ID: "llama3.2", Name: "Llama 3.2", Roles: text, Pricing: Pricing{Kind: FreeTier}},
		}},
		{ID: ProviderPollinations, Name: "Pollinations", Models: []ModelInfo{
			{ID: "flux", Name: "Flux", Roles: image, Pricing: Pricing{Kind: FreeTier}},
			{ID: "turbo", Name: "Turbo", Roles: image, Pricing: Pricing{Kind: FreeTier}},
		}},
		{ID: ProviderElevenLabs, Name: "ElevenLabs", Models: []ModelInfo{
			{ID: "eleven_multilingual_v2", Name: "Multilingual v2", Roles: speech, Pricing: Pricing{PerThousandUnits, 0.30}},
			{ID: "eleven_flash_v2_5", Name: "Flash v2.5", Roles: speech, Pricing: Pricing{PerThousandUnits, 0.15}},
		}},
		{ID: ProviderPexels, Name: "Pexels", Models: []ModelInfo{
			{ID: "videos", Name: "Video search", Roles: stock, Pricing: Pricing{Kind: FreeTier}},
		}},
		{ID: ProviderShotstack, Name: "Shotstack", Models: []ModelInfo{
			{ID: "stage", Name: "Sandbox", Roles: render, Pricing: Pricing{Kind: FreeTier}},
			{ID: "v1", Name: "Production", Roles: render, Pricing: Pricing{PerCall, 0.40}},
		}},
		{ID: ProviderYouTube, Name: "YouTube", Models: []ModelInfo{
			{ID: "data-v3", Name: "Data API v3", Roles: youtube, Pricing: Pricing{Kind: FreeTier}},
		}},
	}
}

func sel(provider, modelID string) model.Selection {
	return model.Selection{Provider: provider, Model: modelID}
}

// DefaultActions declares every action of the pipeline. EstimatedUnits is
// tokens for text, characters for speech, and calls otherwise.
func DefaultActions() []ActionDef {
	return []ActionDef{
		{ID: model.ActionCompetitorMetadata, Phase: model.PhaseTrigger, Roles: []model.Role{model.RoleVideoAnalytics},
			EstimatedUnits: 1, Default: sel(ProviderYouTube, "data-v3")},
		{ID: model.ActionDraftPlan, Phase: model.PhasePlanning, Roles: text, Critical: true,
			EstimatedUnits: 1500, Default: sel(ProviderGroq, "llama-3.3-70b-versatile")},
		{ID: model.ActionResearch, Phase: model.PhaseIntelligence, Roles: text, Critical: true,
			EstimatedUnits: 2500, Default: sel(ProviderGroq, "llama-3.3-70b-versatile")},
		{ID: model.ActionChannelAnalysis, Phase: model.PhaseIntelligence, Roles: []model.Role{model.RoleVideoAnalytics},
			EstimatedUnits: 1, Default: sel(ProviderYouTube, "data-v3")},
		{ID: model.ActionCompetitorAnalysis, Phase: model.PhaseIntelligence, Roles: text,
			EstimatedUnits: 2000, Default: sel(ProviderGroq, "llama-3.3-70b-versatile")},
		{ID: model.ActionGenerateOptions, Phase: model.PhaseCreation, Roles: text, Critical: true,
			EstimatedUnits: 1200, Default: sel(ProviderGroq, "llama-3.3-70b-versatile")},
		{ID: model.ActionThumbnailImage, Phase: model.PhaseCreation, Roles: image,
			EstimatedUnits: 1, Default: sel(ProviderPollinations, "flux")},
		{ID: model.ActionGenerateScript, Phase: model.PhaseCreation, Roles: text, Critical: true,
			EstimatedUnits: 1800, Default: sel(ProviderGroq, "llama-3.3-70b-versatile")},
		{ID: model.ActionSceneBreakdown, Phase: model.PhaseStudio, Roles: text,
			EstimatedUnits: 1500, Default: sel(ProviderGroq, "llama-3.1-8b-instant")},
		{ID: model.ActionSceneVisuals, Phase: model.PhaseStudio, Roles: stock,
			EstimatedUnits: 1, Default: sel(ProviderPexels, "videos")},
		{ID: model.ActionNarration, Phase: model.PhaseStudio, Roles: speech,
			EstimatedUnits: 900, Default: sel(ProviderOpenAI, "tts-1")},
		{ID: model.ActionRenderVideo, Phase: model.PhaseStudio, Roles: render, Critical: true,
			EstimatedUnits: 1, Default: sel(ProviderShotstack, "stage")},
		{ID: model.ActionDeliveryMetadata, Phase: model.PhaseDelivery, Roles: text,
			EstimatedUnits: 800, Default: sel(ProviderGroq, "llama-3.1-8b-instant")},
		{ID: model.ActionPublish, Phase: model.PhaseDelivery, Roles: []model.Role{model.RoleVideoPublishing}, Critical: true,
			EstimatedUnits: 1, Default: sel(ProviderYouTube, "data-v3")},
	}
}

// Default builds the registry from the built-in catalog.
func Default() *Registry {
	r, err := New(DefaultProviders(), DefaultActions())
	if err != nil {
		panic(err)
	}
	return r
}
