package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Redis        RedisConfig
	Storage      StorageConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Zitadel      ZitadelConfig
	Gateway      GatewayConfig
	Pipeline     PipelineConfig
	Groq         GroqConfig
	OpenAI       OpenAIConfig
	Gemini       GeminiConfig
	Ollama       OllamaConfig
	Pollinations PollinationsConfig
	ElevenLabs   ElevenLabsConfig
	Pexels       PexelsConfig
	Shotstack    ShotstackConfig
	YouTube      YouTubeConfig
	R2           R2Config
}

type ServerConfig struct {
	Port      string
	Env       string
	ApiDomain string
}

type LogConfig struct {
	Level  string
	Format string // text or json
	File   string // optional JSON log file, fanned out next to stderr
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Backend    string // redis or memory
	SessionTTL int    // hours
	LockTTL    int    // seconds
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	GeneratePerMin int
	RenderPerHour  int
	PublishPerHour int
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type PipelineConfig struct {
	Mode                 string // simulated or live
	Language             string
	CallTimeout          int // seconds
	SimulatedDelayMs     int
	RenderPollInterval   int // seconds
	RenderMaxAttempts    int
	SimulatedRenderPolls int
	ThumbnailConcurrency int
	ProviderRatePerSec   float64
	CatalogFile          string
}

func (p PipelineConfig) CallTimeoutDuration() time.Duration {
	return time.Duration(p.CallTimeout) * time.Second
}

func (p PipelineConfig) SimulatedDelay() time.Duration {
	return time.Duration(p.SimulatedDelayMs) * time.Millisecond
}

func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.RenderPollInterval) * time.Second
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Voice   string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
}

type OllamaConfig struct {
	ServerURL string
}

type PollinationsConfig struct {
	BaseURL string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
}

type PexelsConfig struct {
	APIKey  string
	BaseURL string
}

type ShotstackConfig struct {
	APIKey  string
	BaseURL string
}

type YouTubeConfig struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	ChannelID    string
	CategoryID   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Local development keeps keys in .env; a missing file is fine.
	if !strings.EqualFold(os.Getenv("SERVER_ENV"), "production") {
		_ = godotenv.Load()
	}

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("GEMINI_API_KEY")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("PEXELS_API_KEY")
	readSecret("SHOTSTACK_API_KEY")
	readSecret("YOUTUBE_API_KEY")
	readSecret("YOUTUBE_CLIENT_SECRET")
	readSecret("YOUTUBE_REFRESH_TOKEN")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")
	_ = viper.BindEnv("log.format", "LOG_FORMAT")
	_ = viper.BindEnv("log.file", "LOG_FILE")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = viper.BindEnv("storage.session_ttl", "SESSION_TTL_HOURS")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("pipeline.mode", "PIPELINE_MODE")
	_ = viper.BindEnv("pipeline.language", "PIPELINE_LANGUAGE")
	_ = viper.BindEnv("pipeline.call_timeout", "PIPELINE_CALL_TIMEOUT")
	_ = viper.BindEnv("pipeline.catalog_file", "PIPELINE_CATALOG_FILE")
	_ = viper.BindEnv("pipeline.render_poll_interval", "RENDER_POLL_INTERVAL")
	_ = viper.BindEnv("pipeline.render_max_attempts", "RENDER_MAX_ATTEMPTS")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.voice", "OPENAI_VOICE")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("ollama.server_url", "OLLAMA_HOST")
	_ = viper.BindEnv("pollinations.base_url", "POLLINATIONS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	_ = viper.BindEnv("pexels.api_key", "PEXELS_API_KEY")
	_ = viper.BindEnv("pexels.base_url", "PEXELS_BASE_URL")
	_ = viper.BindEnv("shotstack.api_key", "SHOTSTACK_API_KEY")
	_ = viper.BindEnv("shotstack.base_url", "SHOTSTACK_BASE_URL")
	_ = viper.BindEnv("youtube.api_key", "YOUTUBE_API_KEY")
	_ = viper.BindEnv("youtube.client_id", "YOUTUBE_CLIENT_ID")
	_ = viper.BindEnv("youtube.client_secret", "YOUTUBE_CLIENT_SECRET")
	_ = viper.BindEnv("youtube.refresh_token", "YOUTUBE_REFRESH_TOKEN")
	_ = viper.BindEnv("youtube.channel_id", "YOUTUBE_CHANNEL_ID")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.backend", "redis")
	viper.SetDefault("storage.session_ttl", 24*30)
	viper.SetDefault("storage.lock_ttl", 30)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.generate_per_min", 30)
	viper.SetDefault("ratelimit.render_per_hour", 10)
	viper.SetDefault("ratelimit.publish_per_hour", 5)
	viper.SetDefault("gateway.enabled", false)

	// Pipeline defaults
	viper.SetDefault("pipeline.mode", "simulated")
	viper.SetDefault("pipeline.language", "pt-BR")
	viper.SetDefault("pipeline.call_timeout", 60)
	viper.SetDefault("pipeline.simulated_delay_ms", 150)
	viper.SetDefault("pipeline.render_poll_interval", 5)
	viper.SetDefault("pipeline.render_max_attempts", 60)
	viper.SetDefault("pipeline.simulated_render_polls", 2)
	viper.SetDefault("pipeline.thumbnail_concurrency", 3)
	viper.SetDefault("pipeline.provider_rate_per_sec", 2.0)

	// Provider defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.voice", "nova")
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("ollama.server_url", "http://localhost:11434")
	viper.SetDefault("pollinations.base_url", "https://image.pollinations.ai")
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io/v1")
	viper.SetDefault("elevenlabs.voice_id", "21m00Tcm4TlvDq8ikWAM")
	viper.SetDefault("pexels.base_url", "https://api.pexels.com")
	viper.SetDefault("shotstack.base_url", "https://api.shotstack.io/edit")
	viper.SetDefault("youtube.category_id", "22")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			File:   viper.GetString("log.file"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Backend:    viper.GetString("storage.backend"),
			SessionTTL: viper.GetInt("storage.session_ttl"),
			LockTTL:    viper.GetInt("storage.lock_ttl"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerMin: viper.GetInt("ratelimit.generate_per_min"),
			RenderPerHour:  viper.GetInt("ratelimit.render_per_hour"),
			PublishPerHour: viper.GetInt("ratelimit.publish_per_hour"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		Pipeline: PipelineConfig{
			Mode:                 viper.GetString("pipeline.mode"),
			Language:             viper.GetString("pipeline.language"),
			CallTimeout:          viper.GetInt("pipeline.call_timeout"),
			SimulatedDelayMs:     viper.GetInt("pipeline.simulated_delay_ms"),
			RenderPollInterval:   viper.GetInt("pipeline.render_poll_interval"),
			RenderMaxAttempts:    viper.GetInt("pipeline.render_max_attempts"),
			SimulatedRenderPolls: viper.GetInt("pipeline.simulated_render_polls"),
			ThumbnailConcurrency: viper.GetInt("pipeline.thumbnail_concurrency"),
			ProviderRatePerSec:   viper.GetFloat64("pipeline.provider_rate_per_sec"),
			CatalogFile:          viper.GetString("pipeline.catalog_file"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
			Voice:   viper.GetString("openai.voice"),
		},
		Gemini: GeminiConfig{
			APIKey:  viper.GetString("gemini.api_key"),
			BaseURL: viper.GetString("gemini.base_url"),
		},
		Ollama: OllamaConfig{
			ServerURL: viper.GetString("ollama.server_url"),
		},
		Pollinations: PollinationsConfig{
			BaseURL: viper.GetString("pollinations.base_url"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  viper.GetString("elevenlabs.api_key"),
			BaseURL: viper.GetString("elevenlabs.base_url"),
			VoiceID: viper.GetString("elevenlabs.voice_id"),
		},
		Pexels: PexelsConfig{
			APIKey:  viper.GetString("pexels.api_key"),
			BaseURL: viper.GetString("pexels.base_url"),
		},
		Shotstack: ShotstackConfig{
			APIKey:  viper.GetString("shotstack.api_key"),
			BaseURL: viper.GetString("shotstack.base_url"),
		},
		YouTube: YouTubeConfig{
			APIKey:       viper.GetString("youtube.api_key"),
			ClientID:     viper.GetString("youtube.client_id"),
			ClientSecret: viper.GetString("youtube.client_secret"),
			RefreshToken: viper.GetString("youtube.refresh_token"),
			ChannelID:    viper.GetString("youtube.channel_id"),
			CategoryID:   viper.GetString("youtube.category_id"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}
