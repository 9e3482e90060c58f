package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Vapi      VapiConfig
	Webhook   WebhookConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Interview InterviewConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port          string
	PublicBaseURL string // used to build provider callback URLs
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

type VapiConfig struct {
	APIKey              string
	BaseURL             string
	VoiceProvider       string
	TranscriberProvider string
	TranscriberModel    string
}

type WebhookConfig struct {
	Secret         string
	TokenTTL       time.Duration
	ProcessTimeout time.Duration
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type InterviewConfig struct {
	LLMTimeout   time.Duration
	VoiceTimeout time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.public_base_url", "http://localhost:8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("vapi.api_key", "")
	viper.SetDefault("vapi.base_url", "https://api.vapi.ai")
	viper.SetDefault("vapi.voice_provider", "11labs")
	viper.SetDefault("vapi.transcriber_provider", "deepgram")
	viper.SetDefault("vapi.transcriber_model", "nova-2")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.token_ttl", "24h")
	viper.SetDefault("webhook.process_timeout", "8s")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", "0")
	viper.SetDefault("redis.ttl", "30m")
	viper.SetDefault("interview.llm_timeout", "3s")
	viper.SetDefault("interview.voice_timeout", "10s")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.public_base_url", "PUBLIC_BASE_URL")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("vapi.api_key", "VAPI_API_KEY")
	viper.BindEnv("vapi.base_url", "VAPI_BASE_URL")
	viper.BindEnv("vapi.voice_provider", "VAPI_VOICE_PROVIDER")
	viper.BindEnv("vapi.transcriber_provider", "VAPI_TRANSCRIBER_PROVIDER")
	viper.BindEnv("vapi.transcriber_model", "VAPI_TRANSCRIBER_MODEL")
	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("webhook.token_ttl", "WEBHOOK_TOKEN_TTL")
	viper.BindEnv("webhook.process_timeout", "WEBHOOK_PROCESS_TIMEOUT")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.ttl", "REDIS_TTL")
	viper.BindEnv("interview.llm_timeout", "INTERVIEW_LLM_TIMEOUT")
	viper.BindEnv("interview.voice_timeout", "INTERVIEW_VOICE_TIMEOUT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("server.port"),
			PublicBaseURL: viper.GetString("server.public_base_url"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			GeminiModel:  viper.GetString("gemini.model"),
		},
		Vapi: VapiConfig{
			APIKey:              viper.GetString("vapi.api_key"),
			BaseURL:             viper.GetString("vapi.base_url"),
			VoiceProvider:       viper.GetString("vapi.voice_provider"),
			TranscriberProvider: viper.GetString("vapi.transcriber_provider"),
			TranscriberModel:    viper.GetString("vapi.transcriber_model"),
		},
		Webhook: WebhookConfig{
			Secret:         viper.GetString("webhook.secret"),
			TokenTTL:       viper.GetDuration("webhook.token_ttl"),
			ProcessTimeout: viper.GetDuration("webhook.process_timeout"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			TTL:      viper.GetDuration("redis.ttl"),
		},
		Interview: InterviewConfig{
			LLMTimeout:   viper.GetDuration("interview.llm_timeout"),
			VoiceTimeout: viper.GetDuration("interview.voice_timeout"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}

	// The webhook token falls back to the API secret so a single secret is enough locally.
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = cfg.JWT.Secret
	}
	cfg.Interview.LLMTimeout = llmTimeoutWithin(cfg.Interview.LLMTimeout, cfg.Webhook.ProcessTimeout)
	return cfg
}

// llmTimeoutWithin caps a generation timeout at half the webhook budget. A
// concluding turn may need a failed question generation followed by the
// closing generation, and both have to finish before the webhook answers.
func llmTimeoutWithin(llm, process time.Duration) time.Duration {
	if process <= 0 {
		process = defaultProcessTimeout
	}
	if llm <= 0 {
		llm = defaultLLMTimeout
	}
	if limit := process / 2; llm > limit {
		slog.Warn("LLM timeout exceeds half the webhook budget, capping", "llm_timeout", llm, "process_timeout", process)
		return limit
	}
	return llm
}
