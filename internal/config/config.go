// Package config holds process configuration for the debate engine: server
// and storage settings loaded from the environment, plus the panel/seat
// configuration that shapes one debate's pipeline run.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates every environment-driven setting the worker and server
// processes need. Nested structs group settings by owning component so each
// package (router, circuitbreaker, durability, sse, quota) can be handed
// just its slice.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JobQueue       JobQueueConfig
	LLMRetry       LLMRetryConfig
	ProviderHealth ProviderHealthConfig
	Debate         DebateRuntimeConfig
	SSE            SSEConfig
	Conversation   ConversationConfig
	Monitoring     MonitoringConfig
	Providers      map[string]ProviderConfig
}

// ProviderConfig is one LLM provider's credentials and endpoint, loaded
// from {KEY}_API_KEY / {KEY}_BASE_URL / {KEY}_MODEL environment variables
// (e.g. ANTHROPIC_API_KEY, DEEPSEEK_BASE_URL). A provider with no API key
// set is left out of the registry at startup.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ServerConfig struct {
	Host           string
	Port           string
	Mode           string // gin.DebugMode | gin.ReleaseMode
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	EnableCORS     bool
	CORSOrigins    []string
	RequestLogging bool
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
	ConnTimeout    time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// JobQueueConfig selects the durability.JobQueue realization. An empty URL
// keeps the inline in-process dispatcher; a non-empty one switches to the
// AMQP-backed queue.
type JobQueueConfig struct {
	URL        string
	QueueName  string
	Durable    bool
}

type LLMRetryConfig struct {
	Enabled             bool
	MaxAttempts         int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	CallTimeout         time.Duration
}

type ProviderHealthConfig struct {
	WindowSeconds   int
	ErrorThreshold  float64
	MinCalls        int
	CooldownSeconds int
}

type DebateRuntimeConfig struct {
	MaxSeatFailRatio       float64
	MinRequiredSeats       int
	FailFast               bool
	ResumeTokenTTL         time.Duration
	StaleRunningSeconds    int
	StaleQueuedSeconds     int
	ReaperIntervalSeconds  int
	MaxRunAttempts         int
	HeartbeatInterval      time.Duration
	LeaseDuration          time.Duration
	SeatFanoutMax          int
}

type SSEConfig struct {
	Backend            string // "memory" | "redis"
	ChannelTTLSeconds  int
	IdleTimeoutSeconds int
	MaxQueueSize       int
}

type ConversationConfig struct {
	MaxRounds      int
	MaxTotalTokens int
}

type MonitoringConfig struct {
	LogLevel        string
	MetricsEnabled  bool
	MetricsPath     string
	Namespace       string
}

// Load builds a Config from environment variables, applying the defaults
// named throughout spec §6. It first loads a local .env file if present
// (development convenience only); a missing file is not an error, since
// production deployments set the environment directly.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("PORT", "8080"),
			Mode:           getEnv("GIN_MODE", "release"),
			ReadTimeout:    getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
			EnableCORS:     getBoolEnv("CORS_ENABLED", true),
			CORSOrigins:    getEnvSlice("CORS_ORIGINS", []string{"*"}),
			RequestLogging: getBoolEnv("REQUEST_LOGGING", true),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "debatecore"),
			Password:       getEnv("DB_PASSWORD", "secret"),
			Name:           getEnv("DB_NAME", "debatecore_db"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getIntEnv("DB_MAX_CONNECTIONS", 20),
			ConnTimeout:    getDurationEnv("DB_CONN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
			Timeout:  getDurationEnv("REDIS_TIMEOUT", 5*time.Second),
		},
		JobQueue: JobQueueConfig{
			URL:       getEnv("JOB_QUEUE_URL", ""),
			QueueName: getEnv("JOB_QUEUE_NAME", "debate.runs"),
			Durable:   getBoolEnv("JOB_QUEUE_DURABLE", true),
		},
		LLMRetry: LLMRetryConfig{
			Enabled:      getBoolEnv("LLM_RETRY_ENABLED", true),
			MaxAttempts:  getIntEnv("LLM_RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getDurationEnvFloatSeconds("LLM_RETRY_INITIAL_DELAY_SECONDS", 0.5),
			MaxDelay:     getDurationEnv("LLM_RETRY_MAX_DELAY", 20*time.Second),
			CallTimeout:  getDurationEnv("LLM_CALL_TIMEOUT", 60*time.Second),
		},
		ProviderHealth: ProviderHealthConfig{
			WindowSeconds:   getIntEnv("PROVIDER_HEALTH_WINDOW_SECONDS", 300),
			ErrorThreshold:  getFloatEnv("PROVIDER_HEALTH_ERROR_THRESHOLD", 0.5),
			MinCalls:        getIntEnv("PROVIDER_HEALTH_MIN_CALLS", 10),
			CooldownSeconds: getIntEnv("PROVIDER_HEALTH_COOLDOWN_SECONDS", 60),
		},
		Debate: DebateRuntimeConfig{
			MaxSeatFailRatio:      getFloatEnv("DEBATE_MAX_SEAT_FAIL_RATIO", 0.5),
			MinRequiredSeats:      getIntEnv("DEBATE_MIN_REQUIRED_SEATS", 1),
			FailFast:              getBoolEnv("DEBATE_FAIL_FAST", true),
			ResumeTokenTTL:        getDurationEnv("DEBATE_RESUME_TOKEN_TTL_SECONDS", 120*time.Second),
			StaleRunningSeconds:   getIntEnv("DEBATE_STALE_RUNNING_SECONDS", 900),
			StaleQueuedSeconds:    getIntEnv("DEBATE_STALE_QUEUED_SECONDS", 600),
			ReaperIntervalSeconds: getIntEnv("DEBATE_CLEANUP_LOOP_SECONDS", 60),
			MaxRunAttempts:        getIntEnv("DEBATE_MAX_RUN_ATTEMPTS", 3),
			HeartbeatInterval:     getDurationEnv("DEBATE_HEARTBEAT_INTERVAL_SECONDS", 15*time.Second),
			LeaseDuration:         getDurationEnv("DEBATE_LEASE_DURATION_SECONDS", 60*time.Second),
			SeatFanoutMax:         getIntEnv("DEBATE_SEAT_FANOUT_MAX", 8),
		},
		SSE: SSEConfig{
			Backend:            getEnv("SSE_BACKEND", "memory"),
			ChannelTTLSeconds:  getIntEnv("SSE_CHANNEL_TTL_SECONDS", 900),
			IdleTimeoutSeconds: getIntEnv("SSE_IDLE_TIMEOUT_SECONDS", 300),
			MaxQueueSize:       getIntEnv("SSE_MAX_QUEUE_SIZE", 1024),
		},
		Conversation: ConversationConfig{
			MaxRounds:      getIntEnv("CONVERSATION_MAX_ROUNDS", 4),
			MaxTotalTokens: getIntEnv("CONVERSATION_MAX_TOTAL_TOKENS", 0),
		},
		Monitoring: MonitoringConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
			MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
			Namespace:      getEnv("METRICS_NAMESPACE", "debatecore"),
		},
		Providers: loadProviders(),
	}
}

// providerDefault is one entry in the known-provider table: its env
// prefix, and the base URL / model it falls back to when not overridden.
type providerDefault struct {
	key            string
	envPrefix      string
	defaultBaseURL string
	defaultModel   string
}

// knownProviders lists every LLM provider this build can route to. Most
// are OpenAI-compatible chat-completions endpoints served by the generic
// adapter; anthropic and openai get their own adapters.
var knownProviders = []providerDefault{
	{"anthropic", "ANTHROPIC", "", "claude-3-5-sonnet-20241022"},
	{"openai", "OPENAI", "", "gpt-4o-mini"},
	{"deepseek", "DEEPSEEK", "https://api.deepseek.com/chat/completions", "deepseek-chat"},
	{"groq", "GROQ", "https://api.groq.com/openai/v1/chat/completions", "llama-3.3-70b-versatile"},
	{"together", "TOGETHER", "https://api.together.xyz/v1/chat/completions", "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	{"openrouter", "OPENROUTER", "https://openrouter.ai/api/v1/chat/completions", "openrouter/auto"},
	{"mistral", "MISTRAL", "https://api.mistral.ai/v1/chat/completions", "mistral-large-latest"},
	{"fireworks", "FIREWORKS", "https://api.fireworks.ai/inference/v1/chat/completions", "accounts/fireworks/models/llama-v3p1-70b-instruct"},
	{"cohere", "COHERE", "https://api.cohere.ai/compatibility/v1/chat/completions", "command-r-plus"},
	{"perplexity", "PERPLEXITY", "https://api.perplexity.ai/chat/completions", "sonar"},
	{"xai", "XAI", "https://api.x.ai/v1/chat/completions", "grok-2-latest"},
	{"cerebras", "CEREBRAS", "https://api.cerebras.ai/v1/chat/completions", "llama3.3-70b"},
	{"ollama", "OLLAMA", "http://localhost:11434/v1/chat/completions", "llama3.1"},
}

// loadProviders reads every known provider's credentials from the
// environment. Providers with no API key configured are still present in
// the map (so router candidates can be validated against the panel) but
// carry an empty key; the registry wiring at startup skips those.
func loadProviders() map[string]ProviderConfig {
	providers := make(map[string]ProviderConfig, len(knownProviders))
	for _, p := range knownProviders {
		providers[p.key] = ProviderConfig{
			APIKey:  getEnv(p.envPrefix+"_API_KEY", ""),
			BaseURL: getEnv(p.envPrefix+"_BASE_URL", p.defaultBaseURL),
			Model:   getEnv(p.envPrefix+"_MODEL", p.defaultModel),
		}
	}
	return providers
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getDurationEnvFloatSeconds reads a fractional-second env var (e.g. "0.5")
// the way LLM_RETRY_INITIAL_DELAY_SECONDS is documented in spec §6.
func getDurationEnvFloatSeconds(key string, defaultSeconds float64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return time.Duration(defaultSeconds * float64(time.Second))
}

func getEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
