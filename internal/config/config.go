package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Seoul"
	configPathEnv   = "NEWSDESK_CONFIG"
)

// Guard failure policies applied when the ledger or config store cannot be read.
const (
	FailOpen   = "open"
	FailClosed = "closed"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Newsroom      NewsroomConfig     `yaml:"newsroom"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Guard         GuardSettings      `yaml:"guard"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Providers     ProviderConfig     `yaml:"providers"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// DatabaseConfig describes the work queue and ledger database.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_DSN"`
}

// NewsroomConfig holds the regions served and the timezone quota windows are computed in.
type NewsroomConfig struct {
	Regions  []string       `yaml:"regions" env:"NEWSDESK_REGIONS"`
	Timezone string         `yaml:"timezone" env:"NEWSDESK_TIMEZONE"`
	location *time.Location `yaml:"-"`
}

// Location resolves the newsroom timezone string to a time.Location.
func (n NewsroomConfig) Location() *time.Location {
	if n.location != nil {
		return n.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SchedulerConfig defines how often batches run when the scheduler is enabled.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	Interval time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL"`
}

// GuardSettings configures where GuardConfig comes from and how the guard reacts to store errors.
type GuardSettings struct {
	Source        string        `yaml:"source" env:"GUARD_SOURCE"`
	File          string        `yaml:"file" env:"GUARD_FILE"`
	CacheTTL      time.Duration `yaml:"cacheTtl" env:"GUARD_CACHE_TTL"`
	FailurePolicy string        `yaml:"failurePolicy" env:"GUARD_FAILURE_POLICY"`
}

// FailOpen reports whether store read errors should admit the request.
func (g GuardSettings) FailOpen() bool {
	return !strings.EqualFold(strings.TrimSpace(g.FailurePolicy), FailClosed)
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	BatchSize   int           `yaml:"batchSize" env:"PIPELINE_BATCH_SIZE"`
	CallTimeout time.Duration `yaml:"callTimeout" env:"PIPELINE_CALL_TIMEOUT"`
	ItemDelay   time.Duration `yaml:"itemDelay" env:"PIPELINE_ITEM_DELAY"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig describes the provider-call retry policy. MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts" env:"RETRY_MAX_ATTEMPTS"`
	InitialBackoff time.Duration `yaml:"initialBackoff" env:"RETRY_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"maxBackoff" env:"RETRY_MAX_BACKOFF"`
}

// ProviderConfig selects and configures the text-generation provider.
type ProviderConfig struct {
	Active string `yaml:"active" env:"PROVIDER"`
	// SystemPrompt is sent by every provider.
	SystemPrompt string        `yaml:"systemPrompt" env:"PROVIDER_SYSTEM_PROMPT"`
	ChatGPT      ChatGPTConfig `yaml:"chatgpt"`
	Vertex       VertexConfig  `yaml:"vertex"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible chat completions API.
type ChatGPTConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"CHATGPT_ENDPOINT"`
	Model       string  `yaml:"model" env:"CHATGPT_MODEL"`
	APIKey      string  `yaml:"apiKey" env:"CHATGPT_API_KEY"`
	Temperature float64 `yaml:"temperature"`
}

// VertexConfig defines the Gemini model on Vertex AI.
type VertexConfig struct {
	ProjectID string `yaml:"projectId" env:"VERTEX_PROJECT_ID"`
	Location  string `yaml:"location" env:"VERTEX_LOCATION"`
	Model     string `yaml:"model" env:"VERTEX_MODEL"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chatId" env:"TELEGRAM_CHAT_ID"`
}

// HTTPConfig configures the batch trigger API.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// TelemetryConfig configures opt-in OTLP tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint" env:"NEWSDESK_OTEL_ENDPOINT"`
	ServiceName  string `yaml:"serviceName"`
}

// Load reads .env, YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if parsed, err := Parse(raw, cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = parsed
		}
	}

	if err := env.Parse(&cfg); err != nil {
		log.Printf("config: env overrides: %v", err)
	}
	cfg.normalize()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes YAML on top of base; keys absent from raw keep their base values.
func Parse(raw []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, err
	}
	cfg.normalize()
	cfg.bindTimezone()
	return cfg, nil
}

func (c *Config) normalize() {
	defaults := defaultConfig()

	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaults.Pipeline.BatchSize
	}
	if c.Pipeline.CallTimeout <= 0 {
		c.Pipeline.CallTimeout = defaults.Pipeline.CallTimeout
	}
	if c.Pipeline.ItemDelay < 0 {
		c.Pipeline.ItemDelay = 0
	}
	if c.Pipeline.Retry.MaxAttempts <= 0 {
		c.Pipeline.Retry.MaxAttempts = 1
	}
	if c.Guard.CacheTTL <= 0 {
		c.Guard.CacheTTL = defaults.Guard.CacheTTL
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = defaults.Scheduler.Interval
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Database.Driver
	}
}

func (c *Config) bindTimezone() {
	tz := c.Newsroom.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Newsroom.location = loc
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:newsdesk.db?_pragma=busy_timeout(5000)"},
		Newsroom: NewsroomConfig{Timezone: defaultTimezone},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 15 * time.Minute,
		},
		Guard: GuardSettings{
			Source:        "database",
			CacheTTL:      5 * time.Minute,
			FailurePolicy: FailOpen,
		},
		Pipeline: PipelineConfig{
			BatchSize:   20,
			CallTimeout: 60 * time.Second,
			ItemDelay:   2 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:    1,
				InitialBackoff: 2 * time.Second,
				MaxBackoff:     30 * time.Second,
			},
		},
		Providers: ProviderConfig{
			Active:       "chatgpt",
			SystemPrompt: "You are a careful regional news desk editor. You never add facts that are not in the source.",
			ChatGPT: ChatGPTConfig{
				Endpoint:    "https://api.openai.com/v1/chat/completions",
				Model:       "gpt-4o-mini",
				Temperature: 0.2,
			},
			Vertex: VertexConfig{Location: "asia-northeast3", Model: "gemini-1.5-pro"},
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Telemetry: TelemetryConfig{ServiceName: "newsdesk"},
	}
}
