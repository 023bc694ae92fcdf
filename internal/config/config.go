// Package config provides configuration loading for stewardd.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then STEWARD_-prefixed environment variables. See Load.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete stewardd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Knowledge   KnowledgeConfig   `koanf:"knowledge"`
	Recorder    RecorderConfig    `koanf:"recorder"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Autonomy    AutonomyConfig    `koanf:"autonomy"`
	Learning    LearningConfig    `koanf:"learning"`
	LLM         LLMConfig         `koanf:"llm"`
	Portfolio   PortfolioConfig   `koanf:"portfolio"`
	Goldens     GoldensConfig     `koanf:"goldens"`
	Secrets     SecretsConfig     `koanf:"secrets"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds zap logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider  string        `koanf:"provider"` // tei, openai, fastembed
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	APIKeyEnv string        `koanf:"api_key_env"`
	Dimension int           `koanf:"dimension"`
	Timeout   time.Duration `koanf:"timeout"`
}

// VectorStoreConfig holds vector index configuration.
type VectorStoreConfig struct {
	Provider string       `koanf:"provider"` // embedded or qdrant
	Path     string       `koanf:"path"`     // embedded persistence dir
	Compress bool         `koanf:"compress"`
	Qdrant   QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds the qdrant backend connection settings.
type QdrantConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	APIKeyEnv string `koanf:"api_key_env"`
	UseTLS    bool   `koanf:"use_tls"`
}

// KnowledgeConfig holds the relational knowledge store configuration.
type KnowledgeConfig struct {
	Path          string `koanf:"path"` // sqlite file
	RetentionDays int    `koanf:"retention_days"`
}

// RecorderConfig holds the decision recorder queue configuration.
type RecorderConfig struct {
	Embedded       bool          `koanf:"embedded"` // run an in-process NATS server
	URL            string        `koanf:"url"`
	Stream         string        `koanf:"stream"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	Buffer         int           `koanf:"buffer"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// SchedulerConfig holds heartbeat scheduling configuration.
type SchedulerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	TimeBucket    time.Duration `koanf:"time_bucket"`
	Secret        string        `koanf:"secret"` // X-Scheduler-Secret header value
	OutcomeGrace  time.Duration `koanf:"outcome_grace"`
	OutcomeMaxAge time.Duration `koanf:"outcome_max_age"`
}

// AutonomyConfig holds autonomy defaults for new users.
type AutonomyConfig struct {
	DefaultPreset string `koanf:"default_preset"`
}

// LearningConfig holds learning pipeline tuning.
type LearningConfig struct {
	DedupThreshold      float64 `koanf:"dedup_threshold"`
	RuleStartConfidence float64 `koanf:"rule_start_confidence"`
	ReinforceBump       float64 `koanf:"reinforce_bump"`
	DecayDays           int     `koanf:"decay_days"`
	DecayAmount         float64 `koanf:"decay_amount"`
	SearchThreshold     float64 `koanf:"search_threshold"`
	SearchCount         int     `koanf:"search_count"`
}

// LLMConfig holds the chat model client configuration.
type LLMConfig struct {
	Provider          string        `koanf:"provider"` // openai or anthropic
	BaseURL           string        `koanf:"base_url"`
	Model             string        `koanf:"model"`
	APIKeyEnv         string        `koanf:"api_key_env"`
	MaxTokens         int           `koanf:"max_tokens"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	MaxRetries        int           `koanf:"max_retries"`
	Timeout           time.Duration `koanf:"timeout"`
}

// PortfolioConfig holds business-record backend access configuration.
type PortfolioConfig struct {
	Mode            string        `koanf:"mode"` // http or fixture
	BaseURL         string        `koanf:"base_url"`
	TokenURL        string        `koanf:"token_url"`
	ClientID        string        `koanf:"client_id"`
	ClientSecretEnv string        `koanf:"client_secret_env"`
	Timeout         time.Duration `koanf:"timeout"`
}

// GoldensConfig holds the curated golden-example directory settings.
type GoldensConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

// SecretsConfig holds correction scrubbing configuration.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// Validate validates the configuration, collecting every violation so a
// misconfigured deployment reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "shutdown timeout must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("invalid logging format: %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			problems = append(problems, "telemetry service name required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			problems = append(problems, fmt.Sprintf("invalid telemetry protocol: %q", c.Telemetry.Protocol))
		}
	}

	if c.Embeddings.Dimension <= 0 {
		problems = append(problems, "embedding dimension must be positive")
	}
	switch c.Embeddings.Provider {
	case "tei", "openai", "fastembed":
	default:
		problems = append(problems, fmt.Sprintf("unknown embeddings provider: %q", c.Embeddings.Provider))
	}

	switch c.VectorStore.Provider {
	case "embedded":
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			problems = append(problems, "qdrant host required for qdrant vector store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown vector store provider: %q", c.VectorStore.Provider))
	}

	if c.Knowledge.Path == "" {
		problems = append(problems, "knowledge store path required")
	}
	if c.Knowledge.RetentionDays < 1 {
		problems = append(problems, "knowledge retention must be at least one day")
	}

	if !c.Recorder.Embedded && c.Recorder.URL == "" {
		problems = append(problems, "recorder url required when embedded NATS is disabled")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		problems = append(problems, "scheduler interval must be positive")
	}
	if c.Scheduler.TimeBucket <= 0 {
		problems = append(problems, "scheduler time bucket must be positive")
	}

	if c.Learning.DedupThreshold <= 0 || c.Learning.DedupThreshold > 1 {
		problems = append(problems, "learning dedup threshold must be in (0, 1]")
	}
	if c.Learning.RuleStartConfidence < 0 || c.Learning.RuleStartConfidence > 1 {
		problems = append(problems, "rule start confidence must be in [0, 1]")
	}

	switch c.Portfolio.Mode {
	case "fixture":
	case "http":
		if c.Portfolio.BaseURL == "" {
			problems = append(problems, "portfolio base_url required in http mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown portfolio mode: %q", c.Portfolio.Mode))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
