package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "STEWARD_"
)

// defaultsYAML seeds the koanf tree before file and environment layers.
var defaultsYAML = []byte(`
server:
  host: 127.0.0.1
  port: 8787
  read_timeout: 30s
  write_timeout: 60s
  shutdown_timeout: 10s
logging:
  level: info
  format: json
telemetry:
  enabled: false
  service_name: stewardd
  protocol: grpc
  sample_ratio: 1.0
embeddings:
  provider: tei
  base_url: http://localhost:8080
  model: BAAI/bge-small-en-v1.5
  dimension: 384
  timeout: 30s
vectorstore:
  provider: embedded
  compress: true
knowledge:
  retention_days: 365
recorder:
  embedded: true
  stream: STEWARD_DECISIONS
  subject_prefix: steward.decisions
  buffer: 256
  publish_timeout: 5s
scheduler:
  enabled: true
  interval: 6h
  time_bucket: 24h
  outcome_grace: 72h
  outcome_max_age: 720h
autonomy:
  default_preset: balanced
learning:
  dedup_threshold: 0.92
  rule_start_confidence: 0.5
  reinforce_bump: 0.1
  decay_days: 30
  decay_amount: 0.1
  search_threshold: 0.7
  search_count: 5
llm:
  provider: openai
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  api_key_env: STEWARD_LLM_API_KEY
  max_tokens: 2048
  requests_per_second: 2
  max_retries: 3
  timeout: 60s
portfolio:
  mode: fixture
  timeout: 20s
goldens:
  watch: true
secrets:
  enabled: true
`)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. STEWARD_-prefixed environment variables (STEWARD_SERVER_PORT, ...)
//  2. YAML config file (default ~/.config/steward/config.yaml)
//  3. Built-in defaults
//
// Security: the config file must live under ~/.config/steward/ or
// /etc/steward/, must not be group/world accessible, and must be under 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}

	if configPath == "" {
		if fromEnv := os.Getenv("STEWARD_CONFIG"); fromEnv != "" {
			configPath = fromEnv
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			configPath = filepath.Join(home, ".config", "steward", "config.yaml")
		}
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// check-then-read race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment overrides. STEWARD_SERVER_PORT -> server.port,
	// STEWARD_SCHEDULER_TIME_BUCKET -> scheduler.time_bucket: the first
	// underscore after the prefix separates section from field, later
	// underscores stay in the field name.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// EnsureConfigDir creates the steward config directory if it doesn't exist,
// owner-only.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "steward")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks the path sits inside an allowed directory.
// Runs even when the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet; validate the literal path.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "steward"),
		"/etc/steward",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) || resolvedPath == dir {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/steward/ or /etc/steward/")
}

// validateConfigFileProperties checks permissions and size on an
// already-opened file to avoid a TOCTOU race.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDerivedDefaults fills values that depend on other settings or the
// environment and so cannot live in the static defaults document.
func applyDerivedDefaults(cfg *Config) {
	if cfg.VectorStore.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.VectorStore.Path = filepath.Join(home, ".local", "share", "steward", "vectors")
		}
	}
	if cfg.Knowledge.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Knowledge.Path = filepath.Join(home, ".local", "share", "steward", "steward.db")
		}
	}
	if cfg.VectorStore.Qdrant.Host == "" && cfg.VectorStore.Provider == "qdrant" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.Recorder.Buffer <= 0 {
		cfg.Recorder.Buffer = 256
	}
	if cfg.Recorder.PublishTimeout <= 0 {
		cfg.Recorder.PublishTimeout = 5 * time.Second
	}
	if cfg.Scheduler.OutcomeGrace <= 0 {
		cfg.Scheduler.OutcomeGrace = 72 * time.Hour
	}
	if cfg.Scheduler.OutcomeMaxAge <= 0 {
		cfg.Scheduler.OutcomeMaxAge = 30 * 24 * time.Hour
	}
	if cfg.LLM.MaxRetries <= 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.Learning.SearchCount <= 0 {
		cfg.Learning.SearchCount = 5
	}
}
