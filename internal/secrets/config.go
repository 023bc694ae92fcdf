package secrets

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active. Only explicit
	// config turns it off.
	Enabled bool `koanf:"enabled"`

	// AllowlistPath is an optional TOML file of patterns to exclude
	// from detection. A missing file is not an error.
	AllowlistPath string `koanf:"allowlist_path"`
}

// DefaultConfig returns the production default: enabled, no allowlist.
func DefaultConfig() *Config {
	return &Config{Enabled: true}
}
