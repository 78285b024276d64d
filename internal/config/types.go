package config

import "time"

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceDotEnv   ConfigSource = ".env"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest priority first.
	Files []string
}

// Default values.
const (
	DefaultAPIURL         = "http://localhost:3000"
	DefaultTimeoutSeconds = 10
	DefaultStateFile      = "~/.stickyboard/state.db"
	DefaultSort           = "start"
	DefaultLogDir         = "~/.stickyboard/logs"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Config holds the full configuration for stickyboard.
type Config struct {
	// Data server
	APIURL                string `toml:"api_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`

	// Local state
	StateFile   string `toml:"state_file"`
	DefaultSort string `toml:"default_sort"`

	// Logging
	LogDir    string `toml:"log_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"api_url",
		"request_timeout_seconds",
		"state_file",
		"default_sort",
		"log_dir",
		"log_level",
		"log_format",
	}
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.RequestTimeoutSeconds = DefaultTimeoutSeconds
	cfg.StateFile = DefaultStateFile
	cfg.DefaultSort = DefaultSort
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}
