package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvFile is the dotenv file read from the working directory.
const DotEnvFile = ".env"

// envLookup resolves a variable from the process environment first and the
// dotenv values second, reporting which one supplied it.
type envLookup struct {
	dotenv map[string]string
}

func newEnvLookup(path string) (*envLookup, error) {
	l := &envLookup{dotenv: map[string]string{}}
	if path == "" {
		return l, nil
	}
	if _, err := os.Stat(path); err != nil {
		return l, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	l.dotenv = values
	return l, nil
}

func (l *envLookup) get(key string) (string, ConfigSource, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, SourceEnv, true
	}
	if v, ok := l.dotenv[key]; ok && v != "" {
		return v, SourceDotEnv, true
	}
	return "", "", false
}

// loadFromEnv overrides config from environment variables and the dotenv
// file, updating source tracking.
func loadFromEnv(cfg *Config, dotenvPath string, sources map[string]ConfigSource) error {
	env, err := newEnvLookup(dotenvPath)
	if err != nil {
		return err
	}

	strVars := []struct {
		key    string
		field  string
		target *string
	}{
		{"STICKYBOARD_API_URL", "api_url", &cfg.APIURL},
		{"STICKYBOARD_STATE_FILE", "state_file", &cfg.StateFile},
		{"STICKYBOARD_SORT", "default_sort", &cfg.DefaultSort},
		{"STICKYBOARD_LOG_DIR", "log_dir", &cfg.LogDir},
		{"STICKYBOARD_LOG_LEVEL", "log_level", &cfg.LogLevel},
		{"STICKYBOARD_LOG_FORMAT", "log_format", &cfg.LogFormat},
	}
	for _, v := range strVars {
		if val, src, ok := env.get(v.key); ok {
			*v.target = val
			sources[v.field] = src
		}
	}

	if val, src, ok := env.get("STICKYBOARD_TIMEOUT"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("STICKYBOARD_TIMEOUT %q is not a whole number of seconds", val)
		}
		cfg.RequestTimeoutSeconds = secs
		sources["request_timeout_seconds"] = src
	}
	return nil
}
