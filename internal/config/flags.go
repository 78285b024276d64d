package config

import "flag"

// parseFlags defines the global flags on fs, parses args and applies the
// flags that were set, updating source tracking.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("stickyboard", flag.ContinueOnError)
	}

	var (
		apiURL, stateFile, sort     string
		logDir, logLevel, logFormat string
		timeout                     int
	)
	fs.StringVar(&apiURL, "api", cfg.APIURL, "Data server base URL")
	fs.IntVar(&timeout, "timeout", cfg.RequestTimeoutSeconds, "Request timeout in seconds")
	fs.StringVar(&stateFile, "state", cfg.StateFile, "Preference database file")
	fs.StringVar(&sort, "sort", cfg.DefaultSort, "Initial sort key (start, deadline, complete)")
	fs.StringVar(&logDir, "log-dir", cfg.LogDir, "Log directory")
	fs.StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&logFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	flagToSource := map[string]string{
		"api":        "api_url",
		"timeout":    "request_timeout_seconds",
		"state":      "state_file",
		"sort":       "default_sort",
		"log-dir":    "log_dir",
		"log-level":  "log_level",
		"log-format": "log_format",
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			cfg.APIURL = apiURL
		case "timeout":
			cfg.RequestTimeoutSeconds = timeout
		case "state":
			cfg.StateFile = stateFile
		case "sort":
			cfg.DefaultSort = sort
		case "log-dir":
			cfg.LogDir = logDir
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		}
		if field, ok := flagToSource[f.Name]; ok {
			sources[field] = SourceFlag
		}
	})
	return nil
}
