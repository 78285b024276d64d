package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# Sticky board configuration file
# Values can be overridden by .env, STICKYBOARD_* environment variables or CLI flags

# Base URL of the JSON data server that stores tasks
api_url = "http://localhost:3000"

# Timeout for each request to the data server (seconds)
request_timeout_seconds = 10

# SQLite file holding local preferences such as the color rotation
# (supports ~ and $VAR expansion)
state_file = "~/.stickyboard/state.db"

# Initial sort key: start, deadline or complete
default_sort = "start"

# Per-run log files are written here
log_dir = "~/.stickyboard/logs"

# Logging: debug, info, warn or error; text, json or logfmt
log_level = "info"
log_format = "text"
`
}
