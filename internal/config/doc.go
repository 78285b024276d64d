// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.stickyboard/stickyboard.toml or OS-specific config directory)
// 3. Project config file (stickyboard.toml or .stickyboard.toml in the working directory)
// 4. A .env file in the working directory
// 5. Environment variables (STICKYBOARD_*)
// 6. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
// Values from .env never replace variables already set in the environment.
//
// User-level config locations:
// - ~/.stickyboard/stickyboard.toml (preferred)
// - Windows: %APPDATA%\stickyboard\stickyboard.toml
// - macOS: ~/Library/Application Support/stickyboard/stickyboard.toml
// - Linux/BSD: $XDG_CONFIG_HOME/stickyboard/stickyboard.toml or ~/.config/stickyboard/stickyboard.toml
package config
