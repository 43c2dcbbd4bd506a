package config

import "strings"

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	// Level is any slog level name: debug, info, warn, error.
	Level string `env:"LOG_LEVEL"  envDefault:"info"`
	// Format is json or text. Empty means text in dev mode and json otherwise.
	Format string `env:"LOG_FORMAT"`
}

// Sanitize normalises values and resolves the format default.
func (c *LogConfig) Sanitize(isDev bool) {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "info"
	}
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "text":
		c.Format = "text"
	case "json":
		c.Format = "json"
	default:
		c.Format = "json"
		if isDev {
			c.Format = "text"
		}
	}
}
