package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent loom configuration stored as config.toml
// in the .loom/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Events  EventsConfig  `toml:"events"`
	Score   ScoreConfig   `toml:"score"`
	Cleanup CleanupConfig `toml:"cleanup"`
	Chat    ChatConfig    `toml:"chat"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig selects the branch lifecycle event publisher.
type EventsConfig struct {
	Backend      string `toml:"backend,omitempty"`
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// ScoreConfig holds the branch quality score weights. Weights are
// normalized at use, so they only need to be non-negative.
type ScoreConfig struct {
	Momentum float64 `toml:"momentum,omitempty"`
	Recency  float64 `toml:"recency,omitempty"`
	Feedback float64 `toml:"feedback,omitempty"`
}

// CleanupConfig holds defaults for branch cleanup.
type CleanupConfig struct {
	MaxAgeDays uint `toml:"max_age_days,omitempty"`
}

// ChatConfig holds settings for the chat command's model endpoint.
// Target is a full URL (scheme + host + port).
type ChatConfig struct {
	Target string `toml:"target,omitempty"`
	Model  string `toml:"model,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.backend": {
		get: func(c *Config) string { return c.Storage.Backend },
		set: func(c *Config, v string) error {
			if v != "sqlite" && v != "postgres" {
				return fmt.Errorf("invalid value for storage.backend: %q (available: sqlite, postgres)", v)
			}
			c.Storage.Backend = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.backend": {
		get: func(c *Config) string { return c.Events.Backend },
		set: func(c *Config, v string) error {
			if v != "none" && v != "kafka" {
				return fmt.Errorf("invalid value for events.backend: %q (available: none, kafka)", v)
			}
			c.Events.Backend = v
			return nil
		},
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return c.Events.KafkaBrokers },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = v; return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"score.momentum": {
		get: func(c *Config) string { return formatFloat(c.Score.Momentum) },
		set: func(c *Config, v string) error { return setFloat(&c.Score.Momentum, "score.momentum", v) },
	},
	"score.recency": {
		get: func(c *Config) string { return formatFloat(c.Score.Recency) },
		set: func(c *Config, v string) error { return setFloat(&c.Score.Recency, "score.recency", v) },
	},
	"score.feedback": {
		get: func(c *Config) string { return formatFloat(c.Score.Feedback) },
		set: func(c *Config, v string) error { return setFloat(&c.Score.Feedback, "score.feedback", v) },
	},
	"cleanup.max_age_days": {
		get: func(c *Config) string {
			if c.Cleanup.MaxAgeDays == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Cleanup.MaxAgeDays), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for cleanup.max_age_days: %w", err)
			}
			c.Cleanup.MaxAgeDays = uint(n)
			return nil
		},
	},
	"chat.target": {
		get: func(c *Config) string { return c.Chat.Target },
		set: func(c *Config, v string) error { c.Chat.Target = v; return nil },
	},
	"chat.model": {
		get: func(c *Config) string { return c.Chat.Model },
		set: func(c *Config, v string) error { c.Chat.Model = v; return nil },
	},
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func setFloat(target *float64, key, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if f < 0 {
		return fmt.Errorf("invalid value for %s: must be non-negative", key)
	}
	*target = f
	return nil
}
