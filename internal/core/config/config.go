package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. HASHCURATOR_DATABASE__DSN.
const EnvPrefix = "HASHCURATOR_"

// Config represents the top-level application config.
type Config struct {
	Database       DatabaseConfig       `koanf:"database"`
	Checkpoint     CheckpointConfig     `koanf:"checkpoint"`
	Aggregation    AggregationConfig    `koanf:"aggregation"`
	Classification ClassificationConfig `koanf:"classification"`
	Reputation     ReputationConfig     `koanf:"reputation"`
	Stats          StatsConfig          `koanf:"stats"`
	Log            LogConfig            `koanf:"log"`
	Schedule       ScheduleConfig       `koanf:"schedule"`
	Server         ServerConfig         `koanf:"server"`
}

type DatabaseConfig struct {
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	AutoMigrate  bool          `koanf:"auto_migrate"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

type CheckpointConfig struct {
	Path string `koanf:"path"`
}

type AggregationConfig struct {
	Enabled         bool  `koanf:"enabled"`
	WindowWidth     int64 `koanf:"window_width"`
	HoursAgo        int   `koanf:"hours_ago"`
	FlushOpenBucket bool  `koanf:"flush_open_bucket"`
}

type ClassificationConfig struct {
	Enabled             bool   `koanf:"enabled"`
	Parallelism         int    `koanf:"parallelism"`
	FromDaysAgo         int    `koanf:"from_days_ago"`
	ToDaysAgo           int    `koanf:"to_days_ago"`
	CandidateLimit      int    `koanf:"candidate_limit"`
	ResourceLimit       int    `koanf:"resource_limit"`
	MaxAgeYears         int    `koanf:"max_age_years"`
	PopularityThreshold int64  `koanf:"popularity_threshold"`
	MaxSignerChecks     int    `koanf:"max_signer_checks"`
	SignersFile         string `koanf:"signers_file"`
}

type ReputationConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type StatsConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
	File  string `koanf:"file"`  // appended to in addition to stdout; empty disables
}

type ScheduleConfig struct {
	Cron string `koanf:"cron"` // empty runs once and exits
}

type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Mode    string `koanf:"mode"` // debug | release
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be > 0")
	}

	if c.Aggregation.Enabled {
		if strings.TrimSpace(c.Checkpoint.Path) == "" {
			return fmt.Errorf("checkpoint.path is required")
		}
		if c.Aggregation.WindowWidth <= 0 {
			return fmt.Errorf("aggregation.window_width must be > 0")
		}
		if c.Aggregation.HoursAgo < 0 {
			return fmt.Errorf("aggregation.hours_ago must be >= 0")
		}
	}

	if c.Classification.Enabled {
		cl := c.Classification
		if cl.Parallelism <= 0 {
			return fmt.Errorf("classification.parallelism must be > 0")
		}
		if cl.ToDaysAgo < 0 || cl.FromDaysAgo < cl.ToDaysAgo {
			return fmt.Errorf("invalid classification date range: from_days_ago=%d to_days_ago=%d", cl.FromDaysAgo, cl.ToDaysAgo)
		}
		if cl.CandidateLimit <= 0 {
			return fmt.Errorf("classification.candidate_limit must be > 0")
		}
		if cl.ResourceLimit <= 1 {
			return fmt.Errorf("classification.resource_limit must be > 1")
		}
	}

	if c.Reputation.Enabled && strings.TrimSpace(c.Reputation.BaseURL) == "" {
		return fmt.Errorf("reputation.base_url is required when reputation is enabled")
	}

	if c.Stats.Enabled && strings.TrimSpace(c.Stats.Addr) == "" {
		return fmt.Errorf("stats.addr is required when stats is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule.cron %q: %w", c.Schedule.Cron, err)
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
		}
		if c.Server.Mode != "debug" && c.Server.Mode != "release" {
			return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
		}
	}

	return nil
}

// Load parses config from defaults, the optional file and env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"database.dsn":                        "postgres://localhost:5432/herd?sslmode=disable",
		"database.max_open_conns":             60,
		"database.max_idle_conns":             10,
		"database.auto_migrate":               false,
		"database.query_timeout":              "10m",
		"checkpoint.path":                     "processedResourceID.dat",
		"aggregation.enabled":                 true,
		"aggregation.window_width":            100000,
		"aggregation.hours_ago":               0,
		"aggregation.flush_open_bucket":       false,
		"classification.enabled":              true,
		"classification.parallelism":          50,
		"classification.from_days_ago":        15,
		"classification.to_days_ago":          10,
		"classification.candidate_limit":      300000,
		"classification.resource_limit":       1000,
		"classification.max_age_years":        2,
		"classification.popularity_threshold": 5000,
		"classification.max_signer_checks":    10,
		"classification.signers_file":         "",
		"reputation.enabled":                  false,
		"reputation.base_url":                 "https://www.virustotal.com/api/v3",
		"reputation.api_key":                  "",
		"reputation.timeout":                  "30s",
		"stats.enabled":                       false,
		"stats.addr":                          "localhost:6379",
		"stats.password":                      "",
		"stats.db":                            0,
		"stats.timeout":                       "3s",
		"log.level":                           "info",
		"log.file":                            "debug.dat",
		"schedule.cron":                       "",
		"server.enabled":                      false,
		"server.host":                         "0.0.0.0",
		"server.port":                         8080,
		"server.mode":                         "release",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
