// Package config loads runtime configuration from a YAML file with
// environment variable overrides. Flags beat env, env beats file, file
// beats defaults; the CLI layer applies flags after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry configures the service-registry reader.
type Registry struct {
	// NamespaceID selects the Cloud Map namespace to snapshot.
	NamespaceID string `yaml:"namespace_id"`
}

// Queue configures the dispatch channel.
type Queue struct {
	URL string `yaml:"url"`

	// WaitSeconds is the long-poll duration for receives, capped at 20.
	WaitSeconds int32 `yaml:"wait_seconds"`
}

// Lock configures the conditional-put substrate behind the mutex and the
// sequence watermark. Exactly one backend is selected: DynamoDB when
// Table is set, SQLite when SQLitePath is set.
type Lock struct {
	Table      string        `yaml:"table"`
	SQLitePath string        `yaml:"sqlite_path"`
	Key        string        `yaml:"key"`
	Lease      time.Duration `yaml:"lease"`

	// Watermark enables the stale-snapshot sequence guard. The watermark
	// record lives in the same store under its own key.
	Watermark    bool   `yaml:"watermark"`
	WatermarkKey string `yaml:"watermark_key"`
}

// Graph configures the Neo4j target store.
type Graph struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Config is the full runtime configuration.
type Config struct {
	Registry Registry `yaml:"registry"`
	Queue    Queue    `yaml:"queue"`
	Lock     Lock     `yaml:"lock"`
	Graph    Graph    `yaml:"graph"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when no file and no env vars are
// present. Lock key and lease match the reconciliation engine's defaults.
func Default() Config {
	return Config{
		Queue: Queue{WaitSeconds: 20},
		Lock: Lock{
			Key:          "reconciler",
			Lease:        2 * time.Minute,
			WatermarkKey: "watermark",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty), applies environment overrides, and
// validates the result. A missing file is an error only when the path was
// given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environment variables recognized by applyEnv. Each overrides the
// corresponding file field when set and non-empty.
const (
	EnvNamespaceID   = "CARTOGRAPH_NAMESPACE_ID"
	EnvQueueURL      = "CARTOGRAPH_QUEUE_URL"
	EnvLockTable     = "CARTOGRAPH_LOCK_TABLE"
	EnvLockSQLite    = "CARTOGRAPH_LOCK_SQLITE"
	EnvLockKey       = "CARTOGRAPH_LOCK_KEY"
	EnvLockLease     = "CARTOGRAPH_LOCK_LEASE"
	EnvGraphURI      = "CARTOGRAPH_GRAPH_URI"
	EnvGraphUsername = "CARTOGRAPH_GRAPH_USERNAME"
	EnvGraphPassword = "CARTOGRAPH_GRAPH_PASSWORD"
	EnvLogLevel      = "CARTOGRAPH_LOG_LEVEL"
	EnvLogFormat     = "CARTOGRAPH_LOG_FORMAT"
)

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Registry.NamespaceID, EnvNamespaceID)
	setString(&c.Queue.URL, EnvQueueURL)
	setString(&c.Lock.Table, EnvLockTable)
	setString(&c.Lock.SQLitePath, EnvLockSQLite)
	setString(&c.Lock.Key, EnvLockKey)
	setString(&c.Graph.URI, EnvGraphURI)
	setString(&c.Graph.Username, EnvGraphUsername)
	setString(&c.Graph.Password, EnvGraphPassword)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Log.Format, EnvLogFormat)

	if v := os.Getenv(EnvLockLease); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lock.Lease = d
		}
	}
}

// Validate checks cross-field constraints. Connection endpoints are not
// required here: commands that need them check at wiring time, so schema
// validation and memory-backed runs work with an empty config.
func (c *Config) Validate() error {
	if c.Lock.Table != "" && c.Lock.SQLitePath != "" {
		return fmt.Errorf("config: lock.table and lock.sqlite_path are mutually exclusive")
	}
	if c.Lock.Key == "" {
		return fmt.Errorf("config: lock.key must not be empty")
	}
	if c.Lock.Lease <= 0 {
		return fmt.Errorf("config: lock.lease must be positive, got %s", c.Lock.Lease)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Queue.WaitSeconds < 0 || c.Queue.WaitSeconds > 20 {
		return fmt.Errorf("config: queue.wait_seconds must be in [0,20], got %d", c.Queue.WaitSeconds)
	}
	return nil
}
