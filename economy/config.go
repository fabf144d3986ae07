package economy

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/duskhaven/economy/economy/policy"
)

// LoadConfig reads the TOML configuration, layering the file over the
// shipped defaults so absent keys keep their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a runnable configuration for a local setup.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: slog.LevelInfo},
		Director: DirectorConfig{
			HeartbeatMinutes:   5,
			ProfilePassMinutes: 60,
			StartingHealth:     0.7,
		},
		API: APIConfig{Listen: ":8090"},
		Policy: policy.DefaultConfig(),
	}
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	DB       DBConfig       `toml:"db"`
	Director DirectorConfig `toml:"director"`
	API      APIConfig      `toml:"api"`
	Policy   policy.Config  `toml:"policy"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Legacy   LegacyConfig   `toml:"legacy"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

// DirectorConfig tunes the periodic loops.
type DirectorConfig struct {
	HeartbeatMinutes   int     `toml:"heartbeat_minutes"`
	ProfilePassMinutes int     `toml:"profile_pass_minutes"`
	StartingHealth     float64 `toml:"starting_health"`
}

// APIConfig sets the listen address for the administrative HTTP
// surface. Leave it empty to disable the server.
type APIConfig struct {
	Listen string `toml:"listen"`
}

// NotifyConfig points the event sink at a Discord webhook. Leave the
// ID empty to log notifications instead.
type NotifyConfig struct {
	WebhookID    snowflake.ID `toml:"webhook_id"`
	WebhookToken string       `toml:"webhook_token"`
}

// ArchiveConfig enables the S3-compatible snapshot-history export.
type ArchiveConfig struct {
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	Bucket   string `toml:"bucket"`
}

// LegacyConfig points the one-shot profile importer at the old bot's
// MongoDB.
type LegacyConfig struct {
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}
