package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds posd settings.
type Config struct {
	Backend string // memory|badger|pebble|redis
	DataDir string
	HTTP    HTTPConfig
	Poll    PollConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Journal JournalConfig
}

// HTTPConfig holds the metrics/health listener settings.
type HTTPConfig struct {
	Addr string
}

// PollConfig holds the view synchronization cadence.
type PollConfig struct {
	IntervalMS int
}

// RedisConfig holds the shared-store backend settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds changelog/manifest topic settings.
type KafkaConfig struct {
	Bootstrap      string
	TopicChangelog string
	TopicSnapshots string
	GroupID        string
}

// JournalConfig holds changelog and snapshot durability settings.
type JournalConfig struct {
	ChangelogSink       string // off|file|kafka|both
	ManifestSink        string // file|kafka|both
	ChangelogDir        string
	SnapshotDir         string
	SnapshotIntervalSec int
}

// Load reads configuration from file and env. Env var overrides use prefix POSD_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("backend", "pebble")
	v.SetDefault("data_dir", "./data/posd")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("poll.interval_ms", 500)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.bootstrap", "")
	v.SetDefault("kafka.topic_changelog", "pos.changelog")
	v.SetDefault("kafka.topic_snapshots", "pos.snapshots")
	v.SetDefault("kafka.group_id", "posd")
	v.SetDefault("journal.changelog_sink", "file")
	v.SetDefault("journal.manifest_sink", "file")
	v.SetDefault("journal.changelog_dir", "./changelog")
	v.SetDefault("journal.snapshot_dir", "./snapshots")
	v.SetDefault("journal.snapshot_interval_sec", 60)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("POSD_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "posd"))
		v.AddConfigPath(".")
		v.SetConfigName("posd")
	}

	v.SetEnvPrefix("POSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Backend: v.GetString("backend"),
		DataDir: v.GetString("data_dir"),
		HTTP:    HTTPConfig{Addr: v.GetString("http.addr")},
		Poll:    PollConfig{IntervalMS: v.GetInt("poll.interval_ms")},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Bootstrap:      v.GetString("kafka.bootstrap"),
			TopicChangelog: v.GetString("kafka.topic_changelog"),
			TopicSnapshots: v.GetString("kafka.topic_snapshots"),
			GroupID:        v.GetString("kafka.group_id"),
		},
		Journal: JournalConfig{
			ChangelogSink:       v.GetString("journal.changelog_sink"),
			ManifestSink:        v.GetString("journal.manifest_sink"),
			ChangelogDir:        v.GetString("journal.changelog_dir"),
			SnapshotDir:         v.GetString("journal.snapshot_dir"),
			SnapshotIntervalSec: v.GetInt("journal.snapshot_interval_sec"),
		},
	}

	switch cfg.Backend {
	case "memory", "badger", "pebble", "redis":
	default:
		return Config{}, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
	return cfg, nil
}
