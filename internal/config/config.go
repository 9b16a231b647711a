package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/hoststyle/internal/profile"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Remote  RemoteConfig
	Host    HostConfig
	Cache   CacheConfig
	Worker  WorkerConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// ProfileDir is where the local fallback tier keeps profile documents.
func (s StorageConfig) ProfileDir() string {
	return filepath.Join(s.DataDir, "profiles")
}

type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

type HostConfig struct {
	ID string
}

type CacheConfig struct {
	TTL time.Duration
}

type WorkerConfig struct {
	PollInterval time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Remote: RemoteConfig{
			BaseURL: "http://127.0.0.1:4100",
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
		Worker: WorkerConfig{
			PollInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/hoststyle/config.yaml, then applies HOSTSTYLE_*
// environment overrides. A missing file is not an error.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url must not be empty")
	}
	return nil
}

// EnsureHostID returns the configured host identity. When none is set, a
// new one is generated and persisted so later runs reuse it.
func EnsureHostID(cfg *Config) (string, error) {
	return ensureHostIDWith(cfg, newFileBackend(configFilePath()))
}

func ensureHostIDWith(cfg *Config, b ConfigBackend) (string, error) {
	if cfg.Host.ID != "" {
		return cfg.Host.ID, nil
	}
	id := profile.NewHostID()
	if err := b.SetString("host.id", id); err != nil {
		return "", fmt.Errorf("persisting host id: %w", err)
	}
	cfg.Host.ID = id
	return id, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "hoststyle-data"
		}
	}
	return filepath.Join(dir, "hoststyle")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "hoststyle", "config.yaml")
}
