package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	ASR         ASRConfig         `koanf:"asr"`
	Worker      WorkerConfig      `koanf:"worker"`
	Postprocess PostprocessConfig `koanf:"postprocess"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

// ASRConfig selects and configures the speech recognition engine.
type ASRConfig struct {
	Engine  string `koanf:"engine"` // whisper-api or whisper-cli
	APIURL  string `koanf:"api_url"`
	APIKey  string `koanf:"api_key"`
	Binary  string `koanf:"binary"`
	Model   string `koanf:"model"`
	Timeout string `koanf:"timeout"`
}

type WorkerConfig struct {
	Count         int    `koanf:"count"`
	LeaseDuration string `koanf:"lease_duration"`
	MaxAttempts   int    `koanf:"max_attempts"`
	PollInterval  string `koanf:"poll_interval"`
	JobTimeout    string `koanf:"job_timeout"`
	ReapInterval  string `koanf:"reap_interval"`
}

type PostprocessConfig struct {
	DedupWindow     int `koanf:"dedup_window"`
	MinRepeatLength int `koanf:"min_repeat_length"`
	MinWords        int `koanf:"min_words"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: LYRIQ_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("LYRIQ_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		// Section names are single words, so only the first underscore
		// separates section from key; the rest belong to the key itself
		// (LYRIQ_WORKER_MAX_ATTEMPTS -> worker.max_attempts).
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "LYRIQ_")),
			"_", ".", 1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("LYRIQ_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Duration parses a config duration string, falling back when unset or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
