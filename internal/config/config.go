// Package config resolves the runtime configuration from defaults,
// EPUBREADER_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yuanying/epub-reader/internal/validation"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EPUBREADER_"

// Config holds the application configuration.
type Config struct {
	DataDir   string `json:"data_dir" validate:"required"`
	LogLevel  string `json:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `json:"log_format" validate:"oneof=text json"`

	Server ServerConfig `json:"server"`
}

// ServerConfig configures the sync server.
type ServerConfig struct {
	Addr              string        `json:"addr" validate:"required"`
	DBPath            string        `json:"db"`
	RequestsPerSecond float64       `json:"requests_per_second" validate:"gt=0"`
	Burst             int           `json:"burst" validate:"gte=1"`
	ReadTimeout       time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `json:"write_timeout" validate:"gt=0"`
}

// Flags carries values given on the command line. Empty strings and
// zero values mean "not set".
type Flags struct {
	DataDir    string
	LogLevel   string
	LogFormat  string
	ServerAddr string
	ServerDB   string
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from the process environment and flags.
func Load(flags Flags) (*Config, error) {
	return LoadWith(flags, os.LookupEnv)
}

// LoadWith is Load with an explicit environment.
func LoadWith(flags Flags, lookup LookupFunc) (*Config, error) {
	env := func(name string) string {
		v, _ := lookup(EnvPrefix + name)
		return v
	}

	cfg := &Config{
		DataDir:   pick(flags.DataDir, env("DATA_DIR"), defaultDataDir(lookup)),
		LogLevel:  pick(flags.LogLevel, env("LOG_LEVEL"), "info"),
		LogFormat: pick(flags.LogFormat, env("LOG_FORMAT"), "text"),
		Server: ServerConfig{
			Addr:   pick(flags.ServerAddr, env("SERVER_ADDR"), ":8080"),
			DBPath: flags.ServerDB,
		},
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = pick(env("SERVER_DB"), filepath.Join(cfg.DataDir, "sync.db"))
	}

	var err error
	if cfg.Server.RequestsPerSecond, err = parseFloat(env("SERVER_RPS"), 5); err != nil {
		return nil, fmt.Errorf("invalid %sSERVER_RPS: %w", EnvPrefix, err)
	}
	if cfg.Server.Burst, err = parseInt(env("SERVER_BURST"), 20); err != nil {
		return nil, fmt.Errorf("invalid %sSERVER_BURST: %w", EnvPrefix, err)
	}
	if cfg.Server.ReadTimeout, err = parseDuration(env("SERVER_READ_TIMEOUT"), 15*time.Second); err != nil {
		return nil, fmt.Errorf("invalid %sSERVER_READ_TIMEOUT: %w", EnvPrefix, err)
	}
	if cfg.Server.WriteTimeout, err = parseDuration(env("SERVER_WRITE_TIMEOUT"), 15*time.Second); err != nil {
		return nil, fmt.Errorf("invalid %sSERVER_WRITE_TIMEOUT: %w", EnvPrefix, err)
	}

	if err := validation.New().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StorePath is the badger directory inside the data dir.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "library")
}

func defaultDataDir(lookup LookupFunc) string {
	if xdg, ok := lookup("XDG_DATA_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "epubreader")
	}
	if home, ok := lookup("HOME"); ok && home != "" {
		return filepath.Join(home, ".local", "share", "epubreader")
	}
	return ".epubreader"
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseFloat(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
