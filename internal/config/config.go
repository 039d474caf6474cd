// Package config loads idsync configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (IDSYNC_*)
//  2. .env.local (dotenv), found by walking up from the working directory
//  3. The YAML config file (--config, IDSYNC_CONFIG, or ./idsync.yaml)
//
// The YAML file is checked against an embedded CUE schema before it is
// decoded, so errors carry file positions.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/idsync/internal/engine"
)

// DefaultPath is the config file read when none is named.
const DefaultPath = "idsync.yaml"

// ErrUnknownTarget is returned by Target for a name not in the config.
var ErrUnknownTarget = errors.New("unknown target")

// Config is the resolved configuration.
type Config struct {
	Mongo       MongoConfig    `yaml:"mongo"`
	DBPath      string         `yaml:"db_path"`
	LogLevel    string         `yaml:"log_level"`
	Workers     int            `yaml:"workers"`
	MetricsFile string         `yaml:"metrics_file"`
	Identities  IdentityConfig `yaml:"identities"`
	Targets     []TargetConfig `yaml:"targets"`

	// Path is the config file that was read, or "" when none was.
	Path string `yaml:"-"`
}

// MongoConfig locates the live document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// IdentityConfig names the identity collection and its field layout.
type IdentityConfig struct {
	engine.IdentitySpec `yaml:",inline"`

	Collection string `yaml:"collection"`
}

// TargetConfig is one target collection.
type TargetConfig struct {
	engine.TargetSpec `yaml:",inline"`

	// Snapshot is the JSON mirror file kept in step with the collection.
	Snapshot string `yaml:"snapshot,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DBPath:   filepath.Join(".idsync", "idsync.db"),
		LogLevel: "info",
		Workers:  engine.DefaultWorkers,
		Identities: IdentityConfig{
			Collection:   "customers",
			IdentitySpec: engine.DefaultIdentitySpec,
		},
	}
}

// Load resolves the configuration. path may be empty, in which case
// IDSYNC_CONFIG and then ./idsync.yaml are tried; only a path that was asked
// for explicitly has to exist.
func Load(path string) (*Config, error) {
	vars := newEnv(findEnvLocal())

	explicit := path != ""
	if path == "" {
		path = vars.get("IDSYNC_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(vars); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile validates and decodes the YAML file at path into c.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	if err := Validate(path, data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// applyEnv overrides file settings with IDSYNC_* variables.
func (c *Config) applyEnv(vars env) error {
	if uri := vars.getOrFile("IDSYNC_MONGO_URI", "IDSYNC_MONGO_URI_FILE"); uri != "" {
		c.Mongo.URI = uri
	}
	if db := vars.get("IDSYNC_MONGO_DATABASE"); db != "" {
		c.Mongo.Database = db
	}
	if path := vars.get("IDSYNC_DB_PATH"); path != "" {
		c.DBPath = path
	}
	if level := vars.get("IDSYNC_LOG_LEVEL"); level != "" {
		if _, err := ParseLevel(level); err != nil {
			return fmt.Errorf("IDSYNC_LOG_LEVEL: %w", err)
		}
		c.LogLevel = level
	}
	if w := vars.get("IDSYNC_WORKERS"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 1 {
			return fmt.Errorf("IDSYNC_WORKERS: want a positive integer, got %q", w)
		}
		c.Workers = n
	}
	return nil
}

// Target returns the target named name.
func (c *Config) Target(name string) (TargetConfig, error) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return TargetConfig{}, fmt.Errorf("%w %q", ErrUnknownTarget, name)
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// env looks up variables in the process environment first and then in the
// values read from .env.local. The process environment is never modified.
type env struct {
	dotenv map[string]string
}

func newEnv(dotenvPath string) env {
	e := env{dotenv: map[string]string{}}
	if dotenvPath == "" {
		return e
	}
	if values, err := godotenv.Read(dotenvPath); err == nil {
		e.dotenv = values
	}
	return e
}

func (e env) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.dotenv[key]
}

// getOrFile returns the value of key, or the trimmed contents of the file
// named by fileKey.
func (e env) getOrFile(key, fileKey string) string {
	if v := e.get(key); v != "" {
		return v
	}
	if path := e.get(fileKey); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// findEnvLocal searches for .env.local from the working directory up to the
// user's home directory or the filesystem root.
func findEnvLocal() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	home, _ := os.UserHomeDir()
	return findUpward(cwd, home, ".env.local")
}

func findUpward(start, stop, name string) string {
	dir := filepath.Clean(start)
	if stop != "" {
		stop = filepath.Clean(stop)
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		if dir == stop {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
