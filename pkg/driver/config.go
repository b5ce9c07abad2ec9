package driver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// ConfigFileName is the runtime configuration file searched for by FindConfig.
const ConfigFileName = "dern.yml"

// Environment variables consulted by the driver.
const (
	EnvHome = "DERN_HOME"
	EnvPath = "DERN_PATH"
)

// ErrConfigNotFound is returned by FindConfig when no dern.yml exists in the
// start directory or any of its parents.
var ErrConfigNotFound = errors.New("config: dern.yml not found")

// Config holds interpreter settings read from dern.yml.
type Config struct {
	Path         string
	GC           GCConfig
	Log          LogConfig
	LibraryPaths []string
}

// GCConfig mirrors runtime.Collector's tunables.
type GCConfig struct {
	TriggerLimit int
	Prevent      bool
}

// LogConfig selects the diagnostic log level.
type LogConfig struct {
	Level string
}

// DefaultConfig returns the settings used when no dern.yml is present.
func DefaultConfig() *Config {
	return &Config{
		GC:  GCConfig{TriggerLimit: runtime.DefaultTriggerLimit},
		Log: LogConfig{Level: "warn"},
	}
}

// LoadConfig reads and validates the configuration file at path. Relative
// library paths are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw configFile
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}

	cfg := raw.toConfig(absPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfig walks upward from start looking for dern.yml.
func FindConfig(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("config: resolve %s: %w", start, err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config: stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := ValidationError{Subject: "config"}
	if c.GC.TriggerLimit <= 0 {
		errs.Issues = append(errs.Issues, fmt.Sprintf("gc.trigger_limit must be positive, got %d", c.GC.TriggerLimit))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs.Issues = append(errs.Issues, err.Error())
	}
	for i, p := range c.LibraryPaths {
		if p == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("library_paths[%d] must be a non-empty string", i))
		}
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// Collector returns the collection schedule for the interpreter.
func (c *Config) Collector() runtime.Collector {
	return runtime.Collector{TriggerLimit: c.GC.TriggerLimit, Prevent: c.GC.Prevent}
}

// ApplyEnv appends the directories listed in DERN_PATH to the library paths.
func (c *Config) ApplyEnv() {
	for _, p := range filepath.SplitList(os.Getenv(EnvPath)) {
		if p = strings.TrimSpace(p); p != "" {
			c.LibraryPaths = append(c.LibraryPaths, p)
		}
	}
}

// ParseLogLevel maps a level name onto slog levels.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", name)
	}
}

// ResolveHome returns the dependency cache directory: DERN_HOME when set,
// otherwise ~/.dern.
func ResolveHome() (string, error) {
	if env := strings.TrimSpace(os.Getenv(EnvHome)); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dern"), nil
}

type configFile struct {
	GC struct {
		TriggerLimit *int `yaml:"trigger_limit"`
		Prevent      bool `yaml:"prevent"`
	} `yaml:"gc"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	LibraryPaths stringList `yaml:"library_paths"`
}

func (cf configFile) toConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.Path = path
	if cf.GC.TriggerLimit != nil {
		cfg.GC.TriggerLimit = *cf.GC.TriggerLimit
	}
	cfg.GC.Prevent = cf.GC.Prevent
	if level := strings.TrimSpace(cf.Log.Level); level != "" {
		cfg.Log.Level = level
	}
	base := filepath.Dir(path)
	for _, p := range cf.LibraryPaths.Clone() {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		cfg.LibraryPaths = append(cfg.LibraryPaths, filepath.Clean(p))
	}
	return cfg
}
