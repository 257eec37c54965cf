// Package config loads bytefuzz configuration from JSONC files and CLI
// overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/bytefuzz/internal/fs"
	"github.com/calvinalkan/bytefuzz/internal/seed"
	"github.com/calvinalkan/bytefuzz/pkg/mutator"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
)

// FileName is the project config file name.
const FileName = ".bytefuzz.json"

// Config holds all configuration options.
type Config struct {
	MutationPercent  int      `json:"mutation_percent"`
	ExtendInterval   int      `json:"extend_interval"`
	ExtendLength     int      `json:"extend_length"`
	SeedFileSuffixes []string `json:"seed_file_suffixes"`
	LogLevel         string   `json:"log_level"`

	// Resolved (computed, not serialized)
	WorkDir string  `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Overrides holds CLI flag values. Nil fields were not given.
type Overrides struct {
	MutationPercent *int
	ExtendInterval  *int
	ExtendLength    *int
	LogLevel        *string
}

// fileConfig is the on-disk schema. Pointers distinguish an explicit zero
// from an absent key.
type fileConfig struct {
	MutationPercent  *int     `json:"mutation_percent"`
	ExtendInterval   *int     `json:"extend_interval"`
	ExtendLength     *int     `json:"extend_length"`
	SeedFileSuffixes []string `json:"seed_file_suffixes"`
	LogLevel         *string  `json:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	m := mutator.DefaultConfig()

	return Config{
		MutationPercent:  m.MutationPercent,
		ExtendInterval:   m.ExtendInterval,
		ExtendLength:     m.ExtendLength,
		SeedFileSuffixes: []string{seed.DefaultFileSuffix},
		LogLevel:         "warn",
	}
}

// Mutator returns the mutator parameters of c.
func (c Config) Mutator() mutator.Config {
	return mutator.Config{
		MutationPercent: c.MutationPercent,
		ExtendInterval:  c.ExtendInterval,
		ExtendLength:    c.ExtendLength,
	}
}

// Level returns the slog level named by c.LogLevel.
func (c Config) Level() (slog.Level, error) {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a
// slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q (want debug|info|warn|error)", ErrConfigInvalid, name)
	}
}

// Validate checks all fields. Errors wrap [ErrConfigInvalid].
func (c Config) Validate() error {
	err := c.Mutator().Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	if len(c.SeedFileSuffixes) == 0 {
		return fmt.Errorf("%w: seed_file_suffixes cannot be empty", ErrConfigInvalid)
	}

	for _, suffix := range c.SeedFileSuffixes {
		if suffix == "" {
			return fmt.Errorf("%w: seed_file_suffixes cannot contain an empty suffix", ErrConfigInvalid)
		}
	}

	_, err = c.Level()

	return err
}

// GlobalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/bytefuzz/config.json if set, otherwise
// ~/.config/bytefuzz/config.json. Returns empty string if neither
// variable is set.
func GlobalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "bytefuzz", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "bytefuzz", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	FS              fs.FS
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // CLI flag values
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/bytefuzz/config.json or ~/.config/bytefuzz/config.json)
// 3. Project config file (.bytefuzz.json in the working directory, if it exists)
// 4. Explicit config file via ConfigPath (if non-empty, replaces 3)
// 5. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	globalPath := GlobalPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadFile(input.FS, globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(input.FS, projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	cfg = applyOverrides(cfg, input.Overrides)
	cfg.WorkDir = workDir

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile reads and parses path. If mustExist is false, a missing file
// returns (zero, false, nil).
func loadFile(fsys fs.FS, path string, mustExist bool) (fileConfig, bool, error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	if !exists {
		if mustExist {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return fileConfig{}, false, nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	parsed, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return parsed, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	err = dec.Decode(&cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.MutationPercent != nil {
		base.MutationPercent = *overlay.MutationPercent
	}

	if overlay.ExtendInterval != nil {
		base.ExtendInterval = *overlay.ExtendInterval
	}

	if overlay.ExtendLength != nil {
		base.ExtendLength = *overlay.ExtendLength
	}

	if overlay.SeedFileSuffixes != nil {
		base.SeedFileSuffixes = overlay.SeedFileSuffixes
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	return merge(cfg, fileConfig{
		MutationPercent: o.MutationPercent,
		ExtendInterval:  o.ExtendInterval,
		ExtendLength:    o.ExtendLength,
		LogLevel:        o.LogLevel,
	})
}

// Format renders cfg as indented JSON, suitable as a config file.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}
