// Package config resolves cardstore settings from JSONC files and CLI
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDataDirEmpty       = errors.New("data_dir cannot be empty")
	ErrInvalidLogLevel    = errors.New("invalid log_level")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".cardstore.json"

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir     string `json:"data_dir"`
	DBPath      string `json:"db_path,omitempty"`
	StorageDir  string `json:"storage_dir,omitempty"`
	ForeignKeys *bool  `json:"foreign_keys,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`

	// Resolved values (computed, not serialized)
	EffectiveCwd  string       `json:"-"`
	DataDirAbs    string       `json:"-"`
	DBPathAbs     string       `json:"-"`
	StorageDirAbs string       `json:"-"`
	Level         logrus.Level `json:"-"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// Default returns the default configuration.
func Default() Config {
	fk := true

	return Config{
		DataDir:     ".cardstore",
		ForeignKeys: &fk,
		LogLevel:    "warn",
	}
}

// UseForeignKeys reports the effective foreign_keys setting.
func (c Config) UseForeignKeys() bool {
	return c.ForeignKeys == nil || *c.ForeignKeys
}

// globalPath returns $XDG_CONFIG_HOME/cardstore/config.json, falling back to
// ~/.config/cardstore/config.json. Empty when neither variable is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "cardstore", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "cardstore", "config.json")
	}

	return ""
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDirOverride string            // -C/--cwd; os.Getwd() when empty
	ConfigPath      string            // -c/--config
	DataDirOverride string            // --data-dir
	Env             map[string]string // environment variables
}

// Load resolves configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config
//  3. Project config (.cardstore.json in the working directory)
//  4. Explicit config file from ConfigPath
//  5. CLI overrides
//
// Paths in the returned Config are absolute.
func Load(in Input) (Config, error) {
	workDir := in.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(in.Env); path != "" {
		global, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, global)
			cfg.Sources.Global = path
		}
	}

	project, projectPath, err := loadProject(workDir, in.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	if projectPath != "" {
		cfg = merge(cfg, project)
		cfg.Sources.Project = projectPath
	}

	if in.DataDirOverride != "" {
		cfg.DataDir = in.DataDirOverride
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return Config{}, fmt.Errorf("%w %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	cfg.Level = level
	cfg.EffectiveCwd = workDir
	cfg.DataDirAbs = absolute(workDir, cfg.DataDir)

	cfg.DBPathAbs = filepath.Join(cfg.DataDirAbs, "cards.sqlite")
	if cfg.DBPath != "" {
		cfg.DBPathAbs = absolute(workDir, cfg.DBPath)
	}

	cfg.StorageDirAbs = filepath.Join(cfg.DataDirAbs, "storage")
	if cfg.StorageDir != "" {
		cfg.StorageDirAbs = absolute(workDir, cfg.StorageDir)
	}

	return cfg, nil
}

func absolute(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(base, path)
}

// loadProject loads the explicit config file when configPath is set and the
// optional project file otherwise. The returned path is empty when nothing
// was loaded.
func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, FileName)

		cfg, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := absolute(workDir, configPath)

	_, err := os.Stat(path)
	if err != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	cfg, _, err := loadFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile reads and parses one config file. Missing optional files report
// loaded=false without error.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var raw map[string]json.RawMessage

	err = json.Unmarshal(standardized, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// An explicit "" would otherwise be indistinguishable from absent.
	if v, ok := raw["data_dir"]; ok && strings.TrimSpace(string(v)) == `""` {
		return Config{}, ErrDataDirEmpty
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}

	if overlay.StorageDir != "" {
		base.StorageDir = overlay.StorageDir
	}

	if overlay.ForeignKeys != nil {
		base.ForeignKeys = overlay.ForeignKeys
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}
