// Package config loads project-level settings from syntaxkit.yml,
// syntaxkit.yaml or syntaxkit.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/pattern"
)

// FileNames are tried in order by Load.
var FileNames = []string{"syntaxkit.yml", "syntaxkit.yaml", "syntaxkit.toml"}

// Index backends.
const (
	BackendMemory = index.BackendMemory
	BackendKuzu   = index.BackendKuzu
	BackendSQLite = index.BackendSQLite
)

// IndexConfig selects where analyses are persisted.
type IndexConfig struct {
	Backend string `yaml:"backend,omitempty" toml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	DebounceMs int      `yaml:"debounceMs,omitempty" toml:"debounce_ms,omitempty"`
	Exclude    []string `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
}

// ProjectConfig holds project-level settings.
type ProjectConfig struct {
	Languages     []string                  `yaml:"languages,omitempty" toml:"languages,omitempty"`
	PatternFiles  []string                  `yaml:"patternFiles,omitempty" toml:"pattern_files,omitempty"`
	EditTolerance int                       `yaml:"editTolerance,omitempty" toml:"edit_tolerance,omitempty"`
	Concurrency   int                       `yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
	Limits        map[string]pattern.Limits `yaml:"limits,omitempty" toml:"limits,omitempty"`
	Index         IndexConfig               `yaml:"index,omitempty" toml:"index,omitempty"`
	CacheDir      string                    `yaml:"cacheDir,omitempty" toml:"cache_dir,omitempty"`
	Watch         WatchConfig               `yaml:"watch,omitempty" toml:"watch,omitempty"`
	Verbose       bool                      `yaml:"verbose,omitempty" toml:"verbose,omitempty"`

	// dir is the directory the file was found in; relative paths resolve
	// against it.
	dir string
}

// Load attempts to read a config file from dir. Returns a zero-value config
// (not an error) if no config file exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		cfg, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return &ProjectConfig{dir: dir}, nil
}

// LoadFile reads one config file; the format follows the extension.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := ProjectConfig{dir: filepath.Dir(path)}
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported format", path)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *ProjectConfig) validate() error {
	switch c.Index.Backend {
	case "", BackendMemory, BackendKuzu, BackendSQLite:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	if c.EditTolerance < 0 {
		return fmt.Errorf("editTolerance must not be negative")
	}
	return nil
}

// Resolve returns path relative to the config file's directory.
func (c *ProjectConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// EngineOptions converts the config into engine options, loading pattern
// files on the way.
func (c *ProjectConfig) EngineOptions(logger *slog.Logger) ([]engine.Option, error) {
	paths := make([]string, len(c.PatternFiles))
	for i, p := range c.PatternFiles {
		paths[i] = c.Resolve(p)
	}
	packs, err := pattern.LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	if len(c.Limits) > 0 {
		packs = append(packs, pattern.Pack{Limits: c.Limits})
	}

	opts := []engine.Option{
		engine.WithPatternPacks(packs...),
		engine.WithEditTolerance(c.EditTolerance),
		engine.WithConcurrency(c.Concurrency),
	}
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	return opts, nil
}

// IncludesLanguage reports whether files of language id should be
// processed. An empty language list includes everything.
func (c *ProjectConfig) IncludesLanguage(id string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	return slices.Contains(c.Languages, id)
}
