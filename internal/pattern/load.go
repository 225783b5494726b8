package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/syntaxkit/internal/lang"
)

// Pack is a set of extra patterns supplied as data. Patterns in a pack
// replace built-in patterns with the same key.
type Pack struct {
	Common       []Pattern                           `yaml:"common,omitempty" toml:"common,omitempty"`
	Languages    map[lang.Language][]Pattern         `yaml:"languages,omitempty" toml:"languages,omitempty"`
	Placeholders map[lang.Language]map[string]string `yaml:"placeholders,omitempty" toml:"placeholders,omitempty"`
	Limits       map[string]Limits                   `yaml:"limits,omitempty" toml:"limits,omitempty"`
}

// LoadFile reads a pack from a .yml, .yaml or .toml file.
func LoadFile(path string) (Pack, error) {
	var p Pack
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Pack{}, fmt.Errorf("reading pattern pack: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Pack{}, fmt.Errorf("parsing pattern pack %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, &p); err != nil {
			return Pack{}, fmt.Errorf("parsing pattern pack %s: %w", path, err)
		}
	default:
		return Pack{}, fmt.Errorf("pattern pack %s: unsupported extension", path)
	}
	if err := p.validate(); err != nil {
		return Pack{}, fmt.Errorf("pattern pack %s: %w", path, err)
	}
	return p, nil
}

// LoadFiles reads every pack in order.
func LoadFiles(paths ...string) ([]Pack, error) {
	packs := make([]Pack, 0, len(paths))
	for _, path := range paths {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}

func (p Pack) validate() error {
	check := func(pat Pattern) error {
		if pat.Key == "" {
			return fmt.Errorf("pattern without key")
		}
		if strings.TrimSpace(pat.Template) == "" && len(pat.Overrides) == 0 {
			return fmt.Errorf("pattern %q has no template", pat.Key)
		}
		return nil
	}
	for _, pat := range p.Common {
		if err := check(pat); err != nil {
			return err
		}
	}
	for _, set := range p.Languages {
		for _, pat := range set {
			if err := check(pat); err != nil {
				return err
			}
		}
	}
	return nil
}
