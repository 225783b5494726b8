package pattern

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/query"
)

// ErrUnknownPattern is returned when a key has no pattern for a language.
var ErrUnknownPattern = errors.New("unknown pattern")

// CompileError reports a catalog pattern the grammar rejected. Err is the
// underlying *query.CompileError.
type CompileError struct {
	Language lang.Language
	Key      string
	Template string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern %q for %s: %v", e.Key, e.Language, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

type cacheKey struct {
	language lang.Language
	key      string
}

type entry struct {
	once sync.Once
	c    *query.Compiled
	err  error
}

// Catalog holds the query templates for every registered language and the
// compiled forms built from them. Its pattern tables are fixed at New; the
// compile cache only ever grows.
type Catalog struct {
	reg          *lang.Registry
	common       []Pattern
	specific     map[lang.Language][]Pattern
	placeholders map[lang.Language]map[string]string
	limits       map[string]Limits

	mu    sync.Mutex
	cache map[cacheKey]*entry
}

// New builds a catalog from the built-in patterns and any extra packs, applied
// in order. A pack pattern replaces a built-in one with the same key.
func New(reg *lang.Registry, packs ...Pack) *Catalog {
	c := &Catalog{
		reg:          reg,
		common:       slices.Clone(commonPatterns),
		specific:     make(map[lang.Language][]Pattern, len(languagePatterns)),
		placeholders: make(map[lang.Language]map[string]string, len(placeholders)),
		limits:       maps.Clone(defaultLimits),
		cache:        make(map[cacheKey]*entry),
	}
	for id, set := range languagePatterns {
		c.specific[id] = slices.Clone(set)
	}
	for id, fill := range placeholders {
		c.placeholders[id] = maps.Clone(fill)
	}
	for _, p := range packs {
		c.apply(p)
	}
	return c
}

func (c *Catalog) apply(p Pack) {
	for _, pat := range p.Common {
		c.common = upsert(c.common, pat)
	}
	for id, set := range p.Languages {
		for _, pat := range set {
			c.specific[id] = upsert(c.specific[id], pat)
		}
	}
	for id, fill := range p.Placeholders {
		if c.placeholders[id] == nil {
			c.placeholders[id] = make(map[string]string, len(fill))
		}
		maps.Copy(c.placeholders[id], fill)
	}
	for key, l := range p.Limits {
		c.limits[key] = c.limits[key].merge(l)
	}
}

func upsert(set []Pattern, p Pattern) []Pattern {
	if i := slices.IndexFunc(set, func(q Pattern) bool { return q.Key == p.Key }); i >= 0 {
		set[i] = p
		return set
	}
	return append(set, p)
}

// Patterns returns the patterns available for h: the common set in its
// declared order with language definitions replacing common ones of the same
// key, followed by the keys only the language defines. Common patterns the
// language cannot fill are left out.
func (c *Catalog) Patterns(h *lang.Handle) []Pattern {
	id := h.ID()
	specific := c.specific[id]
	fill := c.placeholders[id]

	out := make([]Pattern, 0, len(c.common)+len(specific))
	seen := make(map[string]bool, len(c.common)+len(specific))
	for _, p := range c.common {
		seen[p.Key] = true
		if i := slices.IndexFunc(specific, func(q Pattern) bool { return q.Key == p.Key }); i >= 0 {
			if r, ok := specific[i].resolve(id, fill); ok {
				out = append(out, r)
			}
			continue
		}
		if r, ok := p.resolve(id, fill); ok {
			out = append(out, r)
		}
	}
	for _, p := range specific {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		if r, ok := p.resolve(id, fill); ok {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the resolved pattern for key.
func (c *Catalog) Lookup(h *lang.Handle, key string) (Pattern, bool) {
	for _, p := range c.Patterns(h) {
		if p.Key == key {
			return p, true
		}
	}
	return Pattern{}, false
}

// Has reports whether key is available for h.
func (c *Catalog) Has(h *lang.Handle, key string) bool {
	_, ok := c.Lookup(h, key)
	return ok
}

// Compile returns the compiled query for key on h. The outcome, success or
// failure, is computed once and reused for the life of the catalog.
func (c *Catalog) Compile(h *lang.Handle, key string) (*query.Compiled, error) {
	ck := cacheKey{language: h.ID(), key: key}

	c.mu.Lock()
	e, ok := c.cache[ck]
	if !ok {
		e = &entry{}
		c.cache[ck] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		p, ok := c.Lookup(h, key)
		if !ok {
			e.err = fmt.Errorf("%w: %q for %s", ErrUnknownPattern, key, h.ID())
			return
		}
		compiled, err := query.Compile(h, key, p.Template)
		if err != nil {
			e.err = &CompileError{Language: h.ID(), Key: key, Template: p.Template, Err: err}
			return
		}
		e.c = compiled
	})
	return e.c, e.err
}

// Settings returns the default run options for key.
func (c *Catalog) Settings(key string) query.Options {
	return c.limits[key].Options()
}

// Limits returns the bounds behind Settings.
func (c *Catalog) Limits(key string) Limits {
	return c.limits[key]
}

// Registry returns the registry the catalog resolves languages with.
func (c *Catalog) Registry() *lang.Registry { return c.reg }
