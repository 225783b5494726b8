// Package cache persists analyses on disk, keyed by the hash of the language
// and source they were computed from.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/lang"
)

// Schema is bumped whenever the payload layout or the analysis it stores
// changes shape.
const Schema uint16 = 1

// Digest identifies one cached analysis.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

type payload struct {
	Schema   uint16           `msgpack:"schema"`
	Language lang.Language    `msgpack:"language"`
	Analysis *engine.Analysis `msgpack:"analysis"`
}

// DiskCache stores one msgpack file per analysis. It implements
// engine.Cache and is safe for concurrent use.
type DiskCache struct {
	mu     sync.RWMutex
	dir    string
	salt   string
	logger *slog.Logger
}

// Open returns a cache rooted at dir, creating it if needed. salt is mixed
// into every key; callers pass something that changes when the pattern
// catalog does, so stale analyses are never served.
func Open(dir, salt string, logger *slog.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir, salt: salt, logger: logger}, nil
}

// DefaultDir returns $XDG_CACHE_HOME/syntaxkit, falling back to ~/.cache.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "syntaxkit"), nil
}

// Key returns the digest for language and source.
func (c *DiskCache) Key(language lang.Language, source []byte) Digest {
	h := sha256.New()
	h.Write([]byte(c.salt))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write(source)
	var d Digest
	h.Sum(d[:0])
	return d
}

func (c *DiskCache) pathFor(d Digest) string {
	s := d.String()
	return filepath.Join(c.dir, "analyses", s[:2], s+".mp")
}

// Get returns the cached analysis, decoded afresh on every call. Unreadable
// or outdated entries count as misses.
func (c *DiskCache) Get(language lang.Language, source []byte) (*engine.Analysis, bool) {
	a, ok, err := c.load(c.Key(language, source), language)
	if err != nil {
		c.logger.Warn("cache read failed", "language", language, "err", err)
		return nil, false
	}
	return a, ok
}

func (c *DiskCache) load(key Digest, language lang.Language) (*engine.Analysis, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var p payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return nil, false, err
	}
	if p.Schema != Schema || p.Language != language || p.Analysis == nil {
		return nil, false, nil
	}
	return p.Analysis, true, nil
}

// Put writes a. The file is replaced atomically.
func (c *DiskCache) Put(language lang.Language, source []byte, a *engine.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(c.Key(language, source))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&payload{Schema: Schema, Language: language, Analysis: a}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Clear removes every cached analysis.
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "analyses"))
}

var _ engine.Cache = (*DiskCache)(nil)
