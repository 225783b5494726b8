package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/dusk-indust/syntaxkit/internal/config"
	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/index"
)

// stateDir holds persistent index databases inside the project.
const stateDir = ".syntaxkit"

// storeFlags override the index section of the config.
type storeFlags struct {
	backend string
	db      string
}

func (f *storeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.backend, "backend", "", "index backend: memory|kuzu|sqlite (default: from config, else memory)")
	fs.StringVar(&f.db, "db", "", "index database path (default: .syntaxkit/index.<backend> under the project root)")
}

// project is an engine plus an indexer over one directory.
type project struct {
	engine  *engine.Engine
	store   index.Store
	indexer *index.Indexer
	backend string
}

func (p *project) Close() error {
	return errors.Join(p.store.Close(), p.engine.Close())
}

// openProject builds the engine, opens the configured store and returns an
// indexer rooted at dir.
func (a *app) openProject(dir string, flags storeFlags) (*project, error) {
	root, err := resolveTargetDir(dir)
	if err != nil {
		return nil, err
	}

	backend := flags.backend
	if backend == "" {
		backend = a.cfg.Index.Backend
	}
	if backend == "" {
		backend = config.BackendMemory
	}
	path := flags.db
	if path == "" {
		path = a.cfg.Resolve(a.cfg.Index.Path)
	}
	if path == "" && backend != config.BackendMemory {
		path = filepath.Join(root, stateDir, "index."+backend)
	}

	e, err := a.newEngine()
	if err != nil {
		return nil, err
	}
	store, err := index.Open(backend, path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open %s index: %w", backend, err)
	}
	a.logger.Debug("index opened", "backend", backend, "path", path, "root", root)

	ix, err := index.NewIndexer(e, store, root,
		index.WithLogger(a.logger),
		index.WithExclude(append([]string{stateDir}, a.cfg.Watch.Exclude...)...),
		index.WithLanguages(a.cfg.Languages...),
	)
	if err != nil {
		store.Close()
		e.Close()
		return nil, err
	}
	return &project{engine: e, store: store, indexer: ix, backend: backend}, nil
}

// resolveTargetDir returns the absolute path of dir, which must exist and be
// a directory. Empty means the working directory.
func resolveTargetDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
