package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/syntaxkit/internal/cache"
	"github.com/dusk-indust/syntaxkit/internal/config"
	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/output"
)

// version is set by goreleaser at build time.
var version = "dev"

// errProblems makes the process exit non-zero after a report that found
// syntax problems. The report itself has already been written.
var errProblems = errors.New("syntax problems found")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errProblems) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries the persistent flags and what setup derives from them.
type app struct {
	configPath string
	formatFlag string
	verbose    bool
	noColor    bool
	noCache    bool

	stdout io.Writer
	stderr io.Writer
	format output.Format
	cfg    *config.ProjectConfig
	logger *slog.Logger
	styles *output.Styles
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "syntaxkit",
		Short:         "Tree-sitter syntax analysis for Go, Python, Rust, TypeScript, JavaScript and Java",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: syntaxkit.yml, .yaml or .toml in the working directory)")
	pf.StringVarP(&a.formatFlag, "format", "f", "text", "output format: text|json|yaml|msgpack")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored text output")
	pf.BoolVar(&a.noCache, "no-cache", false, "bypass the analysis cache")

	root.AddCommand(
		a.parseCmd(),
		a.treeCmd(),
		a.elementsCmd(),
		a.diagnoseCmd(),
		a.queryCmd(),
		a.phantomsCmd(),
		a.languagesCmd(),
		a.indexCmd(),
		a.watchCmd(),
		a.serveMCPCmd(),
		a.initCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) setup() error {
	f, err := output.ParseFormat(a.formatFlag)
	if err != nil {
		return err
	}
	a.format = f

	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			a.cfg, err = config.Load(wd)
		}
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if a.verbose || a.cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	colored := !a.noColor && !color.NoColor && a.stdout == io.Writer(os.Stdout)
	a.styles = output.NewStyles(colored)
	return nil
}

// newEngine builds an engine from the loaded config. The disk cache is
// best effort: when it cannot be opened analysis runs uncached.
func (a *app) newEngine() (*engine.Engine, error) {
	opts, err := a.cfg.EngineOptions(a.logger)
	if err != nil {
		return nil, err
	}
	if !a.noCache {
		c, err := a.openCache()
		if err != nil {
			a.logger.Warn("analysis cache disabled", "err", err)
		} else {
			opts = append(opts, engine.WithCache(c))
		}
	}
	return engine.New(opts...)
}

func (a *app) openCache() (*cache.DiskCache, error) {
	dir := a.cfg.Resolve(a.cfg.CacheDir)
	if dir == "" {
		var err error
		if dir, err = cache.DefaultDir(); err != nil {
			return nil, err
		}
	}
	salt, err := a.cacheSalt()
	if err != nil {
		return nil, err
	}
	return cache.Open(dir, salt, a.logger)
}

// cacheSalt changes whenever the binary or the patterns it extracts with do,
// so analyses computed under another catalog are never served.
func (a *app) cacheSalt() (string, error) {
	var b strings.Builder
	b.WriteString(version)
	for _, p := range a.cfg.PatternFiles {
		data, err := os.ReadFile(a.cfg.Resolve(p))
		if err != nil {
			return "", err
		}
		b.WriteByte(0)
		b.Write(data)
	}
	fmt.Fprintf(&b, "\x00%v", a.cfg.Limits)
	return b.String(), nil
}

// emit writes v in the selected format.
func (a *app) emit(v any) error {
	return output.Encode(a.stdout, a.format, v, a.styles)
}

// readSource loads a file, or stdin for "-". The language comes from the
// flag when set and from the file extension otherwise.
func readSource(stdin io.Reader, path, language string) ([]byte, string, error) {
	if language == "" {
		if path == "-" {
			return nil, "", errors.New("--language is required when reading stdin")
		}
		id, ok := lang.ForPath(path)
		if !ok {
			return nil, "", fmt.Errorf("%s: %w (set --language)", path, lang.ErrUnsupportedLanguage)
		}
		language = string(id)
	}

	var (
		src []byte
		err error
	)
	if path == "-" {
		src, err = io.ReadAll(stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", err
	}
	return src, language, nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.stdout, version)
			return err
		},
	}
}
