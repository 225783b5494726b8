package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/output"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
	"github.com/dusk-indust/syntaxkit/internal/watch"
)

type indexReport struct {
	Root    string        `json:"root" yaml:"root"`
	Backend string        `json:"backend" yaml:"backend"`
	Report  *index.Report `json:"report" yaml:"report"`
	Stats   *index.Stats  `json:"stats" yaml:"stats"`
}

func (r indexReport) WriteText(w io.Writer, s *output.Styles) error {
	_, err := fmt.Fprintf(w, "%s (%s): %d indexed, %d unchanged, %d skipped\n%d files, %d elements, %d diagnostics\n",
		s.Path.Sprint(r.Root), r.Backend,
		r.Report.Indexed, r.Report.Unchanged, r.Report.Skipped,
		r.Stats.FileCount, r.Stats.ElementCount, r.Stats.DiagnosticCount)
	return err
}

type searchHits []index.Element

func (h searchHits) WriteText(w io.Writer, s *output.Styles) error {
	if len(h) == 0 {
		_, err := fmt.Fprintln(w, s.Dim.Sprint("no matches"))
		return err
	}
	for _, el := range h {
		_, err := fmt.Fprintf(w, "%s:%d:%d %s %s\n",
			s.Path.Sprint(el.Path), el.Start.Row+1, el.Start.Column+1,
			s.Kind.Sprintf("%-9s", el.Kind), s.Name.Sprint(el.Name))
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) indexCmd() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index the elements and diagnostics of every source file under dir",
		Long: "Index the elements and diagnostics of every source file under dir. " +
			"Files whose content is unchanged since the last run are skipped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject(firstArg(args), flags)
			if err != nil {
				return err
			}
			defer p.Close()

			start := time.Now()
			report, err := p.indexer.IndexDir(cmd.Context())
			if err != nil {
				return fmt.Errorf("indexing: %w", err)
			}
			stats, err := p.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Debug("index complete", "duration", time.Since(start).Round(time.Millisecond))
			return a.emit(indexReport{Root: p.indexer.Root(), Backend: p.backend, Report: report, Stats: stats})
		},
	}
	flags.register(cmd.PersistentFlags())
	cmd.AddCommand(a.searchCmd(&flags))
	return cmd
}

func (a *app) searchCmd(flags *storeFlags) *cobra.Command {
	var (
		dir   string
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed elements by name substring",
		Long:  "Search indexed elements by case-insensitive name substring. The index is brought up to date first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject(dir, *flags)
			if err != nil {
				return err
			}
			defer p.Close()

			if _, err := p.indexer.IndexDir(cmd.Context()); err != nil {
				return fmt.Errorf("indexing: %w", err)
			}
			els, err := p.store.SearchElements(cmd.Context(), args[0], traverse.Kind(kind), limit)
			if err != nil {
				return err
			}
			if els == nil {
				els = []index.Element{}
			}
			return a.emit(searchHits(els))
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "project directory (default: working directory)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only return elements of this kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results (0: unlimited)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the index in sync with files as they change",
		Long: "Watch dir and reparse changed files incrementally. Each change is applied " +
			"as a minimal edit and the index is updated. Runs until interrupted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject(firstArg(args), flags)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			w, err := watch.New(p.engine, p.indexer.Root(),
				watch.WithLogger(a.logger),
				watch.WithIndexer(p.indexer),
				watch.WithDebounce(time.Duration(a.cfg.Watch.DebounceMs)*time.Millisecond),
				watch.WithExclude(append([]string{stateDir}, a.cfg.Watch.Exclude...)...),
				watch.OnEvent(func(ev watch.Event) {
					if err := a.emit(watchEvent(ev)); err != nil {
						a.logger.Warn("write event", "err", err)
					}
				}),
			)
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Fprintf(a.stderr, "watching %s (ctrl-c to stop)\n", p.indexer.Root())
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// watchEvent renders a watch.Event as one line of text.
type watchEvent watch.Event

func (ev watchEvent) WriteText(w io.Writer, s *output.Styles) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Kind.Sprintf("%-8s", ev.Op), s.Path.Sprint(ev.Path))
	if ev.Op != watch.OpRemoved {
		fmt.Fprintf(&b, " v%d", ev.Version)
	}
	if len(ev.Touched) > 0 {
		names := make([]string, 0, len(ev.Touched))
		for _, el := range ev.Touched {
			if el.Name != "" {
				names = append(names, string(el.Kind)+" "+el.Name)
			}
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, " %s", s.Dim.Sprintf("touched: %s", strings.Join(names, ", ")))
		}
	}
	if ev.Conflict {
		fmt.Fprintf(&b, " %s", s.Warning.Sprint("edit broke the syntax"))
	}
	if ev.Diagnostics > 0 {
		fmt.Fprintf(&b, " %s", s.Error.Sprintf("%d problems", ev.Diagnostics))
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// signalContext is the context long-running commands stop on.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
