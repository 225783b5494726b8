package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/syntaxkit/internal/config"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/mcptools"
)

func (a *app) serveMCPCmd() *cobra.Command {
	var (
		flags   storeFlags
		addr    string
		root    string
		noIndex bool
	)
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Run as an MCP server",
		Long: "Run as an MCP server on stdio, or over streamable HTTP with --http. " +
			"The index tools work on --root unless --no-index is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openProject(root, flags)
			if err != nil {
				return err
			}
			defer p.Close()

			var ix *index.Indexer
			if !noIndex {
				ix = p.indexer
			}
			svc := mcptools.NewService(p.engine, ix)
			defer svc.Close()
			server := mcptools.NewServer(svc)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if addr != "" {
				a.logger.Info("serving MCP over HTTP", "addr", addr)
				return mcptools.RunHTTP(ctx, server, addr)
			}
			return mcptools.RunStdio(ctx, server)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address instead of stdio, e.g. :8080")
	cmd.Flags().StringVar(&root, "root", "", "project directory for the index tools (default: working directory)")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "do not register the index tools")
	return cmd
}

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// mcpEntry is the MCP server configuration for the syntaxkit binary.
var mcpEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "syntaxkit",
  "args": ["serve-mcp"]
}`)

// starterConfig is written by init when the project has no config file.
const starterConfig = `# syntaxkit project settings
languages: []        # empty: every supported language
patternFiles: []     # extra pattern packs (yaml or toml)
editTolerance: 0     # syntax problems an edit may add before it conflicts
index:
  backend: sqlite    # memory, kuzu or sqlite
  path: .syntaxkit/index.sqlite
watch:
  debounceMs: 100
  exclude: [dist, build]
`

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter syntaxkit.yml and register the MCP server in .mcp.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveTargetDir(firstArg(args))
			if err != nil {
				return err
			}
			if err := a.writeStarterConfig(root, force); err != nil {
				return err
			}
			return a.mergeMCPConfig(filepath.Join(root, ".mcp.json"), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files and entries")
	return cmd
}

func (a *app) writeStarterConfig(root string, force bool) error {
	if !force {
		for _, name := range config.FileNames {
			if _, err := os.Stat(filepath.Join(root, name)); err == nil {
				fmt.Fprintf(a.stdout, "  skipped %s (exists, use --force to overwrite)\n", name)
				return nil
			}
		}
	}
	path := filepath.Join(root, "syntaxkit.yml")
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "  created syntaxkit.yml\n")
	return nil
}

// mergeMCPConfig creates or merges the syntaxkit entry into .mcp.json.
func (a *app) mergeMCPConfig(mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["syntaxkit"]; exists && !force {
		fmt.Fprintf(a.stdout, "  skipped .mcp.json syntaxkit entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["syntaxkit"] = mcpEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(a.stdout, "  %s .mcp.json with syntaxkit MCP server\n", action)
	return nil
}
