package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with every syntax tool registered. The
// index tools are only registered when svc has an indexer.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "syntaxkit",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_source",
		Description: "Parse source code with tree-sitter. Returns the root node kind, whether the tree has errors, and optionally an indented rendering of the syntax tree.",
	}, svc.ParseSource)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_query",
		Description: "Run a catalog pattern (function, class, import, ...) or an ad hoc tree-sitter query over source code. Results are partial when a match limit or timeout is hit.",
	}, svc.RunQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_elements",
		Description: "List the functions, methods, classes, variables, imports and docstrings of source code in document order, with their documentation and modifiers.",
	}, svc.ExtractElements)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diagnose_source",
		Description: "Report syntax errors and missing tokens with a human-readable reason for each.",
	}, svc.DiagnoseSource)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_phantom_comments",
		Description: "Find string literal statements that are not docstrings (strings used as comments).",
	}, svc.FindPhantomComments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "open_document",
		Description: "Parse source code into an editable document. Returns a document id for apply_edit.",
	}, svc.OpenDocument)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_edit",
		Description: "Replace a byte range of an open document and reparse incrementally. Edits that introduce syntax errors are rejected unless force is set.",
	}, svc.ApplyEdit)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "close_document",
		Description: "Release a document opened with open_document.",
	}, svc.CloseDocument)

	if svc.indexer != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "index_project",
			Description: "Index the project directory: extract elements and diagnostics of every changed source file.",
		}, svc.IndexProject)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "search_elements",
			Description: "Search indexed code elements by name substring. Optionally filter by kind and limit results.",
		}, svc.SearchElements)
	}

	return server
}

// RunHTTP serves server over streamable HTTP on addr until ctx is done.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunStdio serves server on stdin/stdout, blocking until stdin is closed or
// the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
