package mcptools

import (
	"github.com/dusk-indust/syntaxkit/internal/edit"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// ParseSourceInput is the input for the parse_source MCP tool.
type ParseSourceInput struct {
	Source   string `json:"source" jsonschema:"the source code to analyze"`
	Language string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
	Tree     bool   `json:"tree,omitempty" jsonschema:"include an indented rendering of the syntax tree"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"limit the tree rendering to this depth (0: unlimited)"`
}

// ParseSourceOutput is the result of the parse_source MCP tool.
type ParseSourceOutput struct {
	Language string           `json:"language"`
	RootKind string           `json:"rootKind"`
	Span     syntax.ByteRange `json:"span"`
	HasError bool             `json:"hasError"`
	Nodes    int              `json:"nodes"`
	Tree     string           `json:"tree,omitempty"`
}

// RunQueryInput is the input for the run_query MCP tool.
type RunQueryInput struct {
	Source        string `json:"source" jsonschema:"the source code to analyze"`
	Language      string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
	Pattern       string `json:"pattern,omitempty" jsonschema:"catalog pattern key, e.g. function, class, import"`
	Template      string `json:"template,omitempty" jsonschema:"ad hoc tree-sitter query; used when pattern is empty"`
	MatchLimit    uint   `json:"matchLimit,omitempty" jsonschema:"cap on in-progress matches (0: catalog default)"`
	MaxStartDepth *uint  `json:"maxStartDepth,omitempty" jsonschema:"how deep below the root a match may start"`
	TimeoutMicros uint64 `json:"timeoutMicros,omitempty" jsonschema:"stop after this many microseconds"`
	StartByte     *uint  `json:"startByte,omitempty" jsonschema:"restrict matching to nodes intersecting [startByte, endByte)"`
	EndByte       *uint  `json:"endByte,omitempty"`
	Captures      bool   `json:"captures,omitempty" jsonschema:"return one entry per capture instead of per match"`
}

// RunQueryOutput is the result of the run_query MCP tool.
type RunQueryOutput struct {
	Matches            []query.Match `json:"matches"`
	Partial            bool          `json:"partial,omitempty"`
	MatchLimitExceeded bool          `json:"matchLimitExceeded,omitempty"`
	TimedOut           bool          `json:"timedOut,omitempty"`
}

// ExtractElementsInput is the input for the extract_elements MCP tool.
type ExtractElementsInput struct {
	Source   string `json:"source" jsonschema:"the source code to analyze"`
	Language string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
	Kind     string `json:"kind,omitempty" jsonschema:"only return elements of this kind"`
}

// ExtractElementsOutput is the result of the extract_elements MCP tool.
type ExtractElementsOutput struct {
	Elements  []traverse.CodeElement `json:"elements"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// DiagnoseSourceInput is the input for the diagnose_source MCP tool.
type DiagnoseSourceInput struct {
	Source   string `json:"source" jsonschema:"the source code to analyze"`
	Language string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
}

// DiagnoseSourceOutput is the result of the diagnose_source MCP tool.
type DiagnoseSourceOutput struct {
	Valid       bool                  `json:"valid"`
	Diagnostics []traverse.Diagnostic `json:"diagnostics"`
}

// FindPhantomCommentsInput is the input for the find_phantom_comments MCP tool.
type FindPhantomCommentsInput struct {
	Source   string `json:"source" jsonschema:"the source code to analyze"`
	Language string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
}

// PhantomComment is a string literal statement that is not a docstring.
type PhantomComment struct {
	Span syntax.ByteRange `json:"span"`
	Text string           `json:"text"`
}

// FindPhantomCommentsOutput is the result of the find_phantom_comments MCP tool.
type FindPhantomCommentsOutput struct {
	Comments []PhantomComment `json:"comments"`
}

// OpenDocumentInput is the input for the open_document MCP tool.
type OpenDocumentInput struct {
	Source   string `json:"source" jsonschema:"the source code to analyze"`
	Language string `json:"language" jsonschema:"language id: go, python, rust, typescript, tsx, javascript, java"`
	Path     string `json:"path,omitempty" jsonschema:"optional path recorded with the document"`
}

// DocumentOutput describes an open document.
type DocumentOutput struct {
	DocumentID string `json:"documentId"`
	Version    uint64 `json:"version"`
	Language   string `json:"language"`
}

// ApplyEditInput is the input for the apply_edit MCP tool.
type ApplyEditInput struct {
	DocumentID string `json:"documentId" jsonschema:"id returned by open_document"`
	StartByte  uint   `json:"startByte" jsonschema:"first byte replaced"`
	OldEndByte uint   `json:"oldEndByte" jsonschema:"end of the replaced bytes (exclusive)"`
	NewText    string `json:"newText" jsonschema:"replacement text"`
	// Force commits an edit even when it introduces syntax problems.
	Force bool `json:"force,omitempty" jsonschema:"commit even if the edit introduces syntax errors"`
}

// ApplyEditOutput is the result of the apply_edit MCP tool.
type ApplyEditOutput struct {
	Applied  bool               `json:"applied"`
	Version  uint64             `json:"version"`
	Changed  []syntax.ByteRange `json:"changed,omitempty"`
	Conflict *ConflictInfo      `json:"conflict,omitempty"`
	Touched  []string           `json:"touched,omitempty"`
}

// ConflictInfo reports an edit that broke the syntax.
type ConflictInfo struct {
	Before   int            `json:"before"`
	After    int            `json:"after"`
	Problems []edit.Problem `json:"problems"`
}

// CloseDocumentInput is the input for the close_document MCP tool.
type CloseDocumentInput struct {
	DocumentID string `json:"documentId"`
}

// CloseDocumentOutput is the result of the close_document MCP tool.
type CloseDocumentOutput struct {
	Closed bool `json:"closed"`
}

// IndexProjectInput is the input for the index_project MCP tool.
type IndexProjectInput struct{}

// IndexProjectOutput is the result of the index_project MCP tool.
type IndexProjectOutput struct {
	Report index.Report `json:"report"`
	Stats  index.Stats  `json:"stats"`
}

// SearchElementsInput is the input for the search_elements MCP tool.
type SearchElementsInput struct {
	Query string `json:"query" jsonschema:"substring of the element name (case-insensitive)"`
	Kind  string `json:"kind,omitempty" jsonschema:"filter by kind: function, method, class, interface, struct, variable, import"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// SearchElementsOutput is the result of the search_elements MCP tool.
type SearchElementsOutput struct {
	Elements []index.Element `json:"elements"`
	Total    int             `json:"total"`
}
