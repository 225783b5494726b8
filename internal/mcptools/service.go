package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/syntaxkit/internal/edit"
	"github.com/dusk-indust/syntaxkit/internal/engine"
	"github.com/dusk-indust/syntaxkit/internal/index"
	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// defaultSearchLimit caps search_elements results when no limit is given.
const defaultSearchLimit = 20

// ErrNoIndex is returned by the index tools when the service has no indexer.
var ErrNoIndex = errors.New("no project index configured")

// Service holds the engine and the open documents used by MCP tool handlers.
type Service struct {
	engine  *engine.Engine
	indexer *index.Indexer

	mu   sync.Mutex
	docs map[string]*session
}

// session serializes the tool calls on one document. An edit supersedes and
// closes the previous tree, so no other call may still be reading it.
type session struct {
	mu  sync.Mutex
	doc *syntax.Document
}

// NewService creates a Service. ix may be nil, which disables the index tools.
func NewService(e *engine.Engine, ix *index.Indexer) *Service {
	return &Service{engine: e, indexer: ix, docs: make(map[string]*session)}
}

// Close releases every open document.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.docs {
		sess.mu.Lock()
		sess.doc.Close()
		sess.mu.Unlock()
		delete(s.docs, id)
	}
}

func (s *Service) parse(ctx context.Context, source, language string) (*syntax.Tree, error) {
	if language == "" {
		return nil, fmt.Errorf("language is required")
	}
	return s.engine.Parse(ctx, []byte(source), language)
}

// ParseSource parses a snippet and summarizes its tree.
func (s *Service) ParseSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseSourceInput,
) (*mcp.CallToolResult, ParseSourceOutput, error) {
	tree, err := s.parse(ctx, input.Source, input.Language)
	if err != nil {
		return nil, ParseSourceOutput{}, err
	}
	defer tree.Close()

	out := ParseSourceOutput{
		Language: string(tree.Language().ID()),
		RootKind: tree.Root().Kind,
		Span:     tree.Span(),
		HasError: tree.HasError(),
		Nodes:    len(tree.Snapshot().Nodes),
	}
	if input.Tree {
		var sb strings.Builder
		if err := traverse.Visualize(tree, &sb, traverse.VisualizeOptions{MaxDepth: input.MaxDepth}); err != nil {
			return nil, ParseSourceOutput{}, err
		}
		out.Tree = sb.String()
	}
	return nil, out, nil
}

// RunQuery runs a catalog pattern or an ad hoc template over a snippet.
func (s *Service) RunQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunQueryInput,
) (*mcp.CallToolResult, RunQueryOutput, error) {
	if input.Pattern == "" && input.Template == "" {
		return nil, RunQueryOutput{}, fmt.Errorf("one of pattern or template is required")
	}
	tree, err := s.parse(ctx, input.Source, input.Language)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	defer tree.Close()

	opts := query.Options{
		MaxStartDepth: input.MaxStartDepth,
		TimeoutMicros: input.TimeoutMicros,
	}
	if input.MatchLimit > 0 {
		opts.MatchLimit = &input.MatchLimit
	}
	if input.StartByte != nil || input.EndByte != nil {
		r := tree.Span()
		if input.StartByte != nil {
			r.Start = *input.StartByte
		}
		if input.EndByte != nil {
			r.End = *input.EndByte
		}
		opts.ByteRange = &r
	}
	if input.Captures {
		opts.Mode = query.ModeCaptures
	}

	var res query.Result
	if input.Pattern != "" {
		res, err = s.engine.Query(ctx, tree, input.Pattern, opts)
	} else {
		res, err = s.engine.QueryTemplate(ctx, tree, input.Template, opts)
	}
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	if res.Matches == nil {
		res.Matches = []query.Match{}
	}
	return nil, RunQueryOutput{
		Matches:            res.Matches,
		Partial:            res.Partial,
		MatchLimitExceeded: res.MatchLimitExceeded,
		TimedOut:           res.TimedOut,
	}, nil
}

// ExtractElements lists the code elements of a snippet.
func (s *Service) ExtractElements(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExtractElementsInput,
) (*mcp.CallToolResult, ExtractElementsOutput, error) {
	tree, err := s.parse(ctx, input.Source, input.Language)
	if err != nil {
		return nil, ExtractElementsOutput{}, err
	}
	defer tree.Close()

	a := s.engine.AnalyzeTree("", tree)
	out := ExtractElementsOutput{Elements: []traverse.CodeElement{}, Truncated: a.Truncated}
	for _, el := range a.Elements {
		if input.Kind == "" || string(el.Kind) == input.Kind {
			out.Elements = append(out.Elements, el)
		}
	}
	return nil, out, nil
}

// DiagnoseSource reports the syntax problems of a snippet.
func (s *Service) DiagnoseSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiagnoseSourceInput,
) (*mcp.CallToolResult, DiagnoseSourceOutput, error) {
	tree, err := s.parse(ctx, input.Source, input.Language)
	if err != nil {
		return nil, DiagnoseSourceOutput{}, err
	}
	defer tree.Close()

	diags := s.engine.Diagnose(tree)
	if diags == nil {
		diags = []traverse.Diagnostic{}
	}
	return nil, DiagnoseSourceOutput{Valid: len(diags) == 0, Diagnostics: diags}, nil
}

// FindPhantomComments returns string statements that are not docstrings.
func (s *Service) FindPhantomComments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindPhantomCommentsInput,
) (*mcp.CallToolResult, FindPhantomCommentsOutput, error) {
	tree, err := s.parse(ctx, input.Source, input.Language)
	if err != nil {
		return nil, FindPhantomCommentsOutput{}, err
	}
	defer tree.Close()

	spans, err := s.engine.PhantomComments(tree)
	if err != nil {
		return nil, FindPhantomCommentsOutput{}, err
	}
	out := FindPhantomCommentsOutput{Comments: make([]PhantomComment, 0, len(spans))}
	src := tree.Source()
	for _, r := range spans {
		out.Comments = append(out.Comments, PhantomComment{Span: r, Text: string(src[r.Start:r.End])})
	}
	return nil, out, nil
}

// OpenDocument parses a snippet into a document that apply_edit can change.
func (s *Service) OpenDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input OpenDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	if input.Language == "" {
		return nil, DocumentOutput{}, fmt.Errorf("language is required")
	}
	doc, err := s.engine.Open(ctx, input.Path, []byte(input.Source), input.Language)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	s.mu.Lock()
	s.docs[doc.ID()] = &session{doc: doc}
	s.mu.Unlock()
	return nil, DocumentOutput{
		DocumentID: doc.ID(),
		Version:    doc.Version(),
		Language:   string(doc.Language().ID()),
	}, nil
}

// acquire returns the session for id with its lock held. A session closed
// while waiting for the lock is reported as unknown.
func (s *Service) acquire(id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown document %q", id)
	}
	sess.mu.Lock()
	if sess.doc.Tree() == nil {
		sess.mu.Unlock()
		return nil, fmt.Errorf("unknown document %q", id)
	}
	return sess, nil
}

// ApplyEdit replaces a byte range of an open document. An edit that breaks
// the syntax is discarded unless force is set.
func (s *Service) ApplyEdit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ApplyEditInput,
) (*mcp.CallToolResult, ApplyEditOutput, error) {
	sess, err := s.acquire(input.DocumentID)
	if err != nil {
		return nil, ApplyEditOutput{}, err
	}
	defer sess.mu.Unlock()
	doc := sess.doc

	var spec edit.Spec
	err = doc.Read(func(buf []byte, _ *syntax.Tree) error {
		var err error
		spec, err = edit.SpecFromBytes(buf, input.StartByte, input.OldEndByte, []byte(input.NewText))
		return err
	})
	if err != nil {
		return nil, ApplyEditOutput{}, err
	}

	old := doc.Tree()
	res, err := s.engine.ApplyEdit(ctx, doc, spec)
	var conflict *edit.Conflict
	if errors.As(err, &conflict) {
		info := &ConflictInfo{Before: conflict.Before, After: conflict.After, Problems: conflict.Problems}
		if !input.Force {
			if err := conflict.Discard(); err != nil {
				return nil, ApplyEditOutput{}, err
			}
			return nil, ApplyEditOutput{Version: doc.Version(), Conflict: info}, nil
		}
		res, err = conflict.Commit()
		if err != nil {
			return nil, ApplyEditOutput{}, err
		}
		defer old.Close()
		return nil, s.applied(doc, old, res, info), nil
	}
	if err != nil {
		return nil, ApplyEditOutput{}, err
	}
	defer old.Close()
	return nil, s.applied(doc, old, res, nil), nil
}

func (s *Service) applied(doc *syntax.Document, old *syntax.Tree, res *edit.Result, conflict *ConflictInfo) ApplyEditOutput {
	out := ApplyEditOutput{
		Applied:  true,
		Version:  doc.Version(),
		Changed:  s.engine.ChangedRanges(old, res.Tree),
		Conflict: conflict,
	}
	a := s.engine.AnalyzeTree(doc.Path(), res.Tree)
	for _, el := range engine.ElementsIn(a, out.Changed) {
		if el.Name != "" {
			out.Touched = append(out.Touched, fmt.Sprintf("%s %s", el.Kind, el.Name))
		}
	}
	return out
}

// CloseDocument releases an open document.
func (s *Service) CloseDocument(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CloseDocumentInput,
) (*mcp.CallToolResult, CloseDocumentOutput, error) {
	s.mu.Lock()
	sess, ok := s.docs[input.DocumentID]
	delete(s.docs, input.DocumentID)
	s.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.doc.Close()
		sess.mu.Unlock()
	}
	return nil, CloseDocumentOutput{Closed: ok}, nil
}

// IndexProject brings the project index up to date.
func (s *Service) IndexProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IndexProjectInput,
) (*mcp.CallToolResult, IndexProjectOutput, error) {
	if s.indexer == nil {
		return nil, IndexProjectOutput{}, ErrNoIndex
	}
	report, err := s.indexer.IndexDir(ctx)
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}
	stats, err := s.indexer.Store().Stats(ctx)
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}
	return nil, IndexProjectOutput{Report: *report, Stats: *stats}, nil
}

// SearchElements searches the project index by element name.
func (s *Service) SearchElements(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchElementsInput,
) (*mcp.CallToolResult, SearchElementsOutput, error) {
	if s.indexer == nil {
		return nil, SearchElementsOutput{}, ErrNoIndex
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	els, err := s.indexer.Store().SearchElements(ctx, input.Query, traverse.Kind(input.Kind), limit)
	if err != nil {
		return nil, SearchElementsOutput{}, err
	}
	if els == nil {
		els = []index.Element{}
	}
	return nil, SearchElementsOutput{Elements: els, Total: len(els)}, nil
}
