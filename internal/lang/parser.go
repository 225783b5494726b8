package lang

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrParse is returned when the grammar fails to produce a tree at all.
// Malformed input still yields a tree with ERROR nodes; this error only
// covers the case where tree-sitter gives up entirely.
var ErrParse = errors.New("grammar parse error")

// Parser parses source text with one grammar. It holds no document state:
// each Parse call borrows an idle tree-sitter parser and returns it when
// done, so a Parser is safe for concurrent use.
type Parser struct {
	handle *Handle
	idle   chan *tree_sitter.Parser
}

func newParser(h *Handle) *Parser {
	return &Parser{
		handle: h,
		idle:   make(chan *tree_sitter.Parser, runtime.GOMAXPROCS(0)),
	}
}

// Handle returns the grammar this parser is bound to.
func (p *Parser) Handle() *Handle { return p.handle }

// Parse parses source, optionally reusing unchanged subtrees of old. old must
// already have been edited to match source. When logger is non-nil the
// grammar's parse and lex events are forwarded to it at debug level.
func (p *Parser) Parse(source []byte, old *tree_sitter.Tree, logger *slog.Logger) (*tree_sitter.Tree, error) {
	tsp, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer p.release(tsp)

	if logger != nil {
		tsp.SetLogger(func(kind tree_sitter.LogType, msg string) {
			logger.Debug("tree-sitter", "language", p.handle.id, "type", logTypeName(kind), "msg", msg)
		})
		defer tsp.SetLogger(nil)
	}

	tree := tsp.Parse(source, old)
	if tree == nil {
		return nil, fmt.Errorf("%w: %s returned no tree", ErrParse, p.handle.id)
	}
	return tree, nil
}

func (p *Parser) acquire() (*tree_sitter.Parser, error) {
	select {
	case tsp := <-p.idle:
		return tsp, nil
	default:
	}
	tsp := tree_sitter.NewParser()
	if err := tsp.SetLanguage(p.handle.grammar); err != nil {
		tsp.Close()
		return nil, fmt.Errorf("set language %s: %w", p.handle.id, err)
	}
	return tsp, nil
}

func (p *Parser) release(tsp *tree_sitter.Parser) {
	tsp.Reset()
	select {
	case p.idle <- tsp:
	default:
		tsp.Close()
	}
}

func (p *Parser) drain() {
	for {
		select {
		case tsp := <-p.idle:
			tsp.Close()
		default:
			return
		}
	}
}

func logTypeName(t tree_sitter.LogType) string {
	if t == tree_sitter.LogTypeLex {
		return "lex"
	}
	return "parse"
}
