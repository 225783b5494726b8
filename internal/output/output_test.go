package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/syntaxkit/internal/query"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

func sampleElements() []traverse.CodeElement {
	return []traverse.CodeElement{
		{Kind: traverse.KindClass, Name: "Point", Span: syntax.ByteRange{Start: 0, End: 50}},
		{Kind: traverse.KindMethod, Name: "norm", Span: syntax.ByteRange{Start: 10, End: 40},
			Start: syntax.Point{Row: 1, Column: 4}, Modifiers: []string{"static"}},
		{Kind: traverse.KindDocstring, Span: syntax.ByteRange{Start: 20, End: 30}, Documentation: "Length.\nMore."},
		{Kind: traverse.KindFunction, Name: "main", Span: syntax.ByteRange{Start: 52, End: 70}, Start: syntax.Point{Row: 5}},
	}
}

// ---------------------------------------------------------------------------
// Formats
// ---------------------------------------------------------------------------

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"msgpack", FormatMsgPack, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_StructuredFormats(t *testing.T) {
	v := Elements{Path: "a.py", Elements: sampleElements()[:1]}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FormatJSON, v, nil))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "a.py", got["path"])
		assert.Contains(t, buf.String(), "\n  \"elements\"")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FormatYAML, v, nil))
		var got Elements
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, v.Elements[0].Name, got.Elements[0].Name)
	})

	t.Run("msgpack", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FormatMsgPack, v, nil))
		var got map[string]any
		require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "a.py", got["path"])
	})
}

func TestEncode_TextNeedsTexter(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, FormatText, map[string]int{"a": 1}, nil)
	assert.ErrorIs(t, err, ErrNoTextForm)

	require.NoError(t, Encode(&buf, FormatText, Lines{"go", "python"}, nil))
	assert.Equal(t, "go\npython\n", buf.String())
}

// ---------------------------------------------------------------------------
// Text renderers
// ---------------------------------------------------------------------------

func TestRenderDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	diags := []traverse.Diagnostic{
		{Severity: traverse.SeverityError, Reason: "missing )", Construct: "call", Start: syntax.Point{Row: 2, Column: 7}},
		{Severity: traverse.SeverityWarning, Reason: "stray token", Start: syntax.Point{Row: 0, Column: 0}},
	}
	require.NoError(t, RenderDiagnostics(&buf, NewStyles(false), "a.py", diags))
	assert.Equal(t, "a.py:3:8: error: missing ) (in call)\na.py:1:1: warning: stray token\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderDiagnostics(&buf, NewStyles(false), "a.py", nil))
	assert.Equal(t, "a.py: no syntax problems\n", buf.String())
}

func TestRenderDiagnostics_Colored(t *testing.T) {
	var buf bytes.Buffer
	diags := []traverse.Diagnostic{{Severity: traverse.SeverityError, Reason: "bad"}}
	require.NoError(t, RenderDiagnostics(&buf, NewStyles(true), "a.py", diags))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestRenderElements(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderElements(&buf, NewStyles(false), "a.py", sampleElements()))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "a.py", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  class     Point"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "    method    norm 2:5 [static]"), lines[2])
	assert.Contains(t, lines[3], `"Length."`)
	assert.True(t, strings.HasPrefix(lines[3], "      docstring"), lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "  function  main"), lines[4])
}

func TestRenderMatches(t *testing.T) {
	src := []byte("def add(a, b):\n    return a + b\n")
	res := query.Result{
		Matches: []query.Match{{
			PatternIndex: 0,
			Captures: map[string][]syntax.NodeRef{
				"name": {{Kind: "identifier", StartByte: 4, EndByte: 7, StartPoint: syntax.Point{Column: 4}, EndPoint: syntax.Point{Column: 7}}},
			},
		}},
		Partial:            true,
		MatchLimitExceeded: true,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatText, Matches{Path: "a.py", Source: src, Result: res}, nil))
	out := buf.String()
	assert.Contains(t, out, "a.py: 1 matches")
	assert.Contains(t, out, "@name identifier 0:4-0:7 add")
	assert.Contains(t, out, "partial result: match limit exceeded")
}

func TestWriteMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMermaid(&buf, "a.py", sampleElements()))
	assert.Equal(t, `graph TD
  %% a.py
  subgraph N0["class: Point"]
    N1["method: norm"]
  end
  N2["function: main"]
`, buf.String())
}
