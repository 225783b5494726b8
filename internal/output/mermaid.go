package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// containers are the element kinds rendered as subgraphs.
var containers = map[traverse.Kind]bool{
	traverse.KindClass:     true,
	traverse.KindStruct:    true,
	traverse.KindInterface: true,
	traverse.KindNamespace: true,
}

// WriteMermaid produces a Mermaid graph TD diagram of the element outline.
// Container elements become subgraphs holding the elements they enclose.
// Docstrings and comments are left out.
func WriteMermaid(w io.Writer, path string, els []traverse.CodeElement) error {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  %%%% %s\n", path)

	type frame struct {
		span   syntax.ByteRange
		indent string
	}
	var open []frame
	indent := func() string {
		if len(open) == 0 {
			return "  "
		}
		return open[len(open)-1].indent + "  "
	}

	next := 0
	for _, el := range els {
		if el.Kind == traverse.KindDocstring || el.Kind == traverse.KindComment {
			continue
		}
		for len(open) > 0 && !open[len(open)-1].span.Contains(el.Span) {
			open = open[:len(open)-1]
			fmt.Fprintf(&sb, "%send\n", indent())
		}
		id := fmt.Sprintf("N%d", next)
		next++
		label := mermaidLabel(el)
		if containers[el.Kind] {
			fmt.Fprintf(&sb, "%ssubgraph %s[\"%s\"]\n", indent(), id, label)
			open = append(open, frame{span: el.Span, indent: indent()})
			continue
		}
		fmt.Fprintf(&sb, "%s%s[\"%s\"]\n", indent(), id, label)
	}
	for len(open) > 0 {
		open = open[:len(open)-1]
		fmt.Fprintf(&sb, "%send\n", indent())
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func mermaidLabel(el traverse.CodeElement) string {
	name := el.Name
	if name == "" {
		name = "anonymous"
	}
	name = strings.NewReplacer(`"`, "#quot;", "\n", " ").Replace(name)
	return fmt.Sprintf("%s: %.40s", el.Kind, name)
}
