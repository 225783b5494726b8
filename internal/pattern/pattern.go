package pattern

import (
	"regexp"
	"slices"
	"strings"

	"github.com/dusk-indust/syntaxkit/internal/lang"
)

// Construct keys shared by the built-in sets.
const (
	KeyFunction          = "function"
	KeyMethod            = "method"
	KeyClass             = "class"
	KeyInterface         = "interface"
	KeyStruct            = "struct"
	KeyNamespace         = "namespace"
	KeyImport            = "import"
	KeyVariable          = "variable"
	KeyField             = "field"
	KeyControlFlow       = "control_flow"
	KeyComment           = "comment"
	KeyStringStatement   = "string_statement"
	KeyModuleDocstring   = "module_docstring"
	KeyClassDocstring    = "class_docstring"
	KeyFunctionDocstring = "function_docstring"
	KeyError             = "error"
)

// DocstringKeys are the positions a documentation string may occupy.
var DocstringKeys = []string{KeyModuleDocstring, KeyClassDocstring, KeyFunctionDocstring}

// Pattern is a named query template. Generic templates may contain
// {placeholder} fields that are filled per language; Overrides replaces the
// whole template for specific languages.
type Pattern struct {
	Key       string                   `yaml:"key" toml:"key" json:"key"`
	Template  string                   `yaml:"template" toml:"template" json:"template"`
	Captures  []string                 `yaml:"captures,omitempty" toml:"captures,omitempty" json:"captures,omitempty"`
	Primary   string                   `yaml:"primary,omitempty" toml:"primary,omitempty" json:"primary,omitempty"`
	Overrides map[lang.Language]string `yaml:"overrides,omitempty" toml:"overrides,omitempty" json:"overrides,omitempty"`
}

var (
	placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)
	captureRe     = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_.\-]*)`)
)

// Placeholders returns the placeholder names used by the template, sorted.
func (p Pattern) Placeholders() []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Template, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	slices.Sort(out)
	return out
}

// PrimaryCapture names the capture that spans the whole construct: Primary
// when set, otherwise the first declared capture.
func (p Pattern) PrimaryCapture() string {
	if p.Primary != "" {
		return p.Primary
	}
	if len(p.Captures) > 0 {
		return p.Captures[0]
	}
	return ""
}

// resolve specializes p for id. It returns false when the template needs a
// placeholder the language does not define.
func (p Pattern) resolve(id lang.Language, fill map[string]string) (Pattern, bool) {
	out := p
	out.Overrides = nil
	if tpl, ok := p.Overrides[id]; ok {
		out.Template = tpl
	} else {
		missing := false
		out.Template = placeholderRe.ReplaceAllStringFunc(p.Template, func(m string) string {
			v, ok := fill[m[1:len(m)-1]]
			if !ok || v == "" {
				missing = true
			}
			return v
		})
		if missing || strings.TrimSpace(out.Template) == "" {
			return Pattern{}, false
		}
	}
	if len(out.Captures) == 0 {
		out.Captures = declaredCaptures(out.Template)
	}
	return out, true
}

// declaredCaptures lists capture names in order of first appearance.
func declaredCaptures(template string) []string {
	var out []string
	for _, m := range captureRe.FindAllStringSubmatch(template, -1) {
		name := strings.TrimRight(m[1], ".")
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
