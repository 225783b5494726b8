// Package output encodes command results for the CLI.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format selects how results are written.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgPack Format = "msgpack"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatMsgPack}

// ErrNoTextForm is returned by Encode when a value has no text rendering.
var ErrNoTextForm = errors.New("value has no text form")

// Texter is implemented by values with a human-readable rendering.
type Texter interface {
	WriteText(w io.Writer, s *Styles) error
}

// ParseFormat resolves a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	case FormatJSON, FormatYAML, FormatMsgPack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, yaml or msgpack)", s)
	}
}

// Encode writes v to w in format f. Text output requires v to implement
// Texter; s may be nil for plain text.
func Encode(w io.Writer, f Format, v any, s *Styles) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgPack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)
		return enc.Encode(v)
	case FormatText, "":
		t, ok := v.(Texter)
		if !ok {
			return fmt.Errorf("%w: %T", ErrNoTextForm, v)
		}
		if s == nil {
			s = NewStyles(false)
		}
		return t.WriteText(w, s)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
