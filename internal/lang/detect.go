package lang

import (
	"path/filepath"
	"slices"
	"strings"
)

// extToLanguage maps file extensions to registered languages.
var extToLanguage = map[string]Language{
	".go":   Go,
	".py":   Python,
	".pyi":  Python,
	".rs":   Rust,
	".ts":   TypeScript,
	".mts":  TypeScript,
	".cts":  TypeScript,
	".tsx":  TSX,
	".js":   JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".jsx":  JavaScript,
	".java": Java,
}

// ForPath guesses the language of a file from its extension.
func ForPath(path string) (Language, bool) {
	l, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Extensions returns the file extensions ForPath maps to id, sorted.
func Extensions(id Language) []string {
	var out []string
	for ext, l := range extToLanguage {
		if l == id {
			out = append(out, ext)
		}
	}
	slices.Sort(out)
	return out
}
