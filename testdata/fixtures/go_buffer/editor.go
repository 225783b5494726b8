package buffer

import (
	"errors"
	"fmt"
)

var errOutOfRange = errors.New("span out of range")

// Editor applies replacements to stored buffers.
type Editor struct {
	store Store
}

// NewEditor returns an Editor backed by store.
func NewEditor(store Store) *Editor { return &Editor{store: store} }

// Open creates an empty buffer under name.
func (e *Editor) Open(name string) (*Buffer, error) {
	b := newBuffer("")
	if err := e.store.Save(name, b); err != nil {
		return nil, fmt.Errorf("open buffer %s: %w", name, err)
	}
	return b, nil
}

// Replace swaps the bytes of span in the named buffer for text.
func (e *Editor) Replace(name string, span Span, text string) error {
	b, err := e.store.Load(name)
	if err != nil {
		return fmt.Errorf("load buffer %s: %w", name, err)
	}
	if span.Start < 0 || span.End > len(b.text) || span.Start > span.End {
		return errOutOfRange
	}
	tail := append([]byte(text), b.text[span.End:]...)
	b.text = append(b.text[:span.Start], tail...)
	return e.store.Save(name, b)
}
