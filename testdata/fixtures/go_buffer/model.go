package buffer

// Span marks a half-open byte range.
type Span struct {
	Start, End int
}

// Buffer holds editable text and the spans marked in it.
type Buffer struct {
	text  []byte
	marks []Span
}

// Store persists buffers by name.
type Store interface {
	Load(name string) (*Buffer, error)
	Save(name string, b *Buffer) error
}

func newBuffer(text string) *Buffer {
	return &Buffer{text: []byte(text)}
}
