package escpos

import "bytes"

// Alignment of subsequent text lines.
type Alignment int

const (
	Left Alignment = iota
	Center
	Right
)

// Size of subsequent text.
type Size int

const (
	Normal Size = iota
	Double
)

// Builder accumulates printable text and control sequences into a byte buffer.
// The zero value is ready to use.
type Builder struct {
	buf bytes.Buffer
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Op appends the sequence for a symbolic operation.
func (b *Builder) Op(op Op) *Builder {
	b.buf.Write(commands[op])
	return b
}

// Init resets the printer to its power-on state.
func (b *Builder) Init() *Builder {
	return b.Op(OpInit)
}

// Align sets the justification of the following lines.
func (b *Builder) Align(a Alignment) *Builder {
	switch a {
	case Center:
		return b.Op(OpAlignCenter)
	case Right:
		return b.Op(OpAlignRight)
	default:
		return b.Op(OpAlignLeft)
	}
}

// Bold toggles emphasized mode.
func (b *Builder) Bold(on bool) *Builder {
	if on {
		return b.Op(OpBoldOn)
	}
	return b.Op(OpBoldOff)
}

// Size selects normal or double-height characters.
func (b *Builder) Size(s Size) *Builder {
	if s == Double {
		return b.Op(OpSizeDouble)
	}
	return b.Op(OpSizeNormal)
}

// Cut cuts the paper.
func (b *Builder) Cut() *Builder {
	return b.Op(OpCut)
}

// Feed appends n line feeds.
func (b *Builder) Feed(n int) *Builder {
	for i := 0; i < n; i++ {
		b.Op(OpLineFeed)
	}
	return b
}

// Text appends s without a trailing line feed.
func (b *Builder) Text(s string) *Builder {
	b.buf.WriteString(s)
	return b
}

// Line appends s followed by a line feed.
func (b *Builder) Line(s string) *Builder {
	return b.Text(s).Feed(1)
}

// Len returns the number of bytes accumulated so far.
func (b *Builder) Len() int {
	return b.buf.Len()
}

// Bytes returns a copy of the accumulated payload.
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}
