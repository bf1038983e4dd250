package dynamic

import "bytes"

// indentBuffer is shared by the text and JSON printers. A negative indent
// means compact output.
type indentBuffer struct {
	bytes.Buffer
	indent int
	unit   string
	comma  bool
}

func newIndentBuffer(unit string, comma bool) *indentBuffer {
	b := &indentBuffer{unit: unit, comma: comma}
	if unit == "" {
		b.indent = -1
	}
	return b
}

func (b *indentBuffer) pretty() bool {
	return b.indent >= 0
}

// start opens a nested block. It returns a mark that end can use to
// undo the opening if the block turns out to be empty.
func (b *indentBuffer) start() int {
	mark := b.Len()
	if b.indent >= 0 {
		b.indent++
		b.newLine(false)
	}
	return mark
}

// end closes a nested block. If nothing was written since start, the
// opening newline is removed so that empty blocks print as "{}".
func (b *indentBuffer) end(mark int, empty bool) {
	if b.indent < 0 {
		return
	}
	b.indent--
	if empty {
		b.Truncate(mark)
		return
	}
	b.newLine(false)
}

func (b *indentBuffer) sep() {
	if b.indent >= 0 {
		b.WriteString(": ")
	} else {
		b.WriteByte(':')
	}
}

func (b *indentBuffer) maybeNext(first *bool) {
	if *first {
		*first = false
		return
	}
	b.next()
}

func (b *indentBuffer) next() {
	if b.indent >= 0 {
		b.newLine(b.comma)
	} else if b.comma {
		b.WriteByte(',')
	} else {
		b.WriteByte(' ')
	}
}

func (b *indentBuffer) newLine(comma bool) {
	if comma {
		b.WriteByte(',')
	}
	b.WriteByte('\n')
	b.WriteString(b.prefix())
}

// prefix returns the indentation for the current nesting level.
func (b *indentBuffer) prefix() string {
	if b.indent <= 0 {
		return ""
	}
	return string(bytes.Repeat([]byte(b.unit), b.indent))
}
