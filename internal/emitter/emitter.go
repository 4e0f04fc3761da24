// Package emitter provides the output cursor shared by all backends:
// buffered line emission with scoped indentation tracking.
package emitter

import (
	"fmt"
	"strings"
)

// DefaultWrapColumn is the column comment text is wrapped at.
const DefaultWrapColumn = 80

// Emitter accumulates generated text for a single output unit. The
// indentation depth is strictly nested: Indent and IndentBy restore the
// previous depth on every exit path, including early returns from the
// callback.
type Emitter struct {
	buf  strings.Builder
	unit int
	dent int
}

// New returns an emitter indenting by spacesPerIndent per level.
func New(spacesPerIndent int) *Emitter {
	if spacesPerIndent <= 0 {
		spacesPerIndent = 4
	}
	return &Emitter{unit: spacesPerIndent}
}

// Unit returns the number of spaces per indentation level.
func (e *Emitter) Unit() int {
	return e.unit
}

// MakeIndent returns the whitespace prefix for the current depth.
func (e *Emitter) MakeIndent() string {
	return strings.Repeat(" ", e.dent)
}

// Emit writes one line at the current indentation. An empty string
// produces a bare newline with no trailing whitespace.
func (e *Emitter) Emit(line string) {
	if line == "" {
		e.buf.WriteByte('\n')
		return
	}
	e.buf.WriteString(e.MakeIndent())
	e.buf.WriteString(line)
	e.buf.WriteByte('\n')
}

// Emitf formats and writes one line at the current indentation.
func (e *Emitter) Emitf(format string, v ...interface{}) {
	e.Emit(fmt.Sprintf(format, v...))
}

// EmitRaw writes text verbatim, without indentation or a trailing
// newline.
func (e *Emitter) EmitRaw(text string) {
	e.buf.WriteString(text)
}

// BlankLine writes an empty line.
func (e *Emitter) BlankLine() {
	e.buf.WriteByte('\n')
}

// Indent runs fn one indentation level deeper.
func (e *Emitter) Indent(fn func()) {
	e.IndentBy(e.unit, fn)
}

// IndentBy runs fn with the indentation deepened by dent spaces.
func (e *Emitter) IndentBy(dent int, fn func()) {
	e.dent += dent
	defer func() {
		e.dent -= dent
	}()
	fn()
}

// Block emits header followed by " {", runs fn one level deeper, then
// closes the brace.
func (e *Emitter) Block(header string, fn func()) {
	e.Emit(header + " {")
	e.Indent(fn)
	e.Emit("}")
}

// EmitWrapped writes text wrapped at DefaultWrapColumn, prefixing every
// emitted line. Existing newlines in text force breaks.
func (e *Emitter) EmitWrapped(text, prefix string) {
	width := DefaultWrapColumn - e.dent - len(prefix)
	if width < 20 {
		width = 20
	}
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			e.Emit(strings.TrimRight(prefix, " "))
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				e.Emit(prefix + line)
				line = w
				continue
			}
			line += " " + w
		}
		e.Emit(prefix + line)
	}
}

// Len returns the number of bytes emitted so far.
func (e *Emitter) Len() int {
	return e.buf.Len()
}

// String returns the accumulated output.
func (e *Emitter) String() string {
	return e.buf.String()
}

// Bytes returns the accumulated output as a byte slice.
func (e *Emitter) Bytes() []byte {
	return []byte(e.buf.String())
}
