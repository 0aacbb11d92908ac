// Package writer accumulates generated source one line at a time while
// tracking the indentation depth the target language needs.
package writer

import (
	"errors"
	"fmt"
	"strings"
)

// IndentUnit is the text written once per indentation level.
const IndentUnit = "    "

// ErrUnbalanced is returned by Source when indentation was not paired.
var ErrUnbalanced = errors.New("unbalanced indentation")

// Writer is an append-only, indentation-aware line buffer.
type Writer struct {
	lines []string
	depth int
	// err records the first outdent below zero.
	err error
}

// New creates an empty writer at depth zero.
func New() *Writer {
	return &Writer{}
}

// Write appends line at the current indentation. Empty lines carry no indent.
func (w *Writer) Write(line string) {
	if line == "" {
		w.lines = append(w.lines, "\n")
		return
	}
	w.lines = append(w.lines, strings.Repeat(IndentUnit, w.depth)+line+"\n")
}

// Writef formats and appends a line.
func (w *Writer) Writef(format string, args ...interface{}) {
	w.Write(fmt.Sprintf(format, args...))
}

// Indent increases the nesting depth by one.
func (w *Writer) Indent() {
	w.depth++
}

// Outdent decreases the nesting depth by one. Going below zero clamps and is
// reported by Source.
func (w *Writer) Outdent() {
	if w.depth == 0 {
		if w.err == nil {
			w.err = fmt.Errorf("%w: outdent below zero after line %d", ErrUnbalanced, len(w.lines))
		}
		return
	}
	w.depth--
}

// Depth returns the current nesting depth.
func (w *Writer) Depth() int {
	return w.depth
}

// Len returns the number of lines written so far.
func (w *Writer) Len() int {
	return len(w.lines)
}

// Source returns the buffered lines in order. It fails when the indentation
// was not strictly paired.
func (w *Writer) Source() (string, error) {
	if w.err != nil {
		return "", w.err
	}
	if w.depth != 0 {
		return "", fmt.Errorf("%w: depth %d at end of source", ErrUnbalanced, w.depth)
	}
	return strings.Join(w.lines, ""), nil
}
