// Package report renders faults against the source they refer to.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// Location converts a byte offset into a 1-based line and column. Offsets
// past the end of src are clamped to it.
func Location(src []byte, offset int) (line, col int) {
	offset = clamp(offset, 0, len(src))
	line = 1 + bytes.Count(src[:offset], []byte{'\n'})
	col = offset - lineStart(src, offset) + 1
	return line, col
}

// Render writes a diagnostic for the byte range [start, end) of src:
//
//	name:line:col: message
//	   3 | let y = x / 0;
//	     |         ^^^^^
//
// The underline stops at the end of the first line of the range and is at
// least one caret wide. Styling is applied only when w is a terminal.
func Render(w io.Writer, name string, src []byte, message string, start, end int) error {
	out := termenv.NewOutput(w)
	start = clamp(start, 0, len(src))
	end = clamp(end, start, len(src))

	line, col := Location(src, start)
	from := lineStart(src, start)
	to := lineEnd(src, start)
	text := strings.TrimRight(string(src[from:to]), "\r")

	width := min(end, to) - start
	if width < 1 {
		width = 1
	}

	header := fmt.Sprintf("%s:%d:%d: %s", name, line, col, message)
	carets := strings.Repeat("^", width)

	var b strings.Builder
	fmt.Fprintln(&b, out.String(header).Bold())
	fmt.Fprintf(&b, "%4d | %s\n", line, text)
	fmt.Fprintf(&b, "     | %s%s\n", padding(src[from:start]), out.String(carets).Foreground(out.Color("1")))
	_, err := io.WriteString(w, b.String())
	return err
}

// padding blanks out prefix while keeping tabs, so the caret lines up
// under tab-indented source.
func padding(prefix []byte) string {
	pad := make([]byte, len(prefix))
	for i, ch := range prefix {
		if ch == '\t' {
			pad[i] = '\t'
		} else {
			pad[i] = ' '
		}
	}
	return string(pad)
}

func lineStart(src []byte, offset int) int {
	return bytes.LastIndexByte(src[:offset], '\n') + 1
}

func lineEnd(src []byte, offset int) int {
	if i := bytes.IndexByte(src[offset:], '\n'); i >= 0 {
		return offset + i
	}
	return len(src)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
