package report

import (
	"bytes"
	"testing"
)

func TestLocation(t *testing.T) {
	src := []byte("ab\ncde\n\nf")
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{5, 2, 3},
		{7, 3, 1},
		{8, 4, 1},
		{99, 4, 2},
		{-1, 1, 1},
	}
	for _, tt := range tests {
		line, col := Location(src, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("Location(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		start, end int
		want       string
	}{
		{
			name:  "second line",
			src:   "let x = 1;\nlet y = x / 0;\n",
			start: 19, end: 24,
			want: "main.rill:2:9: Division by zero.\n" +
				"   2 | let y = x / 0;\n" +
				"     |         ^^^^^\n",
		},
		{
			name:  "empty range at end",
			src:   "1 +",
			start: 3, end: 3,
			want: "main.rill:1:4: Division by zero.\n" +
				"   1 | 1 +\n" +
				"     |    ^\n",
		},
		{
			name:  "range spans lines",
			src:   "{\r\n1\n}",
			start: 0, end: 6,
			want: "main.rill:1:1: Division by zero.\n" +
				"   1 | {\n" +
				"     | ^^\n",
		},
		{
			name:  "tabs kept",
			src:   "\tfoo",
			start: 1, end: 4,
			want: "main.rill:1:2: Division by zero.\n" +
				"   1 | \tfoo\n" +
				"     | \t^^^\n",
		},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := Render(&buf, "main.rill", []byte(tt.src), "Division by zero.", tt.start, tt.end); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := buf.String(); got != tt.want {
			t.Errorf("%s:\ngot:\n%s\nwant:\n%s", tt.name, got, tt.want)
		}
	}
}
