package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/rill/stdlib"
	"github.com/chazu/rill/store"
	"github.com/chazu/rill/vm"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.rill")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunFile(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		code    int
		out     string
		errPart string
	}{
		{
			name: "prints",
			src:  "fn add(a, b) { a + b }\nprint(add(3, 4));\n",
			out:  "7\n",
		},
		{
			name:    "compile fault",
			src:     "let x = ;\n",
			code:    1,
			errPart: "main.rill:1:9: Unexpected token.\n   1 | let x = ;\n",
		},
		{
			name:    "run fault inside function",
			src:     "fn f(a) { a / 0 }\nf(1);\n",
			code:    1,
			errPart: "main.rill:1:13: Division by zero.",
		},
		{
			name:    "native fault",
			src:     "pop([]);",
			code:    1,
			errPart: "main.rill:1:4: Unable to pop from an empty list.",
		},
	}
	for _, tt := range tests {
		path := writeScript(t, tt.src)
		var out, errOut bytes.Buffer
		code := runFile(path, options{}, &out, &errOut)
		if code != tt.code {
			t.Errorf("%s: exit code = %d, want %d (stderr %q)", tt.name, code, tt.code, errOut.String())
		}
		if got := out.String(); got != tt.out {
			t.Errorf("%s: stdout = %q, want %q", tt.name, got, tt.out)
		}
		if !strings.Contains(errOut.String(), tt.errPart) {
			t.Errorf("%s: stderr = %q, want it to contain %q", tt.name, errOut.String(), tt.errPart)
		}
	}
}

func TestRunFileMissing(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := runFile(filepath.Join(t.TempDir(), "nope.rill"), options{}, &out, &errOut); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunFileDisasm(t *testing.T) {
	path := writeScript(t, "fn one() { 1 }\none();")
	var out, errOut bytes.Buffer
	if code := runFile(path, options{disasm: true}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, errOut.String())
	}
	listing := out.String()
	for _, want := range []string{"fn one argc=0", "CALL", "RET"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestRunFileUsesCache(t *testing.T) {
	src := "print(6 * 7);"
	path := writeScript(t, src)
	cachePath := filepath.Join(t.TempDir(), "cache", "chunks.db")
	opts := options{cache: cachePath}

	for i := 0; i < 2; i++ {
		var out, errOut bytes.Buffer
		if code := runFile(path, opts, &out, &errOut); code != 0 {
			t.Fatalf("run %d: exit code = %d, stderr %q", i, code, errOut.String())
		}
		if out.String() != "42\n" {
			t.Errorf("run %d: stdout = %q, want %q", i, out.String(), "42\n")
		}
	}

	natives := vm.NewNatives()
	stdlib.Register(natives, io.Discard)
	cache, err := store.OpenCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	if _, err := cache.Get(store.Key([]byte(src), natives)); err != nil {
		t.Errorf("chunk not cached: %v", err)
	}
}

func TestREPL(t *testing.T) {
	input := strings.Join([]string{
		"let x = 2;",
		"x * 21",
		"fn f(",
		"a) { a }",
		"f(5)",
		"1 / 0",
		"missing + 1",
		"x",
		"1 +",
		"",
		"[x, f(1)]",
	}, "\n") + "\n"

	var out, errOut bytes.Buffer
	if err := runREPL(strings.NewReader(input), &out, &errOut, options{}, false); err != nil {
		t.Fatalf("runREPL: %v", err)
	}

	if got, want := out.String(), "42\n5\n2\n[2, 1]\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	for _, want := range []string{
		"<repl>:1:3: Division by zero.",
		"<repl>:1:1: Unknown identifier \"missing\".",
		"Unexpected end.",
	} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("stderr = %q, want it to contain %q", errOut.String(), want)
		}
	}
}

func TestREPLCommands(t *testing.T) {
	input := "let a = 1;\n:globals\n:bogus\n:quit\n99\n"
	var out, errOut bytes.Buffer
	if err := runREPL(strings.NewReader(input), &out, &errOut, options{}, false); err != nil {
		t.Fatalf("runREPL: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "a = 1\n") {
		t.Errorf("stdout = %q, want the global listed", got)
	}
	if !strings.Contains(got, "Unknown command: :bogus") {
		t.Errorf("stdout = %q, want unknown command notice", got)
	}
	if strings.Contains(got, "99") {
		t.Errorf("stdout = %q, input after :quit was evaluated", got)
	}
}

func TestREPLPrompts(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := runREPL(strings.NewReader("fn g(\n) { 1 }\n"), &out, &errOut, options{}, true); err != nil {
		t.Fatalf("runREPL: %v", err)
	}
	if got := out.String(); !strings.Contains(got, ">> .. >> ") {
		t.Errorf("stdout = %q, want primary then continuation prompt", got)
	}
}

func TestREPLEchoesCyclicList(t *testing.T) {
	input := "let c = [];\nlet d = [c];\nc + d;\nc\nprint(d);\n"
	var out, errOut bytes.Buffer
	if err := runREPL(strings.NewReader(input), &out, &errOut, options{}, false); err != nil {
		t.Fatalf("runREPL: %v", err)
	}
	if got, want := out.String(), "[[[...]]]\n[[[...]]]\n"; got != want {
		t.Errorf("stdout = %q, want %q (stderr %q)", got, want, errOut.String())
	}
}
