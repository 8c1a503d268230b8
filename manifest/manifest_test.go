package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = "app.rill"

[vm]
stack = 1024
trace = true

[cache]
enabled = true
path = "build/chunks.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Source.Entry != "app.rill" {
		t.Errorf("source entry = %q, want app.rill", m.Source.Entry)
	}
	if m.VM.Stack != 1024 || !m.VM.Trace {
		t.Errorf("vm = %+v, want stack 1024 with trace", m.VM)
	}
	if !m.Cache.Enabled {
		t.Error("cache enabled = false, want true")
	}
	if want := filepath.Join(m.Dir, "build", "chunks.db"); m.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", m.CachePath(), want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "." {
		t.Errorf("default source dirs = %v, want [.]", m.Source.Dirs)
	}
	if m.Source.Entry != "main.rill" {
		t.Errorf("default entry = %q, want main.rill", m.Source.Entry)
	}
	if m.VM.Stack != 0 || m.Cache.Enabled {
		t.Errorf("vm = %+v, cache = %+v; want zero values", m.VM, m.Cache)
	}
	if want := filepath.Join(m.Dir, ".rill", "cache.db"); m.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", m.CachePath(), want)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"type", "[vm]\nstack = \"big\""},
		{"negative stack", "[vm]\nstack = -1"},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		writeManifest(t, dir, tt.content)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no rill.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"src", "lib"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/app/lib" {
		t.Errorf("paths[1] = %q, want /app/lib", paths[1])
	}
}

func TestEntryPathSearchesSourceDirs(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"src", "lib"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	entry := filepath.Join(dir, "lib", "main.rill")
	if err := os.WriteFile(entry, []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{Dir: dir, Source: Source{Dirs: []string{"src", "lib"}, Entry: "main.rill"}}
	got, err := m.EntryPath()
	if err != nil {
		t.Fatalf("EntryPath: %v", err)
	}
	if got != entry {
		t.Errorf("EntryPath() = %q, want %q", got, entry)
	}

	m.Source.Entry = "missing.rill"
	if _, err := m.EntryPath(); err == nil {
		t.Error("expected error for missing entry")
	}
}
