// Package manifest handles rill.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in project directories.
const FileName = "rill.toml"

// Manifest represents a rill.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	VM      VMConfig    `toml:"vm"`
	Cache   CacheConfig `toml:"cache"`

	// Dir is the directory containing the rill.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// VMConfig configures the machine that runs the entry script.
type VMConfig struct {
	// Stack is the operand stack capacity in values. Zero selects the
	// machine default.
	Stack int  `toml:"stack"`
	Trace bool `toml:"trace"`
}

// CacheConfig configures the compiled chunk cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load parses a rill.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if m.VM.Stack < 0 {
		return nil, fmt.Errorf("%s: vm.stack must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Source.Entry == "" {
		m.Source.Entry = "main.rill"
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".rill", "cache.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a rill.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// EntryPath locates the entry script in the first source directory that
// contains it.
func (m *Manifest) EntryPath() (string, error) {
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry, nil
	}
	for _, dir := range m.SourceDirPaths() {
		path := filepath.Join(dir, m.Source.Entry)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("entry %s not found in %v", m.Source.Entry, m.Source.Dirs)
}

// CachePath returns the absolute path of the chunk cache database.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
