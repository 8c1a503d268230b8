package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/rill/vm"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutGet(t *testing.T) {
	cache := openTestCache(t)
	natives := vm.NewNatives()
	key := Key([]byte(program), natives)

	if _, err := cache.Get(key); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get on empty cache: %v, want ErrNotCached", err)
	}

	stored := FromCompiler(compileProgram(t, program, natives))
	if err := cache.Put(key, stored); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := cache.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v, err := vm.NewMachine(0, natives).Run(got.Compiled().Code())
	if err != nil || !vm.Equal(v, vm.Int(42)) {
		t.Errorf("cached program = %v, %v; want 42", v, err)
	}

	// Put replaces.
	other := FromCompiler(compileProgram(t, "7", natives))
	if err := cache.Put(key, other); err != nil {
		t.Fatal(err)
	}
	got, err = cache.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Code) != len(other.Code) {
		t.Errorf("replaced chunk has %d bytes, want %d", len(got.Code), len(other.Code))
	}
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	first, err := OpenCache(path)
	if err != nil {
		t.Fatal(err)
	}
	key := Key([]byte("1"), nil)
	if err := first.Put(key, FromCompiler(compileProgram(t, "1", nil))); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := OpenCache(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, err := second.Get(key); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
