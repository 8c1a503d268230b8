package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("rill.store")

// ErrNotCached indicates the requested key has no stored chunk.
var ErrNotCached = errors.New("chunk not cached")

// Cache stores compiled chunks in a sqlite database.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the chunk stored under key, or ErrNotCached.
func (c *Cache) Get(key string) (*Chunk, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM chunks WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("querying chunk: %w", err)
	}
	chunk, err := UnmarshalChunk(data)
	if err != nil {
		return nil, err
	}
	log.Debugf("cache hit %s (%d bytes)", key[:min(12, len(key))], len(chunk.Code))
	return chunk, nil
}

// Put stores chunk under key, replacing any previous entry.
func (c *Cache) Put(key string, chunk *Chunk) error {
	data, err := MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (key, data, created) VALUES (?, ?, ?)",
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	log.Debugf("cached %s (%d bytes)", key[:min(12, len(key))], len(data))
	return nil
}
