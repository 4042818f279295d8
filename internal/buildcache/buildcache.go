// Package buildcache persists per-instruction flattened semantic streams
// across builds, keyed by a content hash of the pattern tree that
// produced them, so an unchanged target description skips re-flattening
// (spec.md's Table Emitter, extended the way a real TableGen backend
// avoids redundant work on an incremental build).
package buildcache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dc-lift/dcsema/internal/flatten"
)

// Cache is a sqlite-backed store of flattened streams, one row per
// (instruction enum, pattern tree hash).
type Cache struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("buildcache: open %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS flattened_streams (
	enum      INTEGER NOT NULL,
	tree_hash TEXT    NOT NULL,
	stream    BLOB    NOT NULL,
	PRIMARY KEY (enum, tree_hash)
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("buildcache: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached stream for (enum, treeHash), if its pattern
// tree has not changed since it was last flattened.
func (c *Cache) Lookup(enum uint32, treeHash string) (*flatten.Stream, bool, error) {
	var blob []byte
	err := c.db.QueryRow(
		`SELECT stream FROM flattened_streams WHERE enum = ? AND tree_hash = ?`,
		enum, treeHash,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("buildcache: lookup enum %d: %w", enum, err)
	}

	var s flatten.Stream
	if err := msgpack.Unmarshal(blob, &s); err != nil {
		return nil, false, fmt.Errorf("buildcache: decode cached stream for enum %d: %w", enum, err)
	}
	return &s, true, nil
}

// Store persists stream under (enum, treeHash), replacing any prior entry
// for the same key (a pattern tree that was edited and re-hashed gets a
// distinct key; an exact re-flatten of the same tree overwrites in place).
func (c *Cache) Store(enum uint32, treeHash string, stream *flatten.Stream) error {
	blob, err := msgpack.Marshal(stream)
	if err != nil {
		return fmt.Errorf("buildcache: encode stream for enum %d: %w", enum, err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO flattened_streams (enum, tree_hash, stream) VALUES (?, ?, ?)`,
		enum, treeHash, blob,
	)
	if err != nil {
		return fmt.Errorf("buildcache: store enum %d: %w", enum, err)
	}
	return nil
}
