// Package chunkdb persists generated chunks in a local sqlite database. The
// store is a pure acceleration: every chunk regenerates byte-identical from
// the seed, so losing the database only costs time — except that reloading
// also preserves any fallback decisions made during generation.
package chunkdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/kaessert/secretworld-sub000/internal/terrain/chunk"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
)

type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	cx         INTEGER NOT NULL,
	cy         INTEGER NOT NULL,
	version    INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	kinds      BLOB    NOT NULL,
	digest     TEXT    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (cx, cy)
);`

// Open creates or opens the chunk database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL suits the append-only write pattern; chunks are never updated.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// Load returns the chunk at c, or ok=false if it was never persisted.
func (s *Store) Load(c chunk.Coord) (*chunk.Chunk, bool, error) {
	var (
		version, size int
		seed          int64
		blob          []byte
		digest        string
	)
	err := s.db.QueryRow(
		`SELECT version, seed, size, kinds, digest FROM chunks WHERE cx = ? AND cy = ?`,
		c.CX, c.CY,
	).Scan(&version, &seed, &size, &blob, &digest)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, fmt.Errorf("chunk %s: decompress: %w", c, err)
	}
	if len(raw) != size*size {
		return nil, false, fmt.Errorf("chunk %s: blob length %d, want %d", c, len(raw), size*size)
	}

	kinds := make([]tile.TerrainKind, len(raw))
	for i, b := range raw {
		kinds[i] = tile.TerrainKind(b)
	}
	ch := chunk.New(c, size, seed, version, kinds)
	if ch.Digest() != digest {
		return nil, false, fmt.Errorf("chunk %s: digest mismatch", c)
	}
	return ch, true, nil
}

// Save persists a chunk. Chunks are immutable, so an existing row wins and the
// write becomes a no-op.
func (s *Store) Save(ch *chunk.Chunk) error {
	raw := make([]byte, len(ch.Kinds))
	for i, k := range ch.Kinds {
		raw[i] = byte(k)
	}
	blob := s.enc.EncodeAll(raw, nil)

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO chunks (cx, cy, version, seed, size, kinds, digest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.Coord.CX, ch.Coord.CY, ch.Version, ch.Seed, ch.Size, blob, ch.Digest(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Count reports how many chunks are persisted.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}
