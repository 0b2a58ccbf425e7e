// Package snapshot serializes a world to a versioned, zstd-compressed JSON
// file. Only the seed and the placed locations are required to reproduce a
// world; chunk rows are carried as an acceleration and to preserve fallback
// decisions made during generation.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/kaessert/secretworld-sub000/internal/geom"
	"github.com/kaessert/secretworld-sub000/internal/terrain"
	"github.com/kaessert/secretworld-sub000/internal/terrain/chunk"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
	"github.com/kaessert/secretworld-sub000/internal/worldgrid"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	ChunkSize     int    `json:"chunk_size"`
	RulesetDigest string `json:"ruleset_digest,omitempty"`

	Locations []LocationV1 `json:"locations"`
	Chunks    []ChunkV1    `json:"chunks,omitempty"`
}

type CoordV1 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type LocationV1 struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Category    string             `json:"category,omitempty"`
	X           int                `json:"x"`
	Y           int                `json:"y"`
	Connections map[string]CoordV1 `json:"connections,omitempty"`
	Flags       []string           `json:"flags,omitempty"`
}

type ChunkV1 struct {
	CX      int    `json:"cx"`
	CY      int    `json:"cy"`
	Version int    `json:"chunk_version"`
	Seed    int64  `json:"seed"`
	Size    int    `json:"size"`
	Kinds   []byte `json:"kinds"`
}

// ExportLocations converts the grid's locations into snapshot rows in
// deterministic order.
func ExportLocations(g *worldgrid.Grid) []LocationV1 {
	locs := g.Locations()
	out := make([]LocationV1, 0, len(locs))
	for _, loc := range locs {
		row := LocationV1{
			ID:       loc.ID,
			Name:     loc.Name,
			Category: loc.Category,
			X:        loc.Coord.X,
			Y:        loc.Coord.Y,
			Flags:    loc.Flags,
		}
		if len(loc.Connections) > 0 {
			row.Connections = make(map[string]CoordV1, len(loc.Connections))
			for d, target := range loc.Connections {
				row.Connections[d.String()] = CoordV1{X: target.X, Y: target.Y}
			}
		}
		out = append(out, row)
	}
	return out
}

// ImportLocations replays snapshot rows through the grid's insertion
// operation, so the symmetry invariant is re-established rather than trusted.
func ImportLocations(g *worldgrid.Grid, rows []LocationV1) error {
	for _, row := range rows {
		loc := &worldgrid.Location{
			ID:       row.ID,
			Name:     row.Name,
			Category: row.Category,
			Coord:    geom.Coord{X: row.X, Y: row.Y},
			Flags:    row.Flags,
		}
		if len(row.Connections) > 0 {
			loc.Connections = make(map[geom.Direction]geom.Coord, len(row.Connections))
			for name, target := range row.Connections {
				d, err := geom.ParseDirection(name)
				if err != nil {
					return fmt.Errorf("location %q: %w", row.Name, err)
				}
				loc.Connections[d] = geom.Coord{X: target.X, Y: target.Y}
			}
		}
		if err := g.AddLocation(loc); err != nil {
			return fmt.Errorf("location %q: %w", row.Name, err)
		}
	}
	return nil
}

// ExportChunks converts every cached chunk into snapshot rows.
func ExportChunks(m *terrain.Manager) []ChunkV1 {
	keys := m.GeneratedChunks()
	out := make([]ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch, ok := m.CachedChunk(k)
		if !ok {
			continue
		}
		kinds := make([]byte, len(ch.Kinds))
		for i, v := range ch.Kinds {
			kinds[i] = byte(v)
		}
		out = append(out, ChunkV1{
			CX:      k.CX,
			CY:      k.CY,
			Version: ch.Version,
			Seed:    ch.Seed,
			Size:    ch.Size,
			Kinds:   kinds,
		})
	}
	return out
}

// ImportChunks preloads snapshot chunk rows into the manager's cache.
func ImportChunks(m *terrain.Manager, rows []ChunkV1) error {
	for _, row := range rows {
		if len(row.Kinds) != row.Size*row.Size {
			return fmt.Errorf("chunk (%d,%d): blob length %d, want %d",
				row.CX, row.CY, len(row.Kinds), row.Size*row.Size)
		}
		kinds := make([]tile.TerrainKind, len(row.Kinds))
		for i, b := range row.Kinds {
			kinds[i] = tile.TerrainKind(b)
		}
		m.Preload(chunk.New(chunk.Coord{CX: row.CX, CY: row.CY},
			row.Size, row.Seed, row.Version, kinds))
	}
	return nil
}

// Write stores a snapshot atomically: temp file, then rename.
func Write(path string, snap *SnapshotV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Read loads and version-checks a snapshot.
func Read(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var snap SnapshotV1
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if snap.Header.Version != Version {
		return nil, fmt.Errorf("%s: unsupported snapshot version %d", path, snap.Header.Version)
	}
	return &snap, nil
}
