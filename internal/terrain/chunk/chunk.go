// Package chunk holds the unit of terrain generation and caching: a fixed-size
// block of resolved terrain kinds, immutable once built.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kaessert/secretworld-sub000/internal/geom"
	"github.com/kaessert/secretworld-sub000/internal/mathx"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
)

// Coord addresses a chunk on the chunk grid (world coordinate floor-divided by
// the chunk size).
type Coord struct {
	CX int
	CY int
}

func (c Coord) String() string {
	return fmt.Sprintf("chunk(%d,%d)", c.CX, c.CY)
}

// Neighbor returns the chunk coordinate one step in direction d.
func (c Coord) Neighbor(d geom.Direction) Coord {
	dx, dy := d.Delta()
	return Coord{CX: c.CX + dx, CY: c.CY + dy}
}

// FromWorld maps a world coordinate to its chunk coordinate and local offset.
func FromWorld(x, y, size int) (Coord, int, int) {
	return Coord{CX: mathx.FloorDiv(x, size), CY: mathx.FloorDiv(y, size)},
		mathx.Mod(x, size), mathx.Mod(y, size)
}

// DeriveSeed computes a chunk's generation seed from the global seed and its
// coordinate. Stable across versions.
func DeriveSeed(globalSeed int64, c Coord) int64 {
	return int64(mathx.Hash2(globalSeed, c.CX, c.CY))
}

// Chunk is a resolved Size x Size block of terrain. Kinds is row-major with
// index lx + ly*Size; ly grows northward.
type Chunk struct {
	Coord   Coord
	Size    int
	Seed    int64
	Version int
	Kinds   []tile.TerrainKind

	digest string
}

// New builds an immutable chunk and computes its digest. len(kinds) must be
// size*size.
func New(c Coord, size int, seed int64, version int, kinds []tile.TerrainKind) *Chunk {
	ch := &Chunk{
		Coord:   c,
		Size:    size,
		Seed:    seed,
		Version: version,
		Kinds:   kinds,
	}
	h := sha256.New()
	for _, k := range kinds {
		h.Write([]byte{byte(k)})
	}
	ch.digest = hex.EncodeToString(h.Sum(nil))
	return ch
}

func (c *Chunk) Get(lx, ly int) tile.TerrainKind {
	return c.Kinds[lx+ly*c.Size]
}

// Digest identifies the chunk's exact contents; determinism tests compare it.
func (c *Chunk) Digest() string {
	return c.digest
}

// Edge returns the chunk's outermost cells on the given side, ordered by the
// axis that runs along that edge. A neighbor generated later reads these as
// border constraints.
func (c *Chunk) Edge(d geom.Direction) []tile.TerrainKind {
	out := make([]tile.TerrainKind, c.Size)
	for i := 0; i < c.Size; i++ {
		switch d {
		case geom.North:
			out[i] = c.Get(i, c.Size-1)
		case geom.South:
			out[i] = c.Get(i, 0)
		case geom.East:
			out[i] = c.Get(c.Size-1, i)
		default:
			out[i] = c.Get(0, i)
		}
	}
	return out
}
