// Package wfc resolves one chunk's cell grid by constrained collapse: seed in
// border constraints from already-generated neighbors, then repeatedly collapse
// the lowest-entropy cell and propagate until every cell is singleton.
//
// The solver never fails. A contradiction (empty domain) is resolved by
// assigning the ruleset's default kind and propagating onward; callers learn
// about it through Result.Fallbacks and the logger, never through an error.
package wfc

import (
	"log"
	"math/bits"

	"github.com/kaessert/secretworld-sub000/internal/geom"
	"github.com/kaessert/secretworld-sub000/internal/mathx"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
)

// BorderConstraint is a pre-collapsed cell sitting just outside the grid,
// pressing on the in-grid cell at Index along the given side.
type BorderConstraint struct {
	Side  geom.Direction
	Index int
	Kind  tile.TerrainKind
}

type Config struct {
	Width  int
	Height int
	// Seed drives every random draw. Identical (seed, size, borders, ruleset)
	// inputs produce identical output.
	Seed   int64
	Border []BorderConstraint
	// Logger receives contradiction fallbacks. Optional.
	Logger *log.Logger
}

type Result struct {
	Kinds []tile.TerrainKind
	// Fallbacks counts cells resolved by default-kind assignment after their
	// domain emptied.
	Fallbacks int
}

type solver struct {
	rs   *tile.Ruleset
	w, h int
	rng  *mathx.Rand
	log  *log.Logger

	domains []uint32
	// final marks cells whose value may no longer change: collapsed by draw,
	// or assigned the default kind after a contradiction.
	final  []bool
	queued []bool
	queue  []int

	fallbacks int
}

// Solve resolves a Width x Height grid against the ruleset.
func Solve(rs *tile.Ruleset, cfg Config) Result {
	s := &solver{
		rs:      rs,
		w:       cfg.Width,
		h:       cfg.Height,
		rng:     mathx.NewRand(uint64(cfg.Seed)),
		log:     cfg.Logger,
		domains: make([]uint32, cfg.Width*cfg.Height),
		final:   make([]bool, cfg.Width*cfg.Height),
		queued:  make([]bool, cfg.Width*cfg.Height),
	}

	full := rs.FullDomain()
	for i := range s.domains {
		s.domains[i] = full
	}

	// Border constraints prune edge cells before any interior collapse, which
	// is what makes chunk-boundary adjacency consistent by construction.
	for _, bc := range cfg.Border {
		s.applyBorder(bc)
	}
	s.propagate()

	for {
		idx, ok := s.lowestEntropy()
		if !ok {
			break
		}
		s.collapse(idx)
		s.propagate()
	}

	out := make([]tile.TerrainKind, len(s.domains))
	for i, d := range s.domains {
		out[i] = tile.TerrainKind(bits.TrailingZeros32(d))
	}
	return Result{Kinds: out, Fallbacks: s.fallbacks}
}

func (s *solver) cell(x, y int) int { return x + y*s.w }

func (s *solver) applyBorder(bc BorderConstraint) {
	var idx int
	switch bc.Side {
	case geom.North:
		if bc.Index < 0 || bc.Index >= s.w {
			return
		}
		idx = s.cell(bc.Index, s.h-1)
	case geom.South:
		if bc.Index < 0 || bc.Index >= s.w {
			return
		}
		idx = s.cell(bc.Index, 0)
	case geom.East:
		if bc.Index < 0 || bc.Index >= s.h {
			return
		}
		idx = s.cell(s.w-1, bc.Index)
	default:
		if bc.Index < 0 || bc.Index >= s.h {
			return
		}
		idx = s.cell(0, bc.Index)
	}
	s.shrink(idx, s.domains[idx]&s.rs.AdjacencyMask(bc.Kind))
}

// shrink replaces a cell's domain, falling back to the default kind if the new
// domain is empty. Final cells never change.
func (s *solver) shrink(idx int, next uint32) {
	if next == s.domains[idx] || s.final[idx] {
		return
	}
	if next == 0 {
		s.fallbacks++
		next = 1 << s.rs.DefaultKind()
		s.final[idx] = true
		if s.log != nil {
			s.log.Printf("contradiction at cell (%d,%d), assigning default kind %q",
				idx%s.w, idx/s.w, s.rs.KindName(s.rs.DefaultKind()))
		}
	}
	s.domains[idx] = next
	s.enqueue(idx)
}

func (s *solver) enqueue(idx int) {
	if !s.queued[idx] {
		s.queued[idx] = true
		s.queue = append(s.queue, idx)
	}
}

// propagate runs worklist arc-consistency: whenever a cell's domain changed,
// every neighbor's domain is re-restricted to kinds supported by it.
func (s *solver) propagate() {
	for len(s.queue) > 0 {
		idx := s.queue[0]
		s.queue = s.queue[1:]
		s.queued[idx] = false

		support := uint32(0)
		d := s.domains[idx]
		for d != 0 {
			k := bits.TrailingZeros32(d)
			d &= d - 1
			support |= s.rs.AdjacencyMask(tile.TerrainKind(k))
		}

		x, y := idx%s.w, idx/s.w
		for _, dir := range geom.Directions {
			dx, dy := dir.Delta()
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= s.w || ny < 0 || ny >= s.h {
				continue
			}
			n := s.cell(nx, ny)
			s.shrink(n, s.domains[n]&support)
		}
	}
}

// lowestEntropy picks the unresolved cell with the smallest domain, breaking
// ties with the seeded stream.
func (s *solver) lowestEntropy() (int, bool) {
	best := 33
	var candidates []int
	for i, d := range s.domains {
		n := bits.OnesCount32(d)
		if n <= 1 {
			continue
		}
		if n < best {
			best = n
			candidates = candidates[:0]
		}
		if n == best {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[s.rng.Intn(len(candidates))], true
}

// collapse draws one kind from the cell's domain with probability proportional
// to the ruleset weights.
func (s *solver) collapse(idx int) {
	total := 0.0
	d := s.domains[idx]
	for m := d; m != 0; m &= m - 1 {
		total += s.rs.Weight(tile.TerrainKind(bits.TrailingZeros32(m)))
	}

	r := s.rng.Float64() * total
	last := tile.TerrainKind(bits.TrailingZeros32(d))
	for m := d; m != 0; m &= m - 1 {
		k := tile.TerrainKind(bits.TrailingZeros32(m))
		last = k
		r -= s.rs.Weight(k)
		if r < 0 {
			break
		}
	}

	s.domains[idx] = 1 << last
	s.final[idx] = true
	s.enqueue(idx)
}
