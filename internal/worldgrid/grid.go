// Package worldgrid keeps the sparse coordinate-indexed graph of named
// locations that shares the terrain's coordinate space. Connection symmetry is
// enforced at insertion time, never repaired after the fact, and the frontier
// queries tell the expansion collaborator where it owes content.
package worldgrid

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

// Exit is a connection pointing at a coordinate that holds no location yet.
type Exit struct {
	From      *Location
	Direction geom.Direction
	Target    geom.Coord
}

// Grid indexes locations by coordinate and by name. Both indexes are kept in
// lockstep; all mutation goes through AddLocation.
type Grid struct {
	mu      sync.RWMutex
	byCoord map[geom.Coord]*Location
	byName  map[string]*Location
}

func New() *Grid {
	return &Grid{
		byCoord: make(map[geom.Coord]*Location),
		byName:  make(map[string]*Location),
	}
}

// AddLocation inserts a location and wires up symmetric connections. For each
// declared connection whose target already holds a location, the reverse link
// is installed on that neighbor; existing neighbors already pointing at the
// new coordinate get their link mirrored onto the new location. On any error
// the grid is left untouched.
func (g *Grid) AddLocation(loc *Location) error {
	if loc == nil {
		return fmt.Errorf("nil location")
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.byCoord[loc.Coord]; ok {
		if existing.Name == loc.Name {
			return nil // idempotent re-insert of the same location
		}
		return &ConflictError{Coord: loc.Coord, Existing: existing.Name, Proposed: loc.Name}
	}
	if _, ok := g.byName[loc.Name]; ok {
		return fmt.Errorf("location name %q already placed", loc.Name)
	}

	if loc.Connections == nil {
		loc.Connections = make(map[geom.Direction]geom.Coord)
	}

	// Dry-run the neighbor updates so a rejected insert mutates nothing.
	type reverse struct {
		neighbor *Location
		dir      geom.Direction
	}
	var installs []reverse
	var mirrors []geom.Direction
	for _, d := range geom.Directions {
		adj := loc.Coord.Step(d)
		neighbor, occupied := g.byCoord[adj]
		declared, hasDecl := loc.Connections[d]

		if hasDecl && declared == adj && occupied {
			back := d.Opposite()
			if existing, ok := neighbor.Connections[back]; ok {
				if existing != loc.Coord {
					return &AsymmetricLinkError{
						Neighbor:  adj,
						Direction: back,
						Existing:  existing,
						Proposed:  loc.Coord,
					}
				}
			} else {
				installs = append(installs, reverse{neighbor: neighbor, dir: back})
			}
		}

		if occupied {
			if incoming, ok := neighbor.Connections[d.Opposite()]; ok && incoming == loc.Coord {
				if !hasDecl {
					// The neighbor declared this link while the coordinate was
					// still empty; mirror it so symmetry holds from the moment
					// of insertion.
					mirrors = append(mirrors, d)
				} else if declared != adj {
					return &AsymmetricLinkError{
						Neighbor:  loc.Coord,
						Direction: d,
						Existing:  declared,
						Proposed:  adj,
					}
				}
			}
		}
	}

	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	g.byCoord[loc.Coord] = loc
	g.byName[loc.Name] = loc
	for _, d := range mirrors {
		loc.Connections[d] = loc.Coord.Step(d)
	}
	for _, r := range installs {
		r.neighbor.Connections[r.dir] = loc.Coord
	}
	return nil
}

// GetByCoordinates returns the location at (x, y), or nil.
func (g *Grid) GetByCoordinates(x, y int) *Location {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byCoord[geom.Coord{X: x, Y: y}]
}

// GetByName returns the location named name, or nil.
func (g *Grid) GetByName(name string) *Location {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byName[name]
}

// GetNeighbor returns the location one step in direction d from (x, y), or nil.
func (g *Grid) GetNeighbor(x, y int, d geom.Direction) *Location {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byCoord[geom.Coord{X: x, Y: y}.Step(d)]
}

func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byCoord)
}

// FindUnreachableExits lists every connection pointing at an empty coordinate,
// in deterministic order. This is where the expansion collaborator owes
// content.
func (g *Grid) FindUnreachableExits() []Exit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var exits []Exit
	for _, loc := range g.sortedLocked() {
		for _, d := range geom.Directions {
			target, ok := loc.Connections[d]
			if !ok {
				continue
			}
			if _, occupied := g.byCoord[target]; !occupied {
				exits = append(exits, Exit{From: loc, Direction: d, Target: target})
			}
		}
	}
	return exits
}

// ValidateBorderClosure reports whether every declared connection reaches a
// placed location. A health check, not an enforced invariant: an expanding
// world is expected to stay open.
func (g *Grid) ValidateBorderClosure() bool {
	return len(g.FindUnreachableExits()) == 0
}

// GetFrontierLocations lists locations with at least one unreachable exit.
// The expansion collaborator must keep this non-empty or the world dead-ends;
// the grid exposes the property but does not enforce it.
func (g *Grid) GetFrontierLocations() []*Location {
	exits := g.FindUnreachableExits()
	seen := make(map[geom.Coord]bool)
	var out []*Location
	for _, e := range exits {
		if !seen[e.From.Coord] {
			seen[e.From.Coord] = true
			out = append(out, e.From)
		}
	}
	return out
}

// Locations returns all placed locations in deterministic order.
func (g *Grid) Locations() []*Location {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedLocked()
}

func (g *Grid) sortedLocked() []*Location {
	out := make([]*Location, 0, len(g.byCoord))
	for _, loc := range g.byCoord {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.Y != out[j].Coord.Y {
			return out[i].Coord.Y < out[j].Coord.Y
		}
		return out[i].Coord.X < out[j].Coord.X
	})
	return out
}
