package worldgrid

import (
	"errors"
	"testing"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

func conn(pairs ...any) map[geom.Direction]geom.Coord {
	m := make(map[geom.Direction]geom.Coord)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(geom.Direction)] = pairs[i+1].(geom.Coord)
	}
	return m
}

func mustAdd(t *testing.T, g *Grid, loc *Location) {
	t.Helper()
	if err := g.AddLocation(loc); err != nil {
		t.Fatalf("add %q: %v", loc.Name, err)
	}
}

func assertSymmetry(t *testing.T, g *Grid) {
	t.Helper()
	for _, loc := range g.Locations() {
		for d, target := range loc.Connections {
			other := g.GetByCoordinates(target.X, target.Y)
			if other == nil {
				continue // frontier exit
			}
			back, ok := other.Connections[d.Opposite()]
			if !ok || back != loc.Coord {
				t.Fatalf("asymmetric link: %q %s -> %s has no reverse on %q",
					loc.Name, d, target, other.Name)
			}
		}
	}
}

func TestTownSquareForestScenario(t *testing.T) {
	g := New()

	mustAdd(t, g, &Location{
		Name:        "Town Square",
		Category:    "town",
		Coord:       geom.Coord{X: 0, Y: 0},
		Connections: conn(geom.North, geom.Coord{X: 0, Y: 1}),
		Flags:       []string{"safe_zone"},
	})
	mustAdd(t, g, &Location{
		Name:        "Forest",
		Category:    "wilds",
		Coord:       geom.Coord{X: 0, Y: 1},
		Connections: conn(geom.South, geom.Coord{X: 0, Y: 0}),
	})

	n := g.GetNeighbor(0, 0, geom.North)
	if n == nil || n.Name != "Forest" {
		t.Fatalf("GetNeighbor(0,0,north) = %v, want Forest", n)
	}
	s := g.GetNeighbor(0, 1, geom.South)
	if s == nil || s.Name != "Town Square" {
		t.Fatalf("GetNeighbor(0,1,south) = %v, want Town Square", s)
	}
	assertSymmetry(t, g)
}

func TestReverseConnectionInstalledOnNeighbor(t *testing.T) {
	g := New()

	// Quiet location first: declares nothing.
	mustAdd(t, g, &Location{Name: "Shrine", Coord: geom.Coord{X: 3, Y: 3}})
	// Newcomer declares the link; the shrine must get the reverse installed.
	mustAdd(t, g, &Location{
		Name:        "Path",
		Coord:       geom.Coord{X: 4, Y: 3},
		Connections: conn(geom.West, geom.Coord{X: 3, Y: 3}),
	})

	shrine := g.GetByName("Shrine")
	if got, ok := shrine.Connections[geom.East]; !ok || got != (geom.Coord{X: 4, Y: 3}) {
		t.Fatalf("reverse connection not installed on neighbor: %v", shrine.Connections)
	}
	assertSymmetry(t, g)
}

func TestIncomingConnectionMirrored(t *testing.T) {
	g := New()

	mustAdd(t, g, &Location{
		Name:        "Gate",
		Coord:       geom.Coord{X: 0, Y: 0},
		Connections: conn(geom.East, geom.Coord{X: 1, Y: 0}),
	})
	// Inserted without declaring the link back; symmetry must still hold.
	mustAdd(t, g, &Location{Name: "Road", Coord: geom.Coord{X: 1, Y: 0}})

	road := g.GetByName("Road")
	if got, ok := road.Connections[geom.West]; !ok || got != (geom.Coord{X: 0, Y: 0}) {
		t.Fatalf("incoming connection not mirrored: %v", road.Connections)
	}
	assertSymmetry(t, g)
}

func TestCoordinateConflict(t *testing.T) {
	g := New()
	mustAdd(t, g, &Location{Name: "Keep", Coord: geom.Coord{X: 2, Y: 2}})

	err := g.AddLocation(&Location{Name: "Crypt", Coord: geom.Coord{X: 2, Y: 2}})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Existing != "Keep" || conflict.Proposed != "Crypt" {
		t.Fatalf("conflict detail wrong: %+v", conflict)
	}
	if g.GetByName("Crypt") != nil {
		t.Fatal("rejected location was inserted")
	}

	// Re-inserting the same location is a no-op, not a conflict.
	if err := g.AddLocation(&Location{Name: "Keep", Coord: geom.Coord{X: 2, Y: 2}}); err != nil {
		t.Fatalf("idempotent re-insert failed: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("len = %d, want 1", g.Len())
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	g := New()
	mustAdd(t, g, &Location{Name: "Oasis", Coord: geom.Coord{X: 0, Y: 0}})
	if err := g.AddLocation(&Location{Name: "Oasis", Coord: geom.Coord{X: 5, Y: 5}}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestAsymmetricLinkRejected(t *testing.T) {
	g := New()

	// The cave's northern link was declared at some far-off coordinate by its
	// generator. A newcomer claiming that slot must be rejected.
	mustAdd(t, g, &Location{
		Name:        "Cave",
		Coord:       geom.Coord{X: 0, Y: 0},
		Connections: conn(geom.North, geom.Coord{X: 7, Y: 9}),
	})

	err := g.AddLocation(&Location{
		Name:        "Ledge",
		Coord:       geom.Coord{X: 0, Y: 1},
		Connections: conn(geom.South, geom.Coord{X: 0, Y: 0}),
	})
	var asym *AsymmetricLinkError
	if !errors.As(err, &asym) {
		t.Fatalf("expected AsymmetricLinkError, got %v", err)
	}
	if g.GetByName("Ledge") != nil {
		t.Fatal("rejected location was inserted")
	}
	// Cave's declared link must be untouched.
	if got := g.GetByName("Cave").Connections[geom.North]; got != (geom.Coord{X: 7, Y: 9}) {
		t.Fatalf("neighbor link overwritten: %v", got)
	}
}

func TestFrontierQueries(t *testing.T) {
	g := New()

	mustAdd(t, g, &Location{
		Name:  "Town Square",
		Coord: geom.Coord{X: 0, Y: 0},
		Connections: conn(
			geom.North, geom.Coord{X: 0, Y: 1},
			geom.East, geom.Coord{X: 1, Y: 0},
		),
	})

	exits := g.FindUnreachableExits()
	if len(exits) != 2 {
		t.Fatalf("unreachable exits = %d, want 2", len(exits))
	}
	if g.ValidateBorderClosure() {
		t.Fatal("border closure should fail with dangling exits")
	}
	frontier := g.GetFrontierLocations()
	if len(frontier) != 1 || frontier[0].Name != "Town Square" {
		t.Fatalf("frontier = %v", frontier)
	}

	// Expansion collaborator fills the north exit but leaves its own dangling
	// exit, keeping the frontier non-empty.
	mustAdd(t, g, &Location{
		Name:  "Forest",
		Coord: geom.Coord{X: 0, Y: 1},
		Connections: conn(
			geom.South, geom.Coord{X: 0, Y: 0},
			geom.North, geom.Coord{X: 0, Y: 2},
		),
	})

	if len(g.GetFrontierLocations()) == 0 {
		t.Fatal("frontier emptied after contract-following insertion")
	}
	assertSymmetry(t, g)

	// Closing every exit makes the closure check pass.
	mustAdd(t, g, &Location{
		Name:        "Meadow",
		Coord:       geom.Coord{X: 1, Y: 0},
		Connections: conn(geom.West, geom.Coord{X: 0, Y: 0}),
	})
	mustAdd(t, g, &Location{
		Name:        "Glacier",
		Coord:       geom.Coord{X: 0, Y: 2},
		Connections: conn(geom.South, geom.Coord{X: 0, Y: 1}),
	})
	if !g.ValidateBorderClosure() {
		t.Fatalf("expected closed borders, exits: %v", g.FindUnreachableExits())
	}
	if len(g.GetFrontierLocations()) != 0 {
		t.Fatal("frontier should be empty once all exits are closed")
	}
}

func TestValidateRejectsBadLocations(t *testing.T) {
	g := New()
	if err := g.AddLocation(&Location{Coord: geom.Coord{X: 0, Y: 0}}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if err := g.AddLocation(&Location{
		Name:        "Loop",
		Coord:       geom.Coord{X: 0, Y: 0},
		Connections: conn(geom.North, geom.Coord{X: 0, Y: 0}),
	}); err == nil {
		t.Fatal("expected error for self-connection")
	}
	if err := g.AddLocation(nil); err == nil {
		t.Fatal("expected error for nil location")
	}
}

func TestLookupsAreIndexed(t *testing.T) {
	g := New()
	mustAdd(t, g, &Location{Name: "Spire", Coord: geom.Coord{X: -4, Y: 10}})

	byCoord := g.GetByCoordinates(-4, 10)
	byName := g.GetByName("Spire")
	if byCoord == nil || byCoord != byName {
		t.Fatal("coordinate and name indexes out of sync")
	}
	if byCoord.ID == "" {
		t.Fatal("inserted location was not assigned an id")
	}
	if g.GetByCoordinates(9, 9) != nil || g.GetByName("Nowhere") != nil {
		t.Fatal("lookup invented a location")
	}
}

func TestHasFlag(t *testing.T) {
	loc := &Location{Name: "Sanctum", Flags: []string{"named", "safe_zone"}}
	if !loc.HasFlag("safe_zone") || !loc.HasFlag("named") {
		t.Fatal("declared flags not reported")
	}
	if loc.HasFlag("cursed") {
		t.Fatal("undeclared flag reported")
	}
}
