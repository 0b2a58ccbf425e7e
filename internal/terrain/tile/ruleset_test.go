package tile

import (
	"strings"
	"testing"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

const testYAML = `
version: 1
default_kind: plains
kinds:
  - name: plains
    weight: 5
  - name: forest
    weight: 4
  - name: water
    weight: 2
adjacency:
  - [plains, plains]
  - [plains, forest]
  - [forest, forest]
  - [plains, water]
  - [water, water]
`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rs.KindCount() != 3 {
		t.Fatalf("kind count = %d, want 3", rs.KindCount())
	}
	if rs.KindName(rs.DefaultKind()) != "plains" {
		t.Fatalf("default kind = %q, want plains", rs.KindName(rs.DefaultKind()))
	}
	forest, ok := rs.Kind("forest")
	if !ok {
		t.Fatal("missing forest kind")
	}
	if rs.Weight(forest) != 4 {
		t.Fatalf("forest weight = %v, want 4", rs.Weight(forest))
	}
	if rs.Digest() == "" {
		t.Fatal("empty digest")
	}
}

func TestCompatibleSymmetry(t *testing.T) {
	rs, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := rs.KindCount()
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			ka, kb := TerrainKind(a), TerrainKind(b)
			for _, d := range geom.Directions {
				if rs.Compatible(ka, kb, d) != rs.Compatible(kb, ka, d.Opposite()) {
					t.Fatalf("asymmetric compatibility: %s/%s dir %s",
						rs.KindName(ka), rs.KindName(kb), d)
				}
			}
		}
	}
	forest, _ := rs.Kind("forest")
	water, _ := rs.Kind("water")
	if rs.Compatible(forest, water, geom.North) {
		t.Fatal("forest/water should be incompatible")
	}
}

func TestUnknownKindHarmless(t *testing.T) {
	rs, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bogus := TerrainKind(200)
	if rs.Weight(bogus) != 0 {
		t.Fatal("out-of-range kind should weigh 0")
	}
	if rs.Compatible(bogus, 0, geom.North) {
		t.Fatal("out-of-range kind should be incompatible")
	}
	if rs.KindName(bogus) != "unknown" {
		t.Fatalf("KindName = %q", rs.KindName(bogus))
	}
}

func TestParseRejectsBadConfigs(t *testing.T) {
	cases := map[string]string{
		"missing version": `
default_kind: plains
kinds: [{name: plains, weight: 1}]
adjacency: []
`,
		"zero weight": `
version: 1
default_kind: plains
kinds: [{name: plains, weight: 0}]
adjacency: []
`,
		"duplicate kind": `
version: 1
default_kind: plains
kinds: [{name: plains, weight: 1}, {name: plains, weight: 2}]
adjacency: []
`,
		"unknown default": `
version: 1
default_kind: lava
kinds: [{name: plains, weight: 1}]
adjacency: []
`,
		"unknown adjacency kind": `
version: 1
default_kind: plains
kinds: [{name: plains, weight: 1}]
adjacency: [[plains, lava]]
`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadShippedRuleset(t *testing.T) {
	rs, err := Load("../../../configs/ruleset.yaml")
	if err != nil {
		t.Fatalf("load shipped ruleset: %v", err)
	}
	for _, want := range []string{
		"plains", "forest", "mountain", "water", "desert",
		"swamp", "tundra", "volcanic", "ruins",
	} {
		if _, ok := rs.Kind(want); !ok {
			t.Errorf("shipped ruleset missing kind %q", want)
		}
	}
	// Every kind must have at least one compatible neighbor or generation
	// around it dead-ends into fallback.
	for k := 0; k < rs.KindCount(); k++ {
		if rs.AdjacencyMask(TerrainKind(k)) == 0 {
			t.Errorf("kind %q has no compatible neighbors", rs.KindName(TerrainKind(k)))
		}
	}
}

func TestParseRejectsNonYAML(t *testing.T) {
	if _, err := Parse([]byte("\tnot yaml")); err == nil || !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}
