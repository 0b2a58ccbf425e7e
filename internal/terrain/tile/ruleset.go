// Package tile defines the terrain kind palette and the compatibility model
// the collapse solver draws from. The adjacency matrix and weight table are
// versioned tuning data loaded from ruleset.yaml, not code.
package tile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	_ "embed"

	"github.com/pixil98/go-errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

// TerrainKind indexes the ruleset's kind palette.
type TerrainKind uint8

// MaxKinds bounds the palette so solver domains fit in a uint32 bitset.
const MaxKinds = 32

//go:embed ruleset.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("ruleset.schema.json", schemaJSON)

type rulesetFile struct {
	Version     int         `yaml:"version" json:"version"`
	DefaultKind string      `yaml:"default_kind" json:"default_kind"`
	Kinds       []kindDef   `yaml:"kinds" json:"kinds"`
	Adjacency   [][2]string `yaml:"adjacency" json:"adjacency"`
}

type kindDef struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Ruleset is the compatibility model: pure, stateless and immutable after load.
type Ruleset struct {
	version     int
	palette     []string
	index       map[string]TerrainKind
	weights     []float64
	adjacency   []uint32 // adjacency[k] = bitset of kinds that may sit next to k
	defaultKind TerrainKind
	digest      string
}

// Load reads a ruleset from a yaml file.
func Load(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rs, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes, schema-validates and indexes a yaml ruleset.
func Parse(raw []byte) (*Ruleset, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ruleset yaml: %w", err)
	}

	// The schema library validates json-decoded values, so round-trip the
	// parsed yaml through json before validating.
	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ruleset: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonRaw, &jsonDoc); err != nil {
		return nil, fmt.Errorf("ruleset: %w", err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("ruleset schema: %w", err)
	}

	var rf rulesetFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("ruleset yaml: %w", err)
	}
	return build(&rf, raw)
}

func build(rf *rulesetFile, raw []byte) (*Ruleset, error) {
	el := errors.NewErrorList()

	if rf.Version < 1 {
		el.Add(fmt.Errorf("version must be >= 1"))
	}
	if len(rf.Kinds) == 0 {
		el.Add(fmt.Errorf("at least one kind is required"))
	}
	if len(rf.Kinds) > MaxKinds {
		el.Add(fmt.Errorf("too many kinds: %d (max %d)", len(rf.Kinds), MaxKinds))
	}

	rs := &Ruleset{
		version: rf.Version,
		index:   make(map[string]TerrainKind, len(rf.Kinds)),
	}
	for _, kd := range rf.Kinds {
		if kd.Name == "" {
			el.Add(fmt.Errorf("kind name is required"))
			continue
		}
		if _, dup := rs.index[kd.Name]; dup {
			el.Add(fmt.Errorf("duplicate kind %q", kd.Name))
			continue
		}
		if kd.Weight <= 0 {
			el.Add(fmt.Errorf("kind %q: weight must be > 0", kd.Name))
			continue
		}
		rs.index[kd.Name] = TerrainKind(len(rs.palette))
		rs.palette = append(rs.palette, kd.Name)
		rs.weights = append(rs.weights, kd.Weight)
	}

	rs.adjacency = make([]uint32, len(rs.palette))
	for i, pair := range rf.Adjacency {
		a, okA := rs.index[pair[0]]
		b, okB := rs.index[pair[1]]
		if !okA {
			el.Add(fmt.Errorf("adjacency %d: unknown kind %q", i, pair[0]))
		}
		if !okB {
			el.Add(fmt.Errorf("adjacency %d: unknown kind %q", i, pair[1]))
		}
		if okA && okB {
			rs.adjacency[a] |= 1 << b
			rs.adjacency[b] |= 1 << a
		}
	}

	dk, ok := rs.index[rf.DefaultKind]
	if !ok {
		el.Add(fmt.Errorf("default_kind %q is not a declared kind", rf.DefaultKind))
	}
	rs.defaultKind = dk

	if err := el.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(bytes.TrimSpace(raw))
	rs.digest = hex.EncodeToString(sum[:])
	return rs, nil
}

func (r *Ruleset) Version() int { return r.version }

// Digest identifies the exact tuning data a world was generated with.
func (r *Ruleset) Digest() string { return r.digest }

func (r *Ruleset) KindCount() int { return len(r.palette) }

// DefaultKind is the terrain assigned when constraint propagation empties a
// cell's domain.
func (r *Ruleset) DefaultKind() TerrainKind { return r.defaultKind }

// KindName returns the palette name for k, or "unknown" for an out-of-range kind.
func (r *Ruleset) KindName(k TerrainKind) string {
	if int(k) >= len(r.palette) {
		return "unknown"
	}
	return r.palette[k]
}

// Kind resolves a palette name.
func (r *Ruleset) Kind(name string) (TerrainKind, bool) {
	k, ok := r.index[name]
	return k, ok
}

// Weight biases random selection toward common terrain. Out-of-range kinds
// weigh nothing.
func (r *Ruleset) Weight(k TerrainKind) float64 {
	if int(k) >= len(r.weights) {
		return 0
	}
	return r.weights[k]
}

// Compatible reports whether b may sit adjacent to a in direction d. Adjacency
// is stored as unordered pairs, so Compatible(a,b,north) == Compatible(b,a,south)
// holds by construction.
func (r *Ruleset) Compatible(a, b TerrainKind, _ geom.Direction) bool {
	if int(a) >= len(r.adjacency) || int(b) >= len(r.adjacency) {
		return false
	}
	return r.adjacency[a]&(1<<b) != 0
}

// AdjacencyMask returns the bitset of kinds that may sit next to k. The solver
// unions these masks during propagation.
func (r *Ruleset) AdjacencyMask(k TerrainKind) uint32 {
	if int(k) >= len(r.adjacency) {
		return 0
	}
	return r.adjacency[k]
}

// FullDomain is the bitset of every declared kind.
func (r *Ruleset) FullDomain() uint32 {
	if len(r.palette) == MaxKinds {
		return ^uint32(0)
	}
	return 1<<uint(len(r.palette)) - 1
}
