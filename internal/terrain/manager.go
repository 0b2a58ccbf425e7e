// Package terrain orchestrates on-demand chunk generation: border stitching
// from already-generated neighbors, deterministic per-chunk seeding, memoized
// caching and best-effort persistence.
package terrain

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/kaessert/secretworld-sub000/internal/geom"
	"github.com/kaessert/secretworld-sub000/internal/terrain/chunk"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
	"github.com/kaessert/secretworld-sub000/internal/terrain/wfc"
)

// ChunkStore persists generated chunks. Load reports ok=false on a clean miss;
// a read error is treated by the manager as a miss, a write error is logged and
// dropped. Terrain stays valid in memory either way.
type ChunkStore interface {
	Load(c chunk.Coord) (*chunk.Chunk, bool, error)
	Save(ch *chunk.Chunk) error
}

// Event describes one chunk generation, including any contradiction fallbacks
// the solver recovered from.
type Event struct {
	Time          time.Time `json:"ts"`
	CX            int       `json:"cx"`
	CY            int       `json:"cy"`
	Seed          int64     `json:"seed"`
	Fallbacks     int       `json:"fallbacks"`
	DurationMs    int64     `json:"duration_ms"`
	ChunkDigest   string    `json:"chunk_digest"`
	RulesetDigest string    `json:"ruleset_digest"`
}

type EventSink interface {
	Record(ev Event)
}

type nopSink struct{}

func (nopSink) Record(Event) {}

// NopSink discards generation events.
func NopSink() EventSink { return nopSink{} }

type Config struct {
	Seed         int64
	ChunkSize    int
	ChunkVersion int
}

// Manager is the single entry point for terrain queries. Chunks are generated
// lazily on first touch, in any order, and never regenerated afterwards.
type Manager struct {
	rs    *tile.Ruleset
	cfg   Config
	store ChunkStore
	sink  EventSink
	log   *log.Logger

	mu       sync.Mutex
	cache    map[chunk.Coord]*chunk.Chunk
	inflight map[chunk.Coord]chan struct{}
}

// NewManager wires a manager. store may be nil for a memory-only session; sink
// and logger may be nil.
func NewManager(rs *tile.Ruleset, cfg Config, store ChunkStore, sink EventSink, logger *log.Logger) *Manager {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 16
	}
	if cfg.ChunkVersion <= 0 {
		cfg.ChunkVersion = 1
	}
	if sink == nil {
		sink = NopSink()
	}
	m := &Manager{
		rs:       rs,
		cfg:      cfg,
		store:    store,
		sink:     sink,
		log:      logger,
		cache:    make(map[chunk.Coord]*chunk.Chunk),
		inflight: make(map[chunk.Coord]chan struct{}),
	}
	return m
}

func (m *Manager) Seed() int64    { return m.cfg.Seed }
func (m *Manager) ChunkSize() int { return m.cfg.ChunkSize }

// TileAt resolves the terrain kind at a world coordinate, generating the
// owning chunk if needed. It never fails.
func (m *Manager) TileAt(x, y int) tile.TerrainKind {
	c, lx, ly := chunk.FromWorld(x, y, m.cfg.ChunkSize)
	return m.ChunkAt(c).Get(lx, ly)
}

// ChunkAt returns the fully resolved chunk at c, generating it if needed.
// At most one generation per coordinate ever runs, even under overlapping
// requests; latecomers wait for the winner's result.
func (m *Manager) ChunkAt(c chunk.Coord) *chunk.Chunk {
	m.mu.Lock()
	for {
		if ch, ok := m.cache[c]; ok {
			m.mu.Unlock()
			return ch
		}
		wait, busy := m.inflight[c]
		if !busy {
			break
		}
		m.mu.Unlock()
		<-wait
		m.mu.Lock()
	}
	done := make(chan struct{})
	m.inflight[c] = done
	m.mu.Unlock()

	ch := m.loadOrGenerate(c)

	m.mu.Lock()
	m.cache[c] = ch
	delete(m.inflight, c)
	m.mu.Unlock()
	close(done)
	return ch
}

// CachedChunk returns the chunk at c without triggering generation.
func (m *Manager) CachedChunk(c chunk.Coord) (*chunk.Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.cache[c]
	return ch, ok
}

// Preload seeds the in-memory cache, e.g. from a snapshot. Existing chunks are
// never replaced.
func (m *Manager) Preload(ch *chunk.Chunk) {
	if ch == nil || len(ch.Kinds) != ch.Size*ch.Size {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[ch.Coord]; !ok {
		m.cache[ch.Coord] = ch
	}
}

// GeneratedChunks lists cached chunk coordinates in deterministic order.
func (m *Manager) GeneratedChunks() []chunk.Coord {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]chunk.Coord, 0, len(m.cache))
	for k := range m.cache {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CY < keys[j].CY
	})
	return keys
}

func (m *Manager) loadOrGenerate(c chunk.Coord) *chunk.Chunk {
	if m.store != nil {
		ch, ok, err := m.store.Load(c)
		if err != nil {
			// A broken store read is just a miss: the chunk regenerates
			// byte-identical from the seed.
			m.logf("chunk %s: store read failed, regenerating: %v", c, err)
		} else if ok && len(ch.Kinds) == ch.Size*ch.Size {
			return ch
		}
	}
	return m.generate(c)
}

func (m *Manager) generate(c chunk.Coord) *chunk.Chunk {
	start := time.Now()
	seed := chunk.DeriveSeed(m.cfg.Seed, c)

	r := wfc.Solve(m.rs, wfc.Config{
		Width:  m.cfg.ChunkSize,
		Height: m.cfg.ChunkSize,
		Seed:   seed,
		Border: m.borderConstraints(c),
		Logger: m.log,
	})
	ch := chunk.New(c, m.cfg.ChunkSize, seed, m.cfg.ChunkVersion, r.Kinds)

	if r.Fallbacks > 0 {
		m.logf("chunk %s: generated with %d contradiction fallbacks", c, r.Fallbacks)
	}
	if m.store != nil {
		if err := m.store.Save(ch); err != nil {
			m.logf("chunk %s: store write failed (keeping in memory): %v", c, err)
		}
	}
	m.sink.Record(Event{
		Time:          start,
		CX:            c.CX,
		CY:            c.CY,
		Seed:          seed,
		Fallbacks:     r.Fallbacks,
		DurationMs:    time.Since(start).Milliseconds(),
		ChunkDigest:   ch.Digest(),
		RulesetDigest: m.rs.Digest(),
	})
	return ch
}

// borderConstraints reads the facing edges of any already-generated adjacent
// chunks, whether resolved this session or persisted by an earlier one.
// Ungenerated neighbors contribute nothing; a new chunk only ever reads
// resolved neighbors and never waits on one, so generation order is free.
func (m *Manager) borderConstraints(c chunk.Coord) []wfc.BorderConstraint {
	var out []wfc.BorderConstraint
	for _, d := range geom.Directions {
		nb, ok := m.resolvedChunk(c.Neighbor(d))
		if !ok {
			continue
		}
		edge := nb.Edge(d.Opposite())
		for i, k := range edge {
			out = append(out, wfc.BorderConstraint{Side: d, Index: i, Kind: k})
		}
	}
	return out
}

// resolvedChunk returns the chunk at c if it has already been generated, in
// memory or in the store, without ever triggering generation. A store hit is
// cached so later queries and stitching reads agree on one copy.
func (m *Manager) resolvedChunk(c chunk.Coord) (*chunk.Chunk, bool) {
	m.mu.Lock()
	if ch, ok := m.cache[c]; ok {
		m.mu.Unlock()
		return ch, true
	}
	if _, busy := m.inflight[c]; busy {
		// A mid-generation neighbor is not resolved; it will read our edge
		// once we finish.
		m.mu.Unlock()
		return nil, false
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil, false
	}
	ch, ok, err := m.store.Load(c)
	if err != nil {
		m.logf("chunk %s: store read failed during stitching: %v", c, err)
		return nil, false
	}
	if !ok || len(ch.Kinds) != ch.Size*ch.Size {
		return nil, false
	}

	m.mu.Lock()
	if cached, exists := m.cache[c]; exists {
		ch = cached
	} else if _, busy := m.inflight[c]; !busy {
		m.cache[c] = ch
	}
	m.mu.Unlock()
	return ch, true
}

func (m *Manager) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}
