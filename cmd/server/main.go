package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kaessert/secretworld-sub000/internal/persistence/chunkdb"
	"github.com/kaessert/secretworld-sub000/internal/persistence/genlog"
	"github.com/kaessert/secretworld-sub000/internal/persistence/snapshot"
	"github.com/kaessert/secretworld-sub000/internal/terrain"
	"github.com/kaessert/secretworld-sub000/internal/terrain/tile"
	"github.com/kaessert/secretworld-sub000/internal/transport/ws"
	"github.com/kaessert/secretworld-sub000/internal/tuning"
	"github.com/kaessert/secretworld-sub000/internal/worldgrid"
)

type options struct {
	Addr       string
	WorldID    string
	Seed       int64
	ConfigDir  string
	DataDir    string
	TuningPath string
	DisableDB  bool

	SnapPath   string
	LoadLatest bool
}

func main() {
	var opts options
	flag.StringVar(&opts.Addr, "addr", "", "http listen address (default: tuning listen_addr)")
	flag.StringVar(&opts.WorldID, "world", "", "world id (default: tuning world_id)")
	flag.Int64Var(&opts.Seed, "seed", 0, "world seed, overrides tuning (used only when starting a fresh world)")
	flag.StringVar(&opts.ConfigDir, "configs", "./configs", "config directory")
	flag.StringVar(&opts.DataDir, "data", "./data", "runtime data directory")
	flag.StringVar(&opts.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	flag.BoolVar(&opts.DisableDB, "disable_db", false, "disable the sqlite chunk store (memory-only session)")
	flag.StringVar(&opts.SnapPath, "snapshot", "", "path to snapshot to load (optional)")
	flag.BoolVar(&opts.LoadLatest, "load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	// Fatal errors bubble out of run so deferred cleanup (chunk store, event
	// log) executes before the process exits.
	if err := run(opts, logger); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(opts options, logger *log.Logger) error {
	tp := strings.TrimSpace(opts.TuningPath)
	if tp == "" {
		tp = filepath.Join(opts.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	id := strings.TrimSpace(opts.WorldID)
	if id == "" {
		id = tune.WorldID
	}
	if id == "" {
		id = "world_1"
	}
	listen := strings.TrimSpace(opts.Addr)
	if listen == "" {
		listen = tune.ListenAddr
	}
	if listen == "" {
		listen = ":8080"
	}

	rulesetPath := tune.RulesetPath
	if !filepath.IsAbs(rulesetPath) {
		if _, statErr := os.Stat(rulesetPath); statErr != nil {
			rulesetPath = filepath.Join(opts.ConfigDir, filepath.Base(rulesetPath))
		}
	}
	rs, err := tile.Load(rulesetPath)
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}
	logger.Printf("ruleset v%d: %d kinds, digest=%s", rs.Version(), rs.KindCount(), rs.Digest()[:12])

	worldDir := filepath.Join(opts.DataDir, "worlds", id)
	_ = os.MkdirAll(worldDir, 0o755)

	worldSeed := tune.Seed
	if opts.Seed != 0 {
		worldSeed = opts.Seed
	}

	snapshotToLoad := strings.TrimSpace(opts.SnapPath)
	if snapshotToLoad == "" && opts.LoadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err = snapshot.Read(snapshotToLoad)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != id {
			return fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", id, snap.Header.WorldID)
		}
		if snap.RulesetDigest != "" && snap.RulesetDigest != rs.Digest() {
			logger.Printf("warning: ruleset changed since snapshot (was %s); new chunks may not match old borders", snap.RulesetDigest[:12])
		}
		worldSeed = snap.Seed
	}

	var store terrain.ChunkStore
	if !opts.DisableDB {
		db, err := chunkdb.Open(filepath.Join(worldDir, "chunks.db"))
		if err != nil {
			return fmt.Errorf("open chunk store: %w", err)
		}
		defer db.Close()
		store = db
	}

	sink := terrain.NopSink()
	if tune.GenerationLog {
		gl, err := genlog.New(worldDir)
		if err != nil {
			logger.Printf("generation log disabled: %v", err)
		} else {
			defer func() {
				if err := gl.Close(); err != nil {
					logger.Printf("generation log close: %v", err)
				}
			}()
			sink = gl
			logger.Printf("generation log: %s", gl.Path())
		}
	}

	mgr := terrain.NewManager(rs, terrain.Config{
		Seed:         worldSeed,
		ChunkSize:    tune.ChunkSize,
		ChunkVersion: tune.ChunkVersion,
	}, store, sink, logger)
	grid := worldgrid.New()

	if snap != nil {
		if err := snapshot.ImportChunks(mgr, snap.Chunks); err != nil {
			return fmt.Errorf("import chunks: %w", err)
		}
		if err := snapshot.ImportLocations(grid, snap.Locations); err != nil {
			return fmt.Errorf("import locations: %w", err)
		}
		logger.Printf("resumed from snapshot=%s locations=%d chunks=%d",
			filepath.Base(snapshotToLoad), grid.Len(), len(snap.Chunks))
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID       string `json:"world_id"`
			Seed          int64  `json:"seed"`
			ChunkSize     int    `json:"chunk_size"`
			RulesetDigest string `json:"ruleset_digest"`
			Chunks        int    `json:"chunks"`
			Locations     int    `json:"locations"`
			Frontier      int    `json:"frontier"`
		}{
			WorldID:       id,
			Seed:          worldSeed,
			ChunkSize:     mgr.ChunkSize(),
			RulesetDigest: rs.Digest(),
			Chunks:        len(mgr.GeneratedChunks()),
			Locations:     grid.Len(),
			Frontier:      len(grid.GetFrontierLocations()),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/map", ws.NewServer(rs, mgr, grid, logger).Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s seed=%d listening on %s", id, worldSeed, listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}

	// Exit snapshot. Chunk rows are carried so a resumed memory-only session
	// keeps the exact terrain, fallbacks included.
	out := &snapshot.SnapshotV1{
		Header:        snapshot.Header{WorldID: id},
		Seed:          worldSeed,
		ChunkSize:     mgr.ChunkSize(),
		RulesetDigest: rs.Digest(),
		Locations:     snapshot.ExportLocations(grid),
		Chunks:        snapshot.ExportChunks(mgr),
	}
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", time.Now().Unix()))
	if err := snapshot.Write(path, out); err != nil {
		logger.Printf("snapshot write: %v", err)
	} else {
		logger.Printf("snapshot written: %s", path)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestStamp uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		stamp, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || stamp > bestStamp {
			bestStamp = stamp
			best = filepath.Join(dir, name)
		}
	}
	return best
}
