package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunReturnsErrorForMissingTuning(t *testing.T) {
	err := run(options{
		ConfigDir: filepath.Join(t.TempDir(), "nowhere"),
		DataDir:   t.TempDir(),
	}, testLogger())
	if err == nil {
		t.Fatal("expected error for missing tuning")
	}
	if !strings.Contains(err.Error(), "load tuning") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunReturnsErrorForBadSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "configs", "ruleset.yaml"), `
version: 1
default_kind: plains
kinds:
  - {name: plains, weight: 1}
adjacency:
  - [plains, plains]
`)
	writeFile(t, filepath.Join(dir, "configs", "tuning.yaml"), `
world_id: w-test
seed: 1
chunk_size: 4
chunk_version: 1
ruleset_path: ruleset.yaml
`)
	writeFile(t, filepath.Join(dir, "broken.snap.zst"), "not a snapshot")

	err := run(options{
		ConfigDir: filepath.Join(dir, "configs"),
		DataDir:   filepath.Join(dir, "data"),
		SnapPath:  filepath.Join(dir, "broken.snap.zst"),
		DisableDB: true,
	}, testLogger())
	if err == nil {
		t.Fatal("expected error for broken snapshot")
	}
	if !strings.Contains(err.Error(), "read snapshot") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLatestSnapshotPicksNewest(t *testing.T) {
	worldDir := t.TempDir()
	snapDir := filepath.Join(worldDir, "snapshots")
	writeFile(t, filepath.Join(snapDir, "100.snap.zst"), "a")
	writeFile(t, filepath.Join(snapDir, "2000.snap.zst"), "b")
	writeFile(t, filepath.Join(snapDir, "300.snap.zst"), "c")
	writeFile(t, filepath.Join(snapDir, "notes.txt"), "ignored")

	got := latestSnapshot(worldDir)
	if filepath.Base(got) != "2000.snap.zst" {
		t.Fatalf("latestSnapshot = %q, want 2000.snap.zst", got)
	}

	if latestSnapshot(filepath.Join(worldDir, "missing")) != "" {
		t.Fatal("expected empty result for missing dir")
	}
}
