// Package genlog appends chunk generation events to a zstd-compressed JSONL
// file. This is the observability channel for contradiction fallbacks, which
// the solver recovers from silently as far as callers are concerned.
package genlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kaessert/secretworld-sub000/internal/terrain"
)

type Writer struct {
	mu   sync.Mutex
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer
	err  error
	path string
}

// New opens a fresh event log under baseDir, one file per session.
func New(baseDir string) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(baseDir,
		fmt.Sprintf("gen-%s.jsonl.zst", time.Now().UTC().Format("2006-01-02-150405")))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		f:    f,
		enc:  enc,
		w:    bufio.NewWriter(enc),
		path: path,
	}, nil
}

// Path returns the log file location.
func (w *Writer) Path() string { return w.path }

// Record satisfies terrain.EventSink. Write failures are remembered and
// surfaced by Close; generation itself must never stall on observability.
func (w *Writer) Record(ev terrain.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}

	b, err := json.Marshal(ev)
	if err != nil {
		w.err = err
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = err
		return
	}
	if err := w.w.WriteByte('\n'); err != nil {
		w.err = err
		return
	}
	w.err = w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ferr := w.w.Flush()
	if err := w.enc.Close(); err != nil && ferr == nil {
		ferr = err
	}
	if err := w.f.Close(); err != nil && ferr == nil {
		ferr = err
	}
	if w.err != nil {
		return w.err
	}
	return ferr
}
