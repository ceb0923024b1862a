// Package sweep reclaims staging namespaces abandoned by clients that
// never finished a chunked upload. There is no explicit cancel signal in
// the upload protocol, so orphaned sessions are aged out by TTL.
package sweep

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	TTL          time.Duration
	StartupDelay time.Duration
	Interval     time.Duration
}

type Worker struct {
	root   string
	cfg    Config
	logger *log.Logger

	now func() time.Time
}

func NewWorker(stagingRoot string, cfg Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Worker{
		root:   stagingRoot,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run sweeps once after the startup delay, then on every interval tick
// until the context is cancelled. An interval of zero means sweep once.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.StartupDelay > 0 {
		timer := time.NewTimer(w.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	w.runOnce()

	if w.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce()
		}
	}
}

func (w *Worker) runOnce() {
	start := w.now()
	reclaimed, scanned, err := w.SweepOnce()
	if err != nil {
		w.logger.Printf("staging sweep failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return
	}
	if reclaimed > 0 {
		w.logger.Printf("staging sweep finished in %s: sessions=%d reclaimed=%d",
			time.Since(start).Round(time.Millisecond), scanned, reclaimed)
	}
}

// SweepOnce removes every session directory whose last chunk write is
// older than the TTL. Returns reclaimed and scanned session counts.
func (w *Worker) SweepOnce() (reclaimed, scanned int, err error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	cutoff := w.now().Add(-w.cfg.TTL)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scanned++
		dir := filepath.Join(w.root, entry.Name())
		if lastActivity(dir).After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			w.logger.Printf("sweep: reclaim %s: %v", entry.Name(), err)
			continue
		}
		reclaimed++
	}
	return reclaimed, scanned, nil
}

// lastActivity is the newest mtime in the session directory; the dir
// mtime alone misses chunk rewrites on some filesystems.
func lastActivity(dir string) time.Time {
	newest := time.Time{}
	if info, err := os.Stat(dir); err == nil {
		newest = info.ModTime()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newest
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}
