package sweep

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepOnce_ReclaimsStaleSessions(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	stale := filepath.Join(root, "stale-upload")
	fresh := filepath.Join(root, "fresh-upload")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "000000000000.chunk"), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := NewWorker(root, Config{TTL: time.Hour}, nil)
	// Pretend it is two hours later; only the fresh session got a write
	// in the meantime.
	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := os.Chtimes(filepath.Join(fresh, "000000000000.chunk"), time.Now().Add(90*time.Minute), time.Now().Add(90*time.Minute)); err != nil {
		t.Fatal(err)
	}

	reclaimed, scanned, err := w.SweepOnce()
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if scanned != 2 || reclaimed != 1 {
		t.Fatalf("SweepOnce() = reclaimed %d, scanned %d; want 1, 2", reclaimed, scanned)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale session still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh session was reclaimed: %v", err)
	}
}

func TestSweepOnce_MissingRootIsFine(t *testing.T) {
	t.Parallel()
	w := NewWorker(filepath.Join(t.TempDir(), "never-created"), Config{TTL: time.Hour}, nil)
	reclaimed, scanned, err := w.SweepOnce()
	if err != nil || reclaimed != 0 || scanned != 0 {
		t.Fatalf("SweepOnce() = %d, %d, %v", reclaimed, scanned, err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	w := NewWorker(t.TempDir(), Config{TTL: time.Hour, Interval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
