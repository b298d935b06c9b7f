package apply

import (
	"os"
	"path/filepath"
	"testing"

	"distributed-kvstore/internal/clock"
	"distributed-kvstore/internal/entry"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wal"
)

func openTestWAL(t *testing.T) *wal.WAL {
	t.Helper()
	dir := t.TempDir()
	w, err := wal.Open(filepath.Join(dir, "wal.log"), 0)
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestBatchAppliesNewerEntries(t *testing.T) {
	w := openTestWAL(t)
	s := store.New()
	clk := clock.New()
	m := metrics.New()

	batch := []entry.LogEntry{
		entry.Put(5, 2, "a", "v1"),
		entry.Put(6, 2, "b", "v2"),
	}

	if err := Batch(w, s, clk, m, batch); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	v, ok := s.Get("a")
	if !ok || v.Data == nil || *v.Data != "v1" {
		t.Fatalf("expected a=v1, got %+v ok=%v", v, ok)
	}
	v, ok = s.Get("b")
	if !ok || v.Data == nil || *v.Data != "v2" {
		t.Fatalf("expected b=v2, got %+v ok=%v", v, ok)
	}
	if clk.Now() < 6 {
		t.Fatalf("expected clock observed ts 6, got %d", clk.Now())
	}
}

func TestBatchFiltersStaleEntries(t *testing.T) {
	w := openTestWAL(t)
	s := store.New()
	clk := clock.New()
	m := metrics.New()

	// Seed the store with a value newer than what the batch will carry.
	s.Put("a", store.Value{Data: strPtr("newer"), Ts: 100, Origin: 9})

	batch := []entry.LogEntry{
		entry.Put(5, 2, "a", "stale"),
	}

	if err := Batch(w, s, clk, m, batch); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	v, ok := s.Get("a")
	if !ok || v.Data == nil || *v.Data != "newer" {
		t.Fatalf("expected stale write to be filtered, got %+v ok=%v", v, ok)
	}

	// Nothing should have been appended to the WAL since the whole
	// batch was filtered out.
	entries, err := wal.Replay(w.Path())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 WAL entries after an all-stale batch, got %d", len(entries))
	}
}

func TestBatchHandlesDeletes(t *testing.T) {
	w := openTestWAL(t)
	s := store.New()
	clk := clock.New()
	m := metrics.New()

	s.Put("a", store.Value{Data: strPtr("v"), Ts: 1, Origin: 1})

	batch := []entry.LogEntry{
		entry.Delete(5, 2, "a"),
	}
	if err := Batch(w, s, clk, m, batch); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	_, ok := s.Get("a")
	if ok {
		t.Fatalf("expected a to read as deleted")
	}

	raw, ok := s.GetRaw("a")
	if !ok || raw.Data != nil {
		t.Fatalf("expected tombstone, got %+v ok=%v", raw, ok)
	}
}

func TestBatchPersistsToWAL(t *testing.T) {
	w := openTestWAL(t)
	s := store.New()
	clk := clock.New()
	m := metrics.New()

	batch := []entry.LogEntry{entry.Put(5, 2, "a", "v1")}
	if err := Batch(w, s, clk, m, batch); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	path := w.Path()
	entries, err := wal.Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(entries) != 1 || entries[0].Operation.Key != "a" {
		t.Fatalf("expected one persisted entry for key a, got %+v", entries)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected wal file to exist: %v", err)
	}
}

func strPtr(s string) *string { return &s }
