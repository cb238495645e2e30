package semanticstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUpsertAndNearest(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, nil)

	s.Upsert("aaa", "summary a", []float64{1, 0, 0})
	s.Upsert("bbb", "summary b", []float64{0.9, 0.1, 0})
	s.Upsert("ccc", "summary c", []float64{0, 1, 0})

	neighbors := s.Nearest([]float64{1, 0, 0}, 2)
	if len(neighbors) != 2 {
		t.Fatalf("neighbors = %v, want 2", neighbors)
	}
	if neighbors[0].CommitHash != "aaa" {
		t.Fatalf("closest neighbor = %s, want aaa", neighbors[0].CommitHash)
	}
	if neighbors[0].Distance > neighbors[1].Distance {
		t.Fatalf("neighbors not sorted ascending: %+v", neighbors)
	}
}

func TestSummaryLookup(t *testing.T) {
	s := Open(t.TempDir(), nil)
	s.Upsert("aaa", "hello world", []float64{1, 0})

	summary, ok := s.Summary("aaa")
	if !ok || summary != "hello world" {
		t.Fatalf("summary = %q, ok=%v, want %q, true", summary, ok, "hello world")
	}

	if _, ok := s.Summary("missing"); ok {
		t.Fatalf("expected ok=false for missing hash")
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, nil)
	s.Upsert("aaa", "persisted summary", []float64{1, 2, 3})

	reopened := Open(dir, nil)
	summary, ok := reopened.Summary("aaa")
	if !ok || summary != "persisted summary" {
		t.Fatalf("summary after reopen = %q, ok=%v", summary, ok)
	}
}

func TestOpenToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "embeddings.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s := Open(dir, nil)
	if _, ok := s.Summary("anything"); ok {
		t.Fatalf("expected empty store after corrupt file")
	}
}

func TestNearestOnEmptyStoreReturnsNoNeighbors(t *testing.T) {
	s := Open(t.TempDir(), nil)
	if got := s.Nearest([]float64{1, 0}, 5); len(got) != 0 {
		t.Fatalf("neighbors = %v, want none", got)
	}
}
