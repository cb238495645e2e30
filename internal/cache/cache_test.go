package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cvc-dev/cvc/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	snap := Snapshot{
		Messages:         []model.Message{{Role: model.RoleUser, Content: "hi"}},
		TimestampSeconds: 123.5,
		Mode:             "cli",
		Branch:           "main",
	}
	if err := c.Write(snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok := c.Read()
	if !ok {
		t.Fatalf("expected ok=true after write")
	}
	if got.Branch != "main" || len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestReadMissingFileReturnsNotOK(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	_, ok := c.Read()
	if ok {
		t.Fatalf("expected ok=false for missing cache file")
	}
}

func TestReadCorruptFileReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context_cache.json")
	c := New(path, nil)
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	_, ok := c.Read()
	if ok {
		t.Fatalf("expected ok=false for corrupt cache file")
	}
}

func TestClearRemovesFile(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	if err := c.Write(Snapshot{Branch: "main"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Read(); ok {
		t.Fatalf("expected ok=false after clear")
	}
}

func TestClearOnMissingFileIsNotAnError(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	if err := c.Clear(); err != nil {
		t.Fatalf("clear on missing file should be a no-op: %v", err)
	}
}

func TestModTimeUnixReportsAbsentFile(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	if _, ok := c.ModTimeUnix(); ok {
		t.Fatalf("expected ok=false for missing cache file")
	}
}

func TestModTimeUnixAfterWrite(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "context_cache.json"), nil)
	if err := c.Write(Snapshot{Branch: "main"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	mtime, ok := c.ModTimeUnix()
	if !ok {
		t.Fatalf("expected ok=true after write")
	}
	if mtime <= 0 {
		t.Fatalf("mtime = %v, want positive unix seconds", mtime)
	}
}
