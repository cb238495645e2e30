package deltaengine

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cvc-dev/cvc/internal/blobstore"
	"github.com/cvc-dev/cvc/internal/codec"
	"github.com/cvc-dev/cvc/internal/model"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	store, err := blobstore.Open(filepath.Join(t.TempDir(), "objects"), nil)
	if err != nil {
		t.Fatalf("open blobstore: %v", err)
	}
	return New(store, cfg, nil)
}

func defaultConfig() Config {
	return Config{ZstdLevel: 3, DeltaRatio: 0.5, DeltaMinSize: 4096, AnchorInterval: 10}
}

func TestWriteFirstCommitIsAnchor(t *testing.T) {
	e := newEngine(t, defaultConfig())
	canonical := []byte(`{"messages":[{"content":"hello","role":"user"}]}`)
	hash := codec.SHA256Hex(canonical)

	result, err := e.Write(WriteInput{CanonicalBlob: canonical, ContentHash: hash, HasPredecessor: false})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if result.Kind != model.BlobAnchor {
		t.Fatalf("kind = %v, want anchor", result.Kind)
	}

	got, err := e.Reconstruct(hash)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if string(got) != string(canonical) {
		t.Fatalf("reconstructed bytes mismatch")
	}
}

func TestWriteForcesAnchorWhenIntervalIsOne(t *testing.T) {
	cfg := defaultConfig()
	cfg.AnchorInterval = 1
	e := newEngine(t, cfg)

	big := strings.Repeat("x", int(cfg.DeltaMinSize)+100)
	canonicalAnchor := []byte(`{"messages":[{"content":"` + big + `","role":"user"}]}`)
	anchorHash := codec.SHA256Hex(canonicalAnchor)
	if _, err := e.Write(WriteInput{CanonicalBlob: canonicalAnchor, ContentHash: anchorHash, HasPredecessor: false}); err != nil {
		t.Fatalf("write anchor: %v", err)
	}

	canonicalNext := []byte(`{"messages":[{"content":"` + big + `y","role":"user"}]}`)
	nextHash := codec.SHA256Hex(canonicalNext)
	result, err := e.Write(WriteInput{
		CanonicalBlob:      canonicalNext,
		ContentHash:        nextHash,
		HasPredecessor:     true,
		AnchorContentHash:  anchorHash,
		CommitsSinceAnchor: 1, // with AnchorInterval == 1 every candidate is forced to an anchor
	})
	if err != nil {
		t.Fatalf("write next: %v", err)
	}
	if result.Kind != model.BlobAnchor {
		t.Fatalf("kind = %v, want anchor when ANCHOR_INTERVAL=1", result.Kind)
	}
}

func TestWriteProducesDeltaWithinInterval(t *testing.T) {
	cfg := defaultConfig()
	e := newEngine(t, cfg)

	big := strings.Repeat("x", int(cfg.DeltaMinSize)+1000)
	canonicalAnchor := []byte(`{"messages":[{"content":"` + big + `","role":"user"}]}`)
	anchorHash := codec.SHA256Hex(canonicalAnchor)
	if _, err := e.Write(WriteInput{CanonicalBlob: canonicalAnchor, ContentHash: anchorHash, HasPredecessor: false}); err != nil {
		t.Fatalf("write anchor: %v", err)
	}

	// A small appendix to the same large prefix should compress very well
	// against the anchor dictionary, well under the 0.5 ratio guard.
	canonicalDelta := []byte(`{"messages":[{"content":"` + big + `-appendix","role":"user"}]}`)
	deltaHash := codec.SHA256Hex(canonicalDelta)
	result, err := e.Write(WriteInput{
		CanonicalBlob:      canonicalDelta,
		ContentHash:        deltaHash,
		HasPredecessor:     true,
		AnchorContentHash:  anchorHash,
		CommitsSinceAnchor: 1,
	})
	if err != nil {
		t.Fatalf("write delta: %v", err)
	}
	if result.Kind != model.BlobDelta {
		t.Fatalf("kind = %v, want delta", result.Kind)
	}
	if result.AnchorHash != anchorHash {
		t.Fatalf("anchor hash = %s, want %s", result.AnchorHash, anchorHash)
	}

	got, err := e.Reconstruct(deltaHash)
	if err != nil {
		t.Fatalf("reconstruct delta: %v", err)
	}
	if string(got) != string(canonicalDelta) {
		t.Fatalf("reconstructed delta bytes mismatch")
	}
}

func TestVerifyDeletesBlobOnMismatch(t *testing.T) {
	e := newEngine(t, defaultConfig())
	canonical := []byte(`{"messages":[]}`)
	hash := codec.SHA256Hex(canonical)

	// Store a record whose payload is not a valid zstd frame, bypassing
	// Write, so Reconstruct fails and verify must discard it.
	if err := e.store.Put(hash, []byte("not a valid zstd frame"), int64(len(canonical)), model.BlobAnchor, ""); err != nil {
		t.Fatalf("put corrupt record: %v", err)
	}

	if err := e.verify(hash); err == nil {
		t.Fatalf("expected verify to fail on corrupt blob")
	}
	if e.store.Has(hash) {
		t.Fatalf("expected corrupt blob to be deleted after failed verification")
	}
}

func TestWriteFallsBackToAnchorBelowMinSize(t *testing.T) {
	cfg := defaultConfig()
	e := newEngine(t, cfg)

	canonicalAnchor := []byte(`{"messages":[{"content":"` + strings.Repeat("x", int(cfg.DeltaMinSize)+100) + `","role":"user"}]}`)
	anchorHash := codec.SHA256Hex(canonicalAnchor)
	if _, err := e.Write(WriteInput{CanonicalBlob: canonicalAnchor, ContentHash: anchorHash, HasPredecessor: false}); err != nil {
		t.Fatalf("write anchor: %v", err)
	}

	tiny := []byte(`{"messages":[{"content":"hi","role":"user"}]}`)
	tinyHash := codec.SHA256Hex(tiny)
	result, err := e.Write(WriteInput{
		CanonicalBlob:      tiny,
		ContentHash:        tinyHash,
		HasPredecessor:     true,
		AnchorContentHash:  anchorHash,
		CommitsSinceAnchor: 1,
	})
	if err != nil {
		t.Fatalf("write tiny: %v", err)
	}
	if result.Kind != model.BlobAnchor {
		t.Fatalf("kind = %v, want anchor for content below DELTA_MIN_SIZE", result.Kind)
	}
}
