// Package deltaengine implements the anchor/delta decision and
// reconstruction-by-replay of spec §4.D, storing compressed payloads
// through blobstore.Store. Zstandard dictionary compression follows the
// pattern of kai-cli/internal/remote/client.go's BuildPack (zstd.NewWriter
// with a dictionary option), generalized here to use an anchor's raw bytes
// as the dictionary rather than a pack-level shared dictionary.
package deltaengine

import (
	"fmt"
	"log/slog"

	"github.com/cvc-dev/cvc/internal/blobstore"
	"github.com/cvc-dev/cvc/internal/codec"
	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

// Engine decides between anchor and delta storage and reconstructs content
// by chain replay.
type Engine struct {
	store            *blobstore.Store
	zstdLevel        int
	deltaRatio       float64
	deltaMinSize     int64
	anchorInterval   int
	log              *slog.Logger
}

// Config bundles the tunables the decision rule consults (spec §6.4).
type Config struct {
	ZstdLevel      int
	DeltaRatio     float64
	DeltaMinSize   int64
	AnchorInterval int
}

// New returns an Engine backed by store.
func New(store *blobstore.Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:          store,
		zstdLevel:      cfg.ZstdLevel,
		deltaRatio:     cfg.DeltaRatio,
		deltaMinSize:   cfg.DeltaMinSize,
		anchorInterval: cfg.AnchorInterval,
		log:            logger.With("component", "deltaengine"),
	}
}

// WriteInput describes the candidate write and the ancestry context the
// caller (ContextDatabase) has already resolved.
type WriteInput struct {
	// CanonicalBlob is the canonical bytes of the candidate ContentBlob.
	CanonicalBlob []byte
	// ContentHash is sha256(CanonicalBlob); the key under which the blob
	// will be stored.
	ContentHash string
	// HasPredecessor is false only for the very first commit on a history.
	HasPredecessor bool
	// AnchorContentHash is the content hash of the nearest anchor reachable
	// from the predecessor; empty if none exists yet.
	AnchorContentHash string
	// CommitsSinceAnchor counts commits between the candidate and
	// AnchorContentHash (exclusive of the anchor itself).
	CommitsSinceAnchor int
}

// WriteResult reports how the blob was actually stored.
type WriteResult struct {
	Kind       model.BlobKind
	AnchorHash string // empty if Kind == anchor
}

// Write stores the candidate blob, choosing anchor or delta per the
// decision rule of spec §4.D, then verifies the write by replaying the
// stored record back through Reconstruct and recomparing digests before
// returning, deleting the shard on mismatch.
func (e *Engine) Write(in WriteInput) (WriteResult, error) {
	if e.store.Has(in.ContentHash) {
		existing, err := e.store.Get(in.ContentHash)
		if err != nil {
			return WriteResult{}, err
		}
		return WriteResult{Kind: existing.Kind, AnchorHash: existing.AnchorHash}, nil
	}

	// Spec §4.D: write an anchor when there is no predecessor, or when the
	// candidate would be the AnchorInterval-th commit after the last
	// reachable anchor (CommitsSinceAnchor deltas already sit between them,
	// plus the candidate itself), so no anchor carries more than
	// AnchorInterval-1 deltas.
	writeAnchor := !in.HasPredecessor || in.AnchorContentHash == "" || in.CommitsSinceAnchor+1 >= e.anchorInterval

	if !writeAnchor {
		result, ok, err := e.tryDelta(in)
		if err != nil {
			return WriteResult{}, err
		}
		if ok {
			if verifyErr := e.verify(in.ContentHash); verifyErr != nil {
				return WriteResult{}, verifyErr
			}
			return result, nil
		}
		// Delta rejected by the size guard; fall through to anchor.
	}

	enc, err := blobstore.NewEncoder(e.zstdLevel, nil)
	if err != nil {
		return WriteResult{}, err
	}
	compressed := enc.EncodeAll(in.CanonicalBlob, nil)
	enc.Close()

	if err := e.store.Put(in.ContentHash, compressed, int64(len(in.CanonicalBlob)), model.BlobAnchor, ""); err != nil {
		return WriteResult{}, err
	}
	if err := e.verify(in.ContentHash); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Kind: model.BlobAnchor}, nil
}

func (e *Engine) tryDelta(in WriteInput) (WriteResult, bool, error) {
	anchorRecord, err := e.store.Get(in.AnchorContentHash)
	if err != nil {
		return WriteResult{}, false, err
	}
	anchorBytes, err := decompress(anchorRecord.Compressed, nil, anchorRecord.DecompressedSize)
	if err != nil {
		return WriteResult{}, false, err
	}

	enc, err := blobstore.NewEncoder(e.zstdLevel, anchorBytes)
	if err != nil {
		return WriteResult{}, false, err
	}
	compressed := enc.EncodeAll(in.CanonicalBlob, nil)
	enc.Close()

	anchorSize := int64(len(anchorBytes))
	if int64(len(in.CanonicalBlob)) < e.deltaMinSize {
		return WriteResult{}, false, nil
	}
	if float64(len(compressed)) > e.deltaRatio*float64(anchorSize) {
		return WriteResult{}, false, nil
	}

	if err := e.store.Put(in.ContentHash, compressed, int64(len(in.CanonicalBlob)), model.BlobDelta, in.AnchorContentHash); err != nil {
		return WriteResult{}, false, err
	}
	return WriteResult{Kind: model.BlobDelta, AnchorHash: in.AnchorContentHash}, true, nil
}

// verify replays the just-written record through Reconstruct (decompress,
// and for a delta, replay against its anchor) and requires the recomputed
// digest to match contentHash, per spec §4.D's post-write invariant. On
// failure the partially-written shard is deleted rather than left behind.
func (e *Engine) verify(contentHash string) error {
	if _, err := e.Reconstruct(contentHash); err != nil {
		if delErr := e.store.Delete(contentHash); delErr != nil {
			e.log.Error("failed to delete blob after verification failure", "content_hash", contentHash, "delete_error", delErr)
		} else {
			e.log.Error("post-write verification failed, deleted blob", "content_hash", contentHash, "error", err)
		}
		return fmt.Errorf("deltaengine: write verification failed for %s: %w", contentHash, cvcerr.ErrIntegrityError)
	}
	return nil
}

// Reconstruct returns the canonical bytes stored under contentHash,
// replaying the delta chain to its anchor if necessary, and verifies the
// digest before returning.
func (e *Engine) Reconstruct(contentHash string) ([]byte, error) {
	record, err := e.store.Get(contentHash)
	if err != nil {
		return nil, err
	}

	var plain []byte
	switch record.Kind {
	case model.BlobAnchor:
		plain, err = decompress(record.Compressed, nil, record.DecompressedSize)
	case model.BlobDelta:
		var anchorRecord blobstore.Record
		anchorRecord, err = e.store.Get(record.AnchorHash)
		if err != nil {
			return nil, err
		}
		var anchorBytes []byte
		anchorBytes, err = decompress(anchorRecord.Compressed, nil, anchorRecord.DecompressedSize)
		if err != nil {
			return nil, err
		}
		plain, err = decompress(record.Compressed, anchorBytes, record.DecompressedSize)
	default:
		return nil, fmt.Errorf("deltaengine: unknown blob kind for %s: %w", contentHash, cvcerr.ErrIntegrityError)
	}
	if err != nil {
		return nil, err
	}

	got := codec.SHA256Hex(plain)
	if got != contentHash {
		return nil, fmt.Errorf("deltaengine: reconstructed digest mismatch for %s: %w", contentHash, cvcerr.ErrIntegrityError)
	}
	return plain, nil
}

func decompress(compressed, dict []byte, expectedSize int64) ([]byte, error) {
	dec, err := blobstore.NewDecoder(dict)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, make([]byte, 0, expectedSize))
	if err != nil {
		return nil, fmt.Errorf("deltaengine: decompress: %w", cvcerr.ErrIntegrityError)
	}
	return out, nil
}
