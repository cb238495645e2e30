// Package contextdb is the ContextDatabase facade of spec §4.F: the only
// component above it that touches BlobStore, IndexDB, or DeltaEngine
// directly. It is grounded on kai-cli/internal/snapshot.Creator, which
// plays the same role in the teacher (a facade wrapping a multi-step
// write — module nodes, then file nodes — behind one call), generalized
// here to the blob-write-then-index-transaction sequencing the domain
// requires.
package contextdb

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cvc-dev/cvc/internal/blobstore"
	"github.com/cvc-dev/cvc/internal/codec"
	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/deltaengine"
	"github.com/cvc-dev/cvc/internal/indexdb"
	"github.com/cvc-dev/cvc/internal/model"
	"github.com/cvc-dev/cvc/internal/semanticstore"
)

// DB is the ContextDatabase facade.
type DB struct {
	index    *indexdb.DB
	blobs    *blobstore.Store
	delta    *deltaengine.Engine
	semantic *semanticstore.Store // nil if disabled
	log      *slog.Logger
}

// New assembles a ContextDatabase over the given tiers. semantic may be
// nil when VECTOR_ENABLED is false.
func New(index *indexdb.DB, blobs *blobstore.Store, delta *deltaengine.Engine, semantic *semanticstore.Store, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{index: index, blobs: blobs, delta: delta, semantic: semantic, log: logger.With("component", "contextdb")}
}

// StoreCommitInput is the canonicalized-but-not-yet-hashed candidate write.
type StoreCommitInput struct {
	ParentHashes []string
	Blob         model.ContentBlob
	Metadata     model.CommitMetadata
	// AdvanceBranch, if non-empty, is the branch whose head is advanced to
	// the new commit in the same transaction that inserts the commit row.
	AdvanceBranch string
	// ExpectedHead, if non-empty, makes the branch-head advance
	// conditional (CAS); a mismatch returns *cvcerr.Conflict and leaves
	// the store untouched beyond the orphaned (GC-able) blob.
	ExpectedHead string
	CreatedAtUnix int64
}

// StoreCommit canonicalizes and hashes blob, writes the blob via
// DeltaEngine (step 1), then writes the commit row and optionally advances
// a branch head in one IndexDB transaction (steps 2-3), per §4.F.
func (db *DB) StoreCommit(in StoreCommitInput) (model.CognitiveCommit, error) {
	for _, p := range in.ParentHashes {
		if _, err := db.index.GetCommit(p); err != nil {
			return model.CognitiveCommit{}, fmt.Errorf("contextdb: parent %s: %w", p, cvcerr.ErrInvariantViolation)
		}
	}

	canonicalBlob, err := codec.Canonicalize(in.Blob)
	if err != nil {
		return model.CognitiveCommit{}, fmt.Errorf("contextdb: canonicalize blob: %w", cvcerr.ErrEncodingError)
	}
	contentHash := codec.SHA256Hex(canonicalBlob)

	writeIn := deltaengine.WriteInput{
		CanonicalBlob:  canonicalBlob,
		ContentHash:    contentHash,
		HasPredecessor: len(in.ParentHashes) > 0,
	}
	if len(in.ParentHashes) > 0 {
		count, anchorHash, err := db.index.CountSinceAnchor(in.ParentHashes[0])
		if err != nil {
			return model.CognitiveCommit{}, fmt.Errorf("contextdb: count since anchor: %w", err)
		}
		writeIn.CommitsSinceAnchor = count
		writeIn.AnchorContentHash = anchorHash
	}

	writeResult, err := db.delta.Write(writeIn)
	if err != nil {
		return model.CognitiveCommit{}, fmt.Errorf("contextdb: write blob: %w", err)
	}

	in.Metadata.IsDelta = writeResult.Kind == model.BlobDelta
	canonicalMeta, err := codec.Canonicalize(in.Metadata)
	if err != nil {
		return model.CognitiveCommit{}, fmt.Errorf("contextdb: canonicalize metadata: %w", cvcerr.ErrEncodingError)
	}
	commitHash := codec.CommitHash(in.ParentHashes, canonicalBlob, canonicalMeta)

	commit := model.CognitiveCommit{
		CommitHash:    commitHash,
		ParentHashes:  append([]string{}, in.ParentHashes...),
		ContentHash:   contentHash,
		Metadata:      in.Metadata,
		CreatedAtUnix: in.CreatedAtUnix,
	}

	if err := db.index.InsertCommitAndAdvanceBranch(commit, in.AdvanceBranch, in.ExpectedHead); err != nil {
		return model.CognitiveCommit{}, err
	}
	return commit, nil
}

// RetrieveBlob reconstructs and verifies the ContentBlob stored under
// contentHash.
func (db *DB) RetrieveBlob(contentHash string) (model.ContentBlob, error) {
	canonical, err := db.delta.Reconstruct(contentHash)
	if err != nil {
		return model.ContentBlob{}, err
	}
	var blob model.ContentBlob
	if err := json.Unmarshal(canonical, &blob); err != nil {
		return model.ContentBlob{}, fmt.Errorf("contextdb: decode blob: %w", cvcerr.ErrEncodingError)
	}
	return blob, nil
}

// GetCommit resolves an exact commit hash.
func (db *DB) GetCommit(hash string) (model.CognitiveCommit, error) { return db.index.GetCommit(hash) }

// GetBranch resolves a branch by name.
func (db *DB) GetBranch(name string) (model.BranchPointer, error) { return db.index.GetBranch(name) }

// ListBranches returns every branch.
func (db *DB) ListBranches() ([]model.BranchPointer, error) { return db.index.ListBranches() }

// UpsertBranch inserts or replaces a branch row.
func (db *DB) UpsertBranch(b model.BranchPointer) error { return db.index.UpsertBranch(b) }

// SetBranchHead advances a branch's head unconditionally, outside the
// transactional commit path.
func (db *DB) SetBranchHead(name, hash string) error { return db.index.SetBranchHead(name, hash) }

// SetBranchStatus updates a branch's lifecycle status.
func (db *DB) SetBranchStatus(name string, status model.BranchStatus) error {
	return db.index.SetBranchStatus(name, status)
}

// Ancestors returns every ancestor hash of hash, per IndexDB's
// parent_edges table.
func (db *DB) Ancestors(hash string) ([]string, error) { return db.index.Ancestors(hash) }

// MatchPrefix exposes IndexDB's short-hash prefix search to internal/ref.
func (db *DB) MatchPrefix(prefix string, limit int) ([]string, error) {
	return db.index.MatchPrefix(prefix, limit)
}

// LCA computes the lowest common ancestor of hashA and hashB by an
// interleaved bidirectional BFS over the parent-edge DAG (spec §4.H step
// 1): both frontiers expand one hop per round into a shared "seen by whom"
// map; the first hash marked by both sides is the LCA. Returns "" if the
// histories are disjoint.
func (db *DB) LCA(hashA, hashB string) (string, error) {
	if hashA == hashB {
		return hashA, nil
	}
	seenA := map[string]bool{hashA: true}
	seenB := map[string]bool{hashB: true}
	frontierA := []string{hashA}
	frontierB := []string{hashB}

	if seenB[hashA] {
		return hashA, nil
	}
	if seenA[hashB] {
		return hashB, nil
	}

	for len(frontierA) > 0 || len(frontierB) > 0 {
		if len(frontierA) > 0 {
			var next []string
			for _, h := range frontierA {
				parents, err := db.index.Parents(h)
				if err != nil {
					return "", err
				}
				for _, p := range parents {
					if seenB[p] {
						return p, nil
					}
					if !seenA[p] {
						seenA[p] = true
						next = append(next, p)
					}
				}
			}
			frontierA = next
		}
		if len(frontierB) > 0 {
			var next []string
			for _, h := range frontierB {
				parents, err := db.index.Parents(h)
				if err != nil {
					return "", err
				}
				for _, p := range parents {
					if seenA[p] {
						return p, nil
					}
					if !seenB[p] {
						seenB[p] = true
						next = append(next, p)
					}
				}
			}
			frontierB = next
		}
	}
	return "", nil
}
