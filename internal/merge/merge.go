// Package merge implements the MergeResolver of spec §4.H: lowest-common
// ancestor discovery (delegated to contextdb.DB.LCA) and three-way
// message-set synthesis. It is grounded on kai-core/merge's MergeUnit/
// Conflict/Resolution vocabulary and its Merger.mergeFile fast-path style
// (equality short-circuits before falling into the general case),
// generalized from file-content units to message units keyed by canonical
// content hash.
package merge

import (
	"fmt"
	"log/slog"

	"github.com/cvc-dev/cvc/internal/codec"
	"github.com/cvc-dev/cvc/internal/contextdb"
	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

// Synthesizer is the optional front-end-provided semantic-merge callback
// of spec §6.5. A nil Synthesizer, or one that returns an error, yields an
// empty synthesis string without aborting the merge.
type Synthesizer func(base, ours, theirs []model.Message) (string, error)

// Resolver implements merge() over a ContextDatabase.
type Resolver struct {
	db  *contextdb.DB
	log *slog.Logger
}

// New returns a Resolver over db.
func New(db *contextdb.DB, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{db: db, log: logger.With("component", "merge")}
}

// Input describes one merge invocation.
type Input struct {
	SourceBranch     string
	TargetBranch     string
	SourceHead       string
	TargetHead       string
	SourceTimestamp  float64
	TargetTimestamp  float64
	Synthesize       Synthesizer
}

// Result is the outcome of a successful three-way merge, ready to be
// committed by the caller (Engine owns the actual StoreCommit call so it
// can attach session-specific metadata fields).
type Result struct {
	LCA             string
	MergedMessages  []model.Message
	Synthesis       string
}

// Resolve computes the LCA of in.SourceHead/in.TargetHead, reconstructs
// the three ContentBlobs, and performs the message-set three-way merge of
// spec §4.H steps 1-4. It does not write anything; Engine.Merge commits
// the result.
func (r *Resolver) Resolve(in Input) (Result, error) {
	lca, err := r.db.LCA(in.TargetHead, in.SourceHead)
	if err != nil {
		return Result{}, fmt.Errorf("merge: lca: %w", err)
	}
	if lca == "" {
		return Result{}, fmt.Errorf("merge: %s and %s share no ancestor: %w", in.SourceBranch, in.TargetBranch, cvcerr.ErrNoCommonAncestor)
	}

	baseBlob, ours, theirs, err := r.loadThreeWay(lca, in.TargetHead, in.SourceHead)
	if err != nil {
		return Result{}, err
	}

	merged, err := mergeMessageSets(baseBlob.Messages, ours.Messages, theirs.Messages, in.TargetTimestamp, in.SourceTimestamp)
	if err != nil {
		return Result{}, err
	}

	synthesis := ""
	if in.Synthesize != nil {
		s, err := in.Synthesize(baseBlob.Messages, ours.Messages, theirs.Messages)
		if err != nil {
			r.log.Warn("synthesis callback failed, proceeding with empty synthesis", "error", err)
		} else {
			synthesis = s
		}
	}

	return Result{LCA: lca, MergedMessages: merged, Synthesis: synthesis}, nil
}

func (r *Resolver) loadThreeWay(lca, targetHead, sourceHead string) (base, ours, theirs model.ContentBlob, err error) {
	baseCommit, err := r.db.GetCommit(lca)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: load base: %w", err)
	}
	targetCommit, err := r.db.GetCommit(targetHead)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: load target head: %w", err)
	}
	sourceCommit, err := r.db.GetCommit(sourceHead)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: load source head: %w", err)
	}

	base, err = r.db.RetrieveBlob(baseCommit.ContentHash)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: retrieve base blob: %w", err)
	}
	ours, err = r.db.RetrieveBlob(targetCommit.ContentHash)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: retrieve target blob: %w", err)
	}
	theirs, err = r.db.RetrieveBlob(sourceCommit.ContentHash)
	if err != nil {
		return model.ContentBlob{}, model.ContentBlob{}, model.ContentBlob{}, fmt.Errorf("merge: retrieve source blob: %w", err)
	}
	return base, ours, theirs, nil
}

// mergeMessageSets implements spec §4.H step 3: messages are an ordered
// multiset keyed by canonical content hash; the result is
// base ∪ (ours \ base) ∪ (theirs \ base) with original ordering preserved
// within each contribution. When target and source timestamps tie, ours
// is still emitted before theirs (a stable, deterministic choice); the
// comparison is only consulted to decide that ordering explicitly rather
// than leaving it to iteration order.
func mergeMessageSets(base, ours, theirs []model.Message, targetTimestamp, sourceTimestamp float64) ([]model.Message, error) {
	baseKeys, err := keysOf(base)
	if err != nil {
		return nil, err
	}

	oursOnly, oursKeys, err := onlyNew(ours, baseKeys)
	if err != nil {
		return nil, err
	}
	theirsOnly, _, err := onlyNew(theirs, mergeKeySets(baseKeys, oursKeys))
	if err != nil {
		return nil, err
	}

	result := make([]model.Message, 0, len(base)+len(oursOnly)+len(theirsOnly))
	result = append(result, base...)
	if targetTimestamp <= sourceTimestamp {
		result = append(result, oursOnly...)
		result = append(result, theirsOnly...)
	} else {
		result = append(result, theirsOnly...)
		result = append(result, oursOnly...)
	}
	return result, nil
}

func keysOf(messages []model.Message) (map[string]bool, error) {
	keys := make(map[string]bool, len(messages))
	for _, m := range messages {
		k, err := messageKey(m)
		if err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, nil
}

func onlyNew(messages []model.Message, seen map[string]bool) ([]model.Message, map[string]bool, error) {
	out := make([]model.Message, 0, len(messages))
	added := make(map[string]bool)
	for _, m := range messages {
		k, err := messageKey(m)
		if err != nil {
			return nil, nil, err
		}
		if seen[k] || added[k] {
			continue
		}
		added[k] = true
		out = append(out, m)
	}
	return out, added, nil
}

func mergeKeySets(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func messageKey(m model.Message) (string, error) {
	canonical, err := codec.Canonicalize(m)
	if err != nil {
		return "", fmt.Errorf("merge: canonicalize message: %w", cvcerr.ErrEncodingError)
	}
	return codec.SHA256Hex(canonical), nil
}
