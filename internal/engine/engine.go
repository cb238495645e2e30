// Package engine implements the Engine of spec §4.G: the sole mutator of
// on-disk state, owning the active branch name, the in-memory context
// window, the auto-commit turn counter, and the PersistentCache. It is
// grounded on kai-cli/internal/workspace.Manager for its
// BeginTx/validate/write transactional style when creating branches, and
// on cvc/operations/engine.py's CVCEngine for the operation surface
// itself — adapted everywhere the spec's explicit redesigns diverge from
// the original (branch() leaves the window untouched; auto-restore
// follows a strict head-then-cache priority rather than "whichever has
// more messages"; rollback stamps a fresh metadata timestamp).
package engine

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cvc-dev/cvc/internal/blobstore"
	"github.com/cvc-dev/cvc/internal/cache"
	"github.com/cvc-dev/cvc/internal/config"
	"github.com/cvc-dev/cvc/internal/contextdb"
	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/deltaengine"
	"github.com/cvc-dev/cvc/internal/indexdb"
	"github.com/cvc-dev/cvc/internal/merge"
	"github.com/cvc-dev/cvc/internal/model"
	"github.com/cvc-dev/cvc/internal/ref"
	"github.com/cvc-dev/cvc/internal/semanticstore"
)

var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// Engine is one session's handle onto a repository at cfg.RepoRoot.
type Engine struct {
	cfg   config.Config
	paths config.Paths

	index    *indexdb.DB
	blobs    *blobstore.Store
	delta    *deltaengine.Engine
	semantic *semanticstore.Store // nil when disabled
	ctxdb    *contextdb.DB
	merger   *merge.Resolver
	cacheF   *cache.Cache

	log *slog.Logger

	activeBranch   string
	window         []model.Message
	reasoningTrace string
	toolOutputs    map[string]string
	sourceFiles    map[string]string

	assistantTurns int
	autoCommitOn   bool
	currentGitSHA  string

	// sessionID identifies this Engine session as the actor in audit_log
	// rows (SPEC_FULL.md §C); it is not part of any hashed or persisted
	// commit data.
	sessionID string
}

// audit appends a best-effort audit_log row; failures are logged and
// swallowed, matching the ambient-observability treatment of SPEC_FULL.md
// §C — an audit-log write failure never fails the mutating operation it
// describes.
func (e *Engine) audit(operation, commitHash, branch, detail string) {
	if err := e.index.InsertAuditEvent(indexdb.AuditEvent{
		TimestampUnix: time.Now().Unix(),
		Actor:         e.sessionID,
		Operation:     operation,
		CommitHash:    commitHash,
		Branch:        branch,
		Detail:        detail,
	}); err != nil {
		e.log.Warn("failed to append audit log event", "operation", operation, "error", err)
	}
}

// Open initializes or resumes a repository at cfg.RepoRoot: it creates the
// on-disk layout if absent, opens every storage tier, performs first-run
// genesis (spec §4.G.3) if no branch exists, and hydrates the context
// window per the auto-restore priority of §4.G.8.
func Open(cfg config.Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paths := config.ResolvePaths(cfg)
	if err := config.EnsureDirs(paths); err != nil {
		return nil, err
	}

	index, err := indexdb.Open(paths.DB, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.Open(paths.Objects, logger)
	if err != nil {
		return nil, err
	}
	deltaEng := deltaengine.New(blobs, deltaengine.Config{
		ZstdLevel:      cfg.ZstdLevel,
		DeltaRatio:     cfg.DeltaRatio,
		DeltaMinSize:   cfg.DeltaMinSize,
		AnchorInterval: cfg.AnchorInterval,
	}, logger)

	var semantic *semanticstore.Store
	if cfg.VectorEnabled {
		semantic = semanticstore.Open(paths.SemanticDB, logger)
	}

	ctxdb := contextdb.New(index, blobs, deltaEng, semantic, logger)

	e := &Engine{
		cfg:          cfg,
		paths:        paths,
		index:        index,
		blobs:        blobs,
		delta:        deltaEng,
		semantic:     semantic,
		ctxdb:        ctxdb,
		merger:       merge.New(ctxdb, logger),
		cacheF:       cache.New(paths.Cache, logger),
		log:          logger.With("component", "engine"),
		activeBranch: cfg.DefaultBranch,
		toolOutputs:  map[string]string{},
		sourceFiles:  map[string]string{},
		autoCommitOn: true,
		sessionID:    uuid.NewString(),
	}

	if err := e.ensureGenesis(); err != nil {
		return nil, err
	}
	e.hydrateFromHead()
	return e, nil
}

// Close releases the underlying storage handles.
func (e *Engine) Close() error { return e.index.Close() }

func (e *Engine) ensureGenesis() error {
	branches, err := e.ctxdb.ListBranches()
	if err != nil {
		return err
	}
	if len(branches) > 0 {
		return nil
	}

	now := time.Now()
	if err := e.ctxdb.UpsertBranch(model.BranchPointer{
		Name:          e.cfg.DefaultBranch,
		HeadHash:      "",
		Status:        model.BranchActive,
		CreatedAtUnix: now.Unix(),
		Description:   "",
	}); err != nil {
		return err
	}
	e.activeBranch = e.cfg.DefaultBranch

	_, err = e.ctxdb.StoreCommit(contextdb.StoreCommitInput{
		ParentHashes: nil,
		Blob:         model.ContentBlob{Messages: []model.Message{}},
		Metadata: model.CommitMetadata{
			TimestampSeconds: secondsNow(now),
			AgentID:          e.cfg.AgentID,
			Mode:             toModelMode(e.cfg.Mode),
			Provider:         e.cfg.Provider,
			Model:            e.cfg.Model,
			Message:          "Genesis",
			CommitType:       model.CommitGenesis,
		},
		AdvanceBranch: e.cfg.DefaultBranch,
		ExpectedHead:  "",
		CreatedAtUnix: now.Unix(),
	})
	return err
}

func (e *Engine) hydrateFromHead() {
	branch, err := e.ctxdb.GetBranch(e.activeBranch)
	if err != nil || branch.HeadHash == "" {
		e.window = nil
		return
	}
	head, err := e.ctxdb.GetCommit(branch.HeadHash)
	if err != nil {
		e.window = nil
		return
	}
	blob, err := e.ctxdb.RetrieveBlob(head.ContentHash)
	if err != nil {
		e.log.Warn("failed to reconstruct head blob during auto-restore", "error", err)
		e.window = nil
		return
	}
	if len(blob.Messages) > 0 {
		e.window = blob.Messages
		e.reasoningTrace = blob.ReasoningTrace
		return
	}

	if snap, ok := e.cacheF.Read(); ok {
		if mtime, hasMtime := e.cacheF.ModTimeUnix(); hasMtime && mtime > float64(head.CreatedAtUnix) {
			if snap.Mode != "" && snap.Mode != string(e.cfg.Mode) {
				e.log.Info("persistent cache mode differs from current session mode", "cache_mode", snap.Mode, "session_mode", e.cfg.Mode)
			}
			e.window = snap.Messages
			return
		}
	}
	e.window = nil
}

// Status reports the session's current position.
type Status struct {
	ActiveBranch string
	HeadHash     string
	WindowSize   int
	TokenCount   int64
}

// Status returns the engine's current position (spec §6.1).
func (e *Engine) Status() (Status, error) {
	branch, err := e.ctxdb.GetBranch(e.activeBranch)
	if err != nil {
		return Status{}, err
	}
	return Status{
		ActiveBranch: e.activeBranch,
		HeadHash:     branch.HeadHash,
		WindowSize:   len(e.window),
		TokenCount:   approxTokenCount(e.window),
	}, nil
}

// PushMessage appends m to the context window, synchronously mirrors the
// window to the PersistentCache, and — if this push completes an
// assistant turn and crosses the auto-commit threshold — performs an
// internal auto-checkpoint commit (spec §4.G.1, §4.G.9).
func (e *Engine) PushMessage(m model.Message) error {
	e.window = append(e.window, m)
	if err := e.writeCache(); err != nil {
		e.log.Warn("failed to write persistent cache", "error", err)
	}
	if m.Role != model.RoleAssistant {
		return nil
	}
	e.assistantTurns++
	if !e.autoCommitOn || e.assistantTurns < e.cfg.AutoCommitInterval {
		return nil
	}
	total := e.assistantTurns
	e.assistantTurns = 0
	_, err := e.Commit(fmt.Sprintf("Auto-checkpoint at turn %d", total), model.CommitCheckpoint, nil)
	return err
}

// SetAutoCommit enables or disables the auto-commit hook of §4.G.9; a
// front-end that wants full manual control over commits calls this with
// false.
func (e *Engine) SetAutoCommit(enabled bool) { e.autoCommitOn = enabled }

// SetReasoningTrace attaches an opaque reasoning trace to the next commit.
func (e *Engine) SetReasoningTrace(trace string) { e.reasoningTrace = trace }

// AttachToolOutput records a tool-invocation result to be included in the
// next commit's ContentBlob.
func (e *Engine) AttachToolOutput(toolCallID, result string) { e.toolOutputs[toolCallID] = result }

// AttachSourceFile records a relative-path -> content-hash reference to be
// included in the next commit's ContentBlob.
func (e *Engine) AttachSourceFile(relPath, contentHash string) { e.sourceFiles[relPath] = contentHash }

// CurrentWindow returns a read-only snapshot of the context window.
func (e *Engine) CurrentWindow() []model.Message {
	out := make([]model.Message, len(e.window))
	copy(out, e.window)
	return out
}

// ResetWindow clears the window and rewrites the cache to match.
func (e *Engine) ResetWindow() error {
	e.window = nil
	e.reasoningTrace = ""
	e.toolOutputs = map[string]string{}
	e.sourceFiles = map[string]string{}
	return e.writeCache()
}

func (e *Engine) writeCache() error {
	return e.cacheF.Write(cache.Snapshot{
		Messages:         e.CurrentWindow(),
		TimestampSeconds: secondsNow(time.Now()),
		Mode:             string(e.cfg.Mode),
		Branch:           e.activeBranch,
	})
}

// Commit builds a ContentBlob from the current window and attachments,
// writes it through ContextDatabase, and advances the active branch head
// (spec §4.G.2).
func (e *Engine) Commit(message string, commitType model.CommitType, tags []string) (model.CognitiveCommit, error) {
	branch, err := e.ctxdb.GetBranch(e.activeBranch)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	var parents []string
	if branch.HeadHash != "" {
		parents = []string{branch.HeadHash}
	}

	now := time.Now()
	blob := model.ContentBlob{
		Messages:       e.CurrentWindow(),
		ReasoningTrace: e.reasoningTrace,
		ToolOutputs:    copyStrMap(e.toolOutputs),
		SourceFiles:    copyStrMap(e.sourceFiles),
	}
	if len(blob.Messages) > 0 {
		tc := approxTokenCount(blob.Messages)
		blob.TokenCount = &tc
	}

	metadata := model.CommitMetadata{
		TimestampSeconds: secondsNow(now),
		AgentID:          e.cfg.AgentID,
		Mode:             toModelMode(e.cfg.Mode),
		Provider:         e.cfg.Provider,
		Model:            e.cfg.Model,
		GitCommitSHA:     e.currentGitSHA,
		Tags:             dedupTags(tags),
		Message:          message,
		CommitType:       commitType,
	}

	commit, err := e.ctxdb.StoreCommit(contextdb.StoreCommitInput{
		ParentHashes:  parents,
		Blob:          blob,
		Metadata:      metadata,
		AdvanceBranch: e.activeBranch,
		ExpectedHead:  branch.HeadHash,
		CreatedAtUnix: now.Unix(),
	})
	if err != nil {
		return model.CognitiveCommit{}, err
	}

	if e.semantic != nil && message != "" {
		e.semantic.Upsert(commit.CommitHash, message, embedText(message))
	}

	if err := e.cacheF.Clear(); err != nil {
		e.log.Warn("failed to clear persistent cache after commit", "error", err)
	}
	e.assistantTurns = 0
	e.toolOutputs = map[string]string{}
	e.sourceFiles = map[string]string{}
	e.audit("commit", commit.CommitHash, e.activeBranch, message)
	return commit, nil
}

// Branch creates a new branch pointer at the active branch's current
// head and switches to it. Per spec §4.G.4 this never touches the window
// or cache.
func (e *Engine) Branch(name, description string) (model.BranchPointer, error) {
	if !branchNamePattern.MatchString(name) {
		return model.BranchPointer{}, fmt.Errorf("engine: invalid branch name %q: %w", name, cvcerr.ErrInvariantViolation)
	}
	if _, err := e.ctxdb.GetBranch(name); err == nil {
		return model.BranchPointer{}, fmt.Errorf("engine: branch %q already exists: %w", name, cvcerr.ErrConflict)
	}
	current, err := e.ctxdb.GetBranch(e.activeBranch)
	if err != nil {
		return model.BranchPointer{}, err
	}

	bp := model.BranchPointer{
		Name:          name,
		HeadHash:      current.HeadHash,
		Status:        model.BranchActive,
		CreatedAtUnix: time.Now().Unix(),
		Description:   description,
		ParentBranch:  e.activeBranch,
	}
	if err := e.ctxdb.UpsertBranch(bp); err != nil {
		return model.BranchPointer{}, err
	}
	e.activeBranch = name
	e.audit("branch", bp.HeadHash, name, "created from "+bp.ParentBranch)
	return bp, nil
}

// Switch loads name's head blob into the window and makes it active
// (spec §4.G.5).
func (e *Engine) Switch(name string) error {
	branch, err := e.ctxdb.GetBranch(name)
	if err != nil {
		return err
	}
	if branch.HeadHash != "" {
		head, err := e.ctxdb.GetCommit(branch.HeadHash)
		if err != nil {
			return err
		}
		blob, err := e.ctxdb.RetrieveBlob(head.ContentHash)
		if err != nil {
			return err
		}
		e.window = blob.Messages
		e.reasoningTrace = blob.ReasoningTrace
	} else {
		e.window = nil
		e.reasoningTrace = ""
	}
	e.activeBranch = name
	e.audit("switch", branch.HeadHash, name, "")
	return e.writeCache()
}

// Restore time-travels to commitHashOrPrefix, replacing the window and
// appending a rollback commit (spec §4.G.6).
func (e *Engine) Restore(commitHashOrPrefix string) (model.CognitiveCommit, error) {
	targetHash, err := ref.Resolve(e.ctxdb, commitHashOrPrefix)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	target, err := e.ctxdb.GetCommit(targetHash)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	targetBlob, err := e.ctxdb.RetrieveBlob(target.ContentHash)
	if err != nil {
		return model.CognitiveCommit{}, err
	}

	e.window = targetBlob.Messages
	e.reasoningTrace = targetBlob.ReasoningTrace
	if err := e.writeCache(); err != nil {
		e.log.Warn("failed to write persistent cache during restore", "error", err)
	}

	branch, err := e.ctxdb.GetBranch(e.activeBranch)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	now := time.Now()
	metadata := model.CommitMetadata{
		TimestampSeconds: secondsNow(now),
		AgentID:          e.cfg.AgentID,
		Mode:             toModelMode(e.cfg.Mode),
		Provider:         e.cfg.Provider,
		Model:            e.cfg.Model,
		Message:          fmt.Sprintf("Restore to %s", target.ShortHash()),
		CommitType:       model.CommitRollback,
		RestoredFrom:     targetHash,
	}
	_, err = e.ctxdb.StoreCommit(contextdb.StoreCommitInput{
		ParentHashes:  []string{branch.HeadHash},
		Blob:          targetBlob,
		Metadata:      metadata,
		AdvanceBranch: e.activeBranch,
		ExpectedHead:  branch.HeadHash,
		CreatedAtUnix: now.Unix(),
	})
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	e.audit("restore", targetHash, e.activeBranch, "")
	return target, nil
}

// Merge performs the three-way merge of source into target (or the active
// branch, if target is empty), per spec §4.H.
func (e *Engine) Merge(source, target string, synthesize merge.Synthesizer) (model.CognitiveCommit, error) {
	if target == "" {
		target = e.activeBranch
	}
	if source == target {
		return model.CognitiveCommit{}, fmt.Errorf("engine: cannot merge %q into itself: %w", source, cvcerr.ErrNoCommonAncestor)
	}

	sourceBranch, err := e.ctxdb.GetBranch(source)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	targetBranch, err := e.ctxdb.GetBranch(target)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	sourceHead, err := e.ctxdb.GetCommit(sourceBranch.HeadHash)
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	targetHead, err := e.ctxdb.GetCommit(targetBranch.HeadHash)
	if err != nil {
		return model.CognitiveCommit{}, err
	}

	result, err := e.merger.Resolve(merge.Input{
		SourceBranch:    source,
		TargetBranch:    target,
		SourceHead:      sourceBranch.HeadHash,
		TargetHead:      targetBranch.HeadHash,
		SourceTimestamp: sourceHead.Metadata.TimestampSeconds,
		TargetTimestamp: targetHead.Metadata.TimestampSeconds,
		Synthesize:      synthesize,
	})
	if err != nil {
		return model.CognitiveCommit{}, err
	}

	blob := model.ContentBlob{
		Messages:       result.MergedMessages,
		ReasoningTrace: result.Synthesis,
		ToolOutputs:    e.mergeToolOutputs(sourceHead, targetHead),
	}
	if len(blob.Messages) > 0 {
		tc := approxTokenCount(blob.Messages)
		blob.TokenCount = &tc
	}

	now := time.Now()
	metadata := model.CommitMetadata{
		TimestampSeconds: secondsNow(now),
		AgentID:          e.cfg.AgentID,
		Mode:             toModelMode(e.cfg.Mode),
		Provider:         e.cfg.Provider,
		Model:            e.cfg.Model,
		Message:          fmt.Sprintf("Merge %q into %q", source, target),
		CommitType:       model.CommitMerge,
		SourceBranch:     source,
		TargetBranch:     target,
		LCA:              result.LCA,
	}

	commit, err := e.ctxdb.StoreCommit(contextdb.StoreCommitInput{
		ParentHashes:  []string{targetBranch.HeadHash, sourceBranch.HeadHash},
		Blob:          blob,
		Metadata:      metadata,
		AdvanceBranch: target,
		ExpectedHead:  targetBranch.HeadHash,
		CreatedAtUnix: now.Unix(),
	})
	if err != nil {
		return model.CognitiveCommit{}, err
	}
	if err := e.ctxdb.SetBranchStatus(source, model.BranchMerged); err != nil {
		e.log.Warn("failed to mark source branch merged", "branch", source, "error", err)
	}
	e.audit("merge", commit.CommitHash, target, "source="+source)
	return commit, nil
}

// mergeToolOutputs unions the tool_outputs of sourceHead and targetHead's
// reconstructed blobs. A key present in both wins for targetHead, the same
// "ours" precedence mergeMessageSets gives a tied timestamp. A failure to
// load either blob is advisory here (the merge itself already succeeded);
// it is logged and that side's outputs are simply omitted.
func (e *Engine) mergeToolOutputs(sourceHead, targetHead model.CognitiveCommit) map[string]string {
	out := map[string]string{}
	if sourceBlob, err := e.ctxdb.RetrieveBlob(sourceHead.ContentHash); err != nil {
		e.log.Warn("merge: failed to load source tool outputs", "commit_hash", sourceHead.CommitHash, "error", err)
	} else {
		for k, v := range sourceBlob.ToolOutputs {
			out[k] = v
		}
	}
	if targetBlob, err := e.ctxdb.RetrieveBlob(targetHead.ContentHash); err != nil {
		e.log.Warn("merge: failed to load target tool outputs", "commit_hash", targetHead.CommitHash, "error", err)
	} else {
		for k, v := range targetBlob.ToolOutputs {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Log yields commits from branchName's head (or the active branch's head,
// if branchName is empty) walking first parents, terminating at genesis or
// after limit items (spec §4.G.7). limit <= 0 means unbounded.
func (e *Engine) Log(branchName string, limit int) ([]model.CognitiveCommit, error) {
	if branchName == "" {
		branchName = e.activeBranch
	}
	branch, err := e.ctxdb.GetBranch(branchName)
	if err != nil {
		return nil, err
	}
	var out []model.CognitiveCommit
	cur := branch.HeadHash
	for cur != "" {
		if limit > 0 && len(out) >= limit {
			break
		}
		commit, err := e.ctxdb.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, commit)
		if len(commit.ParentHashes) == 0 {
			break
		}
		cur = commit.ParentHashes[0]
	}
	return out, nil
}

// ListBranches returns every branch in the repository.
func (e *Engine) ListBranches() ([]model.BranchPointer, error) { return e.ctxdb.ListBranches() }

// GetBlob resolves commitHashOrPrefix and returns its reconstructed
// ContentBlob.
func (e *Engine) GetBlob(commitHashOrPrefix string) (model.ContentBlob, error) {
	hash, err := ref.Resolve(e.ctxdb, commitHashOrPrefix)
	if err != nil {
		return model.ContentBlob{}, err
	}
	commit, err := e.ctxdb.GetCommit(hash)
	if err != nil {
		return model.ContentBlob{}, err
	}
	return e.ctxdb.RetrieveBlob(commit.ContentHash)
}

// SetGitLink records that gitSHA corresponds to commitHash, and remembers
// gitSHA as the "current" Git SHA stamped into subsequent commits'
// metadata (spec §4.G.2 step 3, §6.5).
func (e *Engine) SetGitLink(gitSHA, commitHash string) error {
	if err := e.index.SetGitLink(gitSHA, commitHash); err != nil {
		return err
	}
	e.currentGitSHA = gitSHA
	return nil
}

// RecallHit is one result of Recall.
type RecallHit struct {
	CommitHash string
	Snippet    string
	Source     string // "text", "deep" or "semantic"
}

// Recall performs the hybrid search supplementing the core contract
// (SPEC_FULL.md §C): substring match over commit messages, optionally
// deepened to a content scan of reconstructed blobs, plus advisory
// semantic neighbours when SemanticStore is enabled. Failures in either
// leg degrade to fewer results, never to an error.
func (e *Engine) Recall(query string, limit int, deep bool) []RecallHit {
	var hits []RecallHit

	textHashes, err := e.index.SearchCommitMessages(query, limit)
	if err != nil {
		e.log.Warn("recall: text search failed", "error", err)
	}
	for _, h := range textHashes {
		hits = append(hits, RecallHit{CommitHash: h, Snippet: query, Source: "text"})
	}

	if deep && len(hits) < limit {
		branches, err := e.ctxdb.ListBranches()
		if err == nil {
			seen := map[string]bool{}
			for _, h := range hits {
				seen[h.CommitHash] = true
			}
			lower := strings.ToLower(query)
			for _, b := range branches {
				commits, err := e.Log(b.Name, 0)
				if err != nil {
					continue
				}
				for _, c := range commits {
					if seen[c.CommitHash] || len(hits) >= limit {
						continue
					}
					blob, err := e.ctxdb.RetrieveBlob(c.ContentHash)
					if err != nil {
						continue
					}
					for _, m := range blob.Messages {
						if strings.Contains(strings.ToLower(m.Content), lower) {
							seen[c.CommitHash] = true
							hits = append(hits, RecallHit{CommitHash: c.CommitHash, Snippet: snippet(m.Content), Source: "deep"})
							break
						}
					}
				}
			}
		}
	}

	if e.semantic != nil && len(hits) < limit {
		seen := map[string]bool{}
		for _, h := range hits {
			seen[h.CommitHash] = true
		}
		for _, n := range e.semantic.Nearest(embedText(query), limit) {
			if len(hits) >= limit || seen[n.CommitHash] {
				continue
			}
			summary, ok := e.semantic.Summary(n.CommitHash)
			if !ok {
				continue
			}
			seen[n.CommitHash] = true
			hits = append(hits, RecallHit{CommitHash: n.CommitHash, Snippet: summary, Source: "semantic"})
		}
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Export renders commitHashOrPrefix's reconstructed ContentBlob as a
// Markdown transcript (SPEC_FULL.md §C).
func (e *Engine) Export(commitHashOrPrefix string) (markdown string, resolvedHash string, err error) {
	hash, err := ref.Resolve(e.ctxdb, commitHashOrPrefix)
	if err != nil {
		return "", "", err
	}
	commit, err := e.ctxdb.GetCommit(hash)
	if err != nil {
		return "", "", err
	}
	blob, err := e.ctxdb.RetrieveBlob(commit.ContentHash)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Commit %s\n\n", commit.ShortHash())
	fmt.Fprintf(&b, "- type: %s\n- message: %s\n- agent: %s\n\n", commit.Metadata.CommitType, commit.Metadata.Message, commit.Metadata.AgentID)
	for _, m := range blob.Messages {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", strings.Title(string(m.Role)), m.Content)
	}
	if blob.ReasoningTrace != "" {
		fmt.Fprintf(&b, "### Reasoning trace\n\n%s\n\n", blob.ReasoningTrace)
	}
	if len(blob.SourceFiles) > 0 {
		b.WriteString("### Source files\n\n")
		for path, h := range blob.SourceFiles {
			fmt.Fprintf(&b, "- `%s` (%s)\n", path, h)
		}
	}
	return b.String(), hash, nil
}

func snippet(content string) string {
	const max = 120
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

// semanticVectorDims is the fixed dimensionality of the hashing-trick
// embedding below. No embedding model or vector-database client appears
// anywhere in the retrieval corpus (see internal/semanticstore's package
// doc), so the SemanticStore tier is seeded with this local, deterministic
// bag-of-words vector rather than calling out to a network embedding
// service.
const semanticVectorDims = 64

// embedText hashes each word of text into one of semanticVectorDims
// buckets, incrementing or decrementing depending on a second hash bit so
// that unrelated words don't all collide constructively.
func embedText(text string) []float64 {
	vec := make([]float64, semanticVectorDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		sum := h.Sum32()
		bucket := int(sum % uint32(semanticVectorDims))
		if sum&(1<<31) == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	return vec
}

func secondsNow(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

func approxTokenCount(messages []model.Message) int64 {
	var words int64
	for _, m := range messages {
		words += int64(len(strings.Fields(m.Content)))
	}
	return words
}

func toModelMode(m config.Mode) model.Mode {
	switch m {
	case config.ModeCLI:
		return model.ModeCLI
	case config.ModeProxy:
		return model.ModeProxy
	case config.ModeMCP:
		return model.ModeMCP
	default:
		return model.ModeUnknown
	}
}

func copyStrMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
