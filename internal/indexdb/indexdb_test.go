package indexdb

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cvc.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func commitFixture(hash string, parents []string) model.CognitiveCommit {
	return model.CognitiveCommit{
		CommitHash:   hash,
		ParentHashes: parents,
		ContentHash:  "content-" + hash,
		Metadata:     model.CommitMetadata{Message: "m", CommitType: model.CommitCheckpoint},
		CreatedAtUnix: 1000,
	}
}

func TestInsertAndGetCommit(t *testing.T) {
	db := openTestDB(t)
	c := commitFixture("h1", nil)
	if err := db.InsertCommit(c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := db.GetCommit("h1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContentHash != c.ContentHash {
		t.Fatalf("content hash mismatch")
	}
}

func TestInsertCommitIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	c := commitFixture("h1", nil)
	if err := db.InsertCommit(c); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := db.InsertCommit(c); err != nil {
		t.Fatalf("second insert: %v", err)
	}
}

func TestGetCommitMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetCommit("missing"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestAncestorsWalksParentEdges(t *testing.T) {
	db := openTestDB(t)
	must := func(c model.CognitiveCommit) {
		if err := db.InsertCommit(c); err != nil {
			t.Fatalf("insert %s: %v", c.CommitHash, err)
		}
	}
	must(commitFixture("g", nil))
	must(commitFixture("h1", []string{"g"}))
	must(commitFixture("h2", []string{"h1"}))

	ancestors, err := db.Ancestors("h2")
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("ancestors = %v, want 2 entries", ancestors)
	}
}

func TestBranchUpsertAndHeadAdvance(t *testing.T) {
	db := openTestDB(t)
	b := model.BranchPointer{Name: "main", HeadHash: "g", Status: model.BranchActive, CreatedAtUnix: 1}
	if err := db.UpsertBranch(b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.SetBranchHeadCAS("main", "g", "h1"); err != nil {
		t.Fatalf("cas advance: %v", err)
	}
	got, err := db.GetBranch("main")
	if err != nil {
		t.Fatalf("get branch: %v", err)
	}
	if got.HeadHash != "h1" {
		t.Fatalf("head = %s, want h1", got.HeadHash)
	}
}

func TestBranchHeadCASConflict(t *testing.T) {
	db := openTestDB(t)
	b := model.BranchPointer{Name: "main", HeadHash: "g", Status: model.BranchActive, CreatedAtUnix: 1}
	if err := db.UpsertBranch(b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := db.SetBranchHeadCAS("main", "stale-expectation", "h1")
	if !errors.Is(err, cvcerr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestMatchPrefixAmbiguity(t *testing.T) {
	db := openTestDB(t)
	must := func(c model.CognitiveCommit) {
		if err := db.InsertCommit(c); err != nil {
			t.Fatalf("insert %s: %v", c.CommitHash, err)
		}
	}
	must(commitFixture("abcd1111", nil))
	must(commitFixture("abcd2222", nil))

	matches, err := db.MatchPrefix("abcd", 11)
	if err != nil {
		t.Fatalf("match prefix: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %v, want 2", matches)
	}
}

func TestCountSinceAnchor(t *testing.T) {
	db := openTestDB(t)
	anchor := commitFixture("anchor", nil)
	anchor.ContentHash = "content-anchor"
	if err := db.InsertCommit(anchor); err != nil {
		t.Fatalf("insert anchor: %v", err)
	}

	delta1 := commitFixture("d1", []string{"anchor"})
	delta1.Metadata.IsDelta = true
	if err := db.InsertCommit(delta1); err != nil {
		t.Fatalf("insert d1: %v", err)
	}
	delta2 := commitFixture("d2", []string{"d1"})
	delta2.Metadata.IsDelta = true
	if err := db.InsertCommit(delta2); err != nil {
		t.Fatalf("insert d2: %v", err)
	}

	count, anchorContentHash, err := db.CountSinceAnchor("d2")
	if err != nil {
		t.Fatalf("count since anchor: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if anchorContentHash != "content-anchor" {
		t.Fatalf("anchor content hash = %s, want content-anchor", anchorContentHash)
	}
}

func TestAuditLogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertAuditEvent(AuditEvent{TimestampUnix: 1, Actor: "a", Operation: "commit", CommitHash: "h1", Branch: "main"}); err != nil {
		t.Fatalf("insert audit event: %v", err)
	}
	events, err := db.QueryAuditLog(10)
	if err != nil {
		t.Fatalf("query audit log: %v", err)
	}
	if len(events) != 1 || events[0].Operation != "commit" {
		t.Fatalf("unexpected audit log contents: %+v", events)
	}
}
