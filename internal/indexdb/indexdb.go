// Package indexdb is the transactional relational index of spec §4.C,
// grounded on kai-cli/internal/graph.DB: a pure-Go modernc.org/sqlite
// connection opened with WAL journaling and a busy timeout
// (kai-cli/internal/graph/graph.go Open), every mutation wrapped in
// BeginTx/defer Rollback/Commit, and objects written through
// INSERT OR IGNORE for idempotent upserts. The schema itself — commits,
// branches, parent_edges, git_links, refs, audit_log — is this domain's
// own, grounded on cvc/core/database.py's _SCHEMA_SQL and
// _AUDIT_SCHEMA_SQL rather than the teacher's node/edge graph schema.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/cvc-dev/cvc/internal/cvcerr"
	"github.com/cvc-dev/cvc/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	commit_hash TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	parent_hashes_json TEXT NOT NULL,
	metadata_json TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commits_content_hash ON commits(content_hash);

CREATE TABLE IF NOT EXISTS branches (
	name TEXT PRIMARY KEY,
	head_hash TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_branch TEXT
);

CREATE TABLE IF NOT EXISTS parent_edges (
	child_hash TEXT NOT NULL,
	parent_hash TEXT NOT NULL,
	PRIMARY KEY (child_hash, parent_hash)
);
CREATE INDEX IF NOT EXISTS idx_parent_edges_parent ON parent_edges(parent_hash);

CREATE TABLE IF NOT EXISTS git_links (
	git_sha TEXT PRIMARY KEY,
	commit_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refs (
	name TEXT PRIMARY KEY,
	commit_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	actor TEXT NOT NULL,
	operation TEXT NOT NULL,
	commit_hash TEXT,
	branch TEXT,
	detail TEXT NOT NULL DEFAULT ''
);
`

const currentSchemaVersion = "1"

// DB wraps a sqlite connection holding the full relational index.
type DB struct {
	conn *sql.DB
	log  *slog.Logger
}

// Open opens (creating if absent) the sqlite database at dbPath, applies
// pragmas for single-writer/many-reader concurrency, and runs the
// forward-only schema migration.
func Open(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("indexdb: open %s: %w", dbPath, cvcerr.ErrIoError)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("indexdb: ping %s: %w", dbPath, cvcerr.ErrIoError)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("indexdb: %s: %w", pragma, cvcerr.ErrIoError)
		}
	}

	db := &DB{conn: conn, log: logger.With("component", "indexdb")}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("indexdb: begin migration: %w", cvcerr.ErrIoError)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("indexdb: apply schema: %w", cvcerr.ErrIoError)
	}
	var version string
	err = tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO schema_meta(key, value) VALUES ('schema_version', ?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("indexdb: stamp schema version: %w", cvcerr.ErrIoError)
		}
	case err != nil:
		return fmt.Errorf("indexdb: read schema version: %w", cvcerr.ErrIoError)
	default:
		// Forward-only migrations would run here, keyed off `version`.
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexdb: commit migration: %w", cvcerr.ErrIoError)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// InsertCommit upserts commit and materialises its parent edges, in one
// transaction. Duplicate commit_hash is a no-op (idempotent).
func (db *DB) InsertCommit(c model.CognitiveCommit) error {
	parentsJSON, err := json.Marshal(c.ParentHashes)
	if err != nil {
		return fmt.Errorf("indexdb: marshal parents: %w", cvcerr.ErrEncodingError)
	}
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("indexdb: marshal metadata: %w", cvcerr.ErrEncodingError)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("indexdb: begin insert commit: %w", cvcerr.ErrIoError)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO commits(commit_hash, content_hash, parent_hashes_json, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.CommitHash, c.ContentHash, string(parentsJSON), string(metaJSON), c.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("indexdb: insert commit: %w", cvcerr.ErrIoError)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		for _, parent := range c.ParentHashes {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO parent_edges(child_hash, parent_hash) VALUES (?, ?)`, c.CommitHash, parent); err != nil {
				return fmt.Errorf("indexdb: insert parent edge: %w", cvcerr.ErrIoError)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexdb: commit insert commit: %w", cvcerr.ErrIoError)
	}
	return nil
}

// InsertCommitAndAdvanceBranch inserts c (idempotently) and, if
// branchName is non-empty, advances that branch's head to c.CommitHash in
// the same transaction — the "steps 2 and 3 execute in one IndexDB
// transaction" rule of spec §4.F. If expectedHead is non-empty the head
// advance is conditional (CAS); a mismatch rolls back the whole
// transaction, including the commit insert, and returns *cvcerr.Conflict.
func (db *DB) InsertCommitAndAdvanceBranch(c model.CognitiveCommit, branchName, expectedHead string) error {
	parentsJSON, err := json.Marshal(c.ParentHashes)
	if err != nil {
		return fmt.Errorf("indexdb: marshal parents: %w", cvcerr.ErrEncodingError)
	}
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("indexdb: marshal metadata: %w", cvcerr.ErrEncodingError)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("indexdb: begin: %w", cvcerr.ErrIoError)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO commits(commit_hash, content_hash, parent_hashes_json, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.CommitHash, c.ContentHash, string(parentsJSON), string(metaJSON), c.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("indexdb: insert commit: %w", cvcerr.ErrIoError)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		for _, parent := range c.ParentHashes {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO parent_edges(child_hash, parent_hash) VALUES (?, ?)`, c.CommitHash, parent); err != nil {
				return fmt.Errorf("indexdb: insert parent edge: %w", cvcerr.ErrIoError)
			}
		}
	}

	if branchName != "" {
		if expectedHead != "" {
			r, err := tx.Exec(`UPDATE branches SET head_hash = ? WHERE name = ? AND head_hash = ?`, c.CommitHash, branchName, expectedHead)
			if err != nil {
				return fmt.Errorf("indexdb: advance branch head: %w", cvcerr.ErrIoError)
			}
			rows, _ := r.RowsAffected()
			if rows == 0 {
				var actual string
				_ = tx.QueryRow(`SELECT head_hash FROM branches WHERE name = ?`, branchName).Scan(&actual)
				return &cvcerr.Conflict{Branch: branchName, ExpectedHead: expectedHead, ActualHead: actual}
			}
		} else {
			if _, err := tx.Exec(`UPDATE branches SET head_hash = ? WHERE name = ?`, c.CommitHash, branchName); err != nil {
				return fmt.Errorf("indexdb: set branch head: %w", cvcerr.ErrIoError)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexdb: commit insert+advance: %w", cvcerr.ErrIoError)
	}
	return nil
}

func (db *DB) scanCommit(row *sql.Row) (model.CognitiveCommit, error) {
	var c model.CognitiveCommit
	var parentsJSON, metaJSON string
	if err := row.Scan(&c.CommitHash, &c.ContentHash, &parentsJSON, &metaJSON, &c.CreatedAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return model.CognitiveCommit{}, &cvcerr.NotFound{Kind: "commit", ID: ""}
		}
		return model.CognitiveCommit{}, fmt.Errorf("indexdb: scan commit: %w", cvcerr.ErrIoError)
	}
	if err := json.Unmarshal([]byte(parentsJSON), &c.ParentHashes); err != nil {
		return model.CognitiveCommit{}, fmt.Errorf("indexdb: unmarshal parents: %w", cvcerr.ErrEncodingError)
	}
	if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
		return model.CognitiveCommit{}, fmt.Errorf("indexdb: unmarshal metadata: %w", cvcerr.ErrEncodingError)
	}
	return c, nil
}

// GetCommit resolves an exact 64-hex commit hash.
func (db *DB) GetCommit(hash string) (model.CognitiveCommit, error) {
	row := db.conn.QueryRow(
		`SELECT commit_hash, content_hash, parent_hashes_json, metadata_json, created_at FROM commits WHERE commit_hash = ?`,
		hash,
	)
	c, err := db.scanCommit(row)
	if err != nil {
		if nf, ok := err.(*cvcerr.NotFound); ok {
			nf.ID = hash
		}
		return model.CognitiveCommit{}, err
	}
	return c, nil
}

// MatchPrefix returns every commit hash beginning with prefix, capped at
// limit results (callers needing ambiguity detection should pass a small
// limit like 11 and treat >1 as ambiguous).
func (db *DB) MatchPrefix(prefix string, limit int) ([]string, error) {
	rows, err := db.conn.Query(`SELECT commit_hash FROM commits WHERE commit_hash LIKE ? ORDER BY commit_hash LIMIT ?`, prefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("indexdb: match prefix: %w", cvcerr.ErrIoError)
	}
	defer rows.Close()
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("indexdb: scan prefix match: %w", cvcerr.ErrIoError)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// Ancestors returns every ancestor of hash (excluding hash itself),
// reached by BFS over parent_edges. The result is finite and
// order-unspecified beyond "visited once".
func (db *DB) Ancestors(hash string) ([]string, error) {
	visited := map[string]bool{hash: true}
	queue := []string{hash}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parents, err := db.parentsOf(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if visited[p] {
				continue
			}
			visited[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	return out, nil
}

// Descendants returns every descendant of hash (excluding hash itself).
func (db *DB) Descendants(hash string) ([]string, error) {
	visited := map[string]bool{hash: true}
	queue := []string{hash}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rows, err := db.conn.Query(`SELECT child_hash FROM parent_edges WHERE parent_hash = ?`, cur)
		if err != nil {
			return nil, fmt.Errorf("indexdb: query descendants: %w", cvcerr.ErrIoError)
		}
		var children []string
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return nil, fmt.Errorf("indexdb: scan descendant: %w", cvcerr.ErrIoError)
			}
			children = append(children, c)
		}
		rows.Close()
		for _, c := range children {
			if visited[c] {
				continue
			}
			visited[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out, nil
}

// Parents returns the immediate (one-hop) parent hashes of hash.
func (db *DB) Parents(hash string) ([]string, error) { return db.parentsOf(hash) }

func (db *DB) parentsOf(hash string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT parent_hash FROM parent_edges WHERE child_hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("indexdb: query parents: %w", cvcerr.ErrIoError)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("indexdb: scan parent: %w", cvcerr.ErrIoError)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FirstParent returns the first parent hash recorded for hash's commit
// row, i.e. parent_hashes[0] as originally ordered (not sorted), or "" if
// hash has no parents.
func (db *DB) FirstParent(hash string) (string, error) {
	c, err := db.GetCommit(hash)
	if err != nil {
		return "", err
	}
	if len(c.ParentHashes) == 0 {
		return "", nil
	}
	return c.ParentHashes[0], nil
}

// CountSinceAnchor walks the first-parent chain from hash (inclusive of
// hash, exclusive of the anchor it stops at) and returns how many
// delta commits sit between hash and the nearest reachable anchor, plus
// that anchor's content hash. If hash is itself an anchor, count is 0 and
// anchorContentHash is hash's own content hash. If no anchor is reachable
// (e.g. history is empty), anchorContentHash is "".
func (db *DB) CountSinceAnchor(hash string) (count int, anchorContentHash string, err error) {
	cur := hash
	for cur != "" {
		c, err := db.GetCommit(cur)
		if err != nil {
			return 0, "", err
		}
		if !c.Metadata.IsDelta {
			return count, c.ContentHash, nil
		}
		count++
		if len(c.ParentHashes) == 0 {
			return count, "", nil
		}
		cur = c.ParentHashes[0]
	}
	return count, "", nil
}

// UpsertBranch inserts or fully replaces a branch row.
func (db *DB) UpsertBranch(b model.BranchPointer) error {
	_, err := db.conn.Exec(
		`INSERT INTO branches(name, head_hash, status, created_at, description, parent_branch)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET head_hash=excluded.head_hash, status=excluded.status, description=excluded.description`,
		b.Name, b.HeadHash, string(b.Status), b.CreatedAtUnix, b.Description, nullable(b.ParentBranch),
	)
	if err != nil {
		return fmt.Errorf("indexdb: upsert branch: %w", cvcerr.ErrIoError)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetBranch returns the named branch, or ErrNotFound.
func (db *DB) GetBranch(name string) (model.BranchPointer, error) {
	var b model.BranchPointer
	var status string
	var parentBranch sql.NullString
	err := db.conn.QueryRow(
		`SELECT name, head_hash, status, created_at, description, parent_branch FROM branches WHERE name = ?`, name,
	).Scan(&b.Name, &b.HeadHash, &status, &b.CreatedAtUnix, &b.Description, &parentBranch)
	if err == sql.ErrNoRows {
		return model.BranchPointer{}, &cvcerr.NotFound{Kind: "branch", ID: name}
	}
	if err != nil {
		return model.BranchPointer{}, fmt.Errorf("indexdb: get branch: %w", cvcerr.ErrIoError)
	}
	b.Status = model.BranchStatus(status)
	if parentBranch.Valid {
		b.ParentBranch = parentBranch.String
	}
	return b, nil
}

// ListBranches returns every branch, ordered by name.
func (db *DB) ListBranches() ([]model.BranchPointer, error) {
	rows, err := db.conn.Query(`SELECT name, head_hash, status, created_at, description, parent_branch FROM branches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("indexdb: list branches: %w", cvcerr.ErrIoError)
	}
	defer rows.Close()
	var out []model.BranchPointer
	for rows.Next() {
		var b model.BranchPointer
		var status string
		var parentBranch sql.NullString
		if err := rows.Scan(&b.Name, &b.HeadHash, &status, &b.CreatedAtUnix, &b.Description, &parentBranch); err != nil {
			return nil, fmt.Errorf("indexdb: scan branch: %w", cvcerr.ErrIoError)
		}
		b.Status = model.BranchStatus(status)
		if parentBranch.Valid {
			b.ParentBranch = parentBranch.String
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, rows.Err()
}

// SetBranchHeadCAS advances name's head to newHead only if its current head
// equals expectedHead, returning *cvcerr.Conflict if another writer won the
// race in the meantime.
func (db *DB) SetBranchHeadCAS(name, expectedHead, newHead string) error {
	res, err := db.conn.Exec(`UPDATE branches SET head_hash = ? WHERE name = ? AND head_hash = ?`, newHead, name, expectedHead)
	if err != nil {
		return fmt.Errorf("indexdb: advance branch head: %w", cvcerr.ErrIoError)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("indexdb: rows affected: %w", cvcerr.ErrIoError)
	}
	if n == 0 {
		current, getErr := db.GetBranch(name)
		if getErr != nil {
			return getErr
		}
		return &cvcerr.Conflict{Branch: name, ExpectedHead: expectedHead, ActualHead: current.HeadHash}
	}
	return nil
}

// SetBranchHead advances name's head unconditionally.
func (db *DB) SetBranchHead(name, newHead string) error {
	res, err := db.conn.Exec(`UPDATE branches SET head_hash = ? WHERE name = ?`, newHead, name)
	if err != nil {
		return fmt.Errorf("indexdb: set branch head: %w", cvcerr.ErrIoError)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &cvcerr.NotFound{Kind: "branch", ID: name}
	}
	return nil
}

// SetBranchStatus updates a branch's lifecycle status (e.g. to merged).
func (db *DB) SetBranchStatus(name string, status model.BranchStatus) error {
	_, err := db.conn.Exec(`UPDATE branches SET status = ? WHERE name = ?`, string(status), name)
	if err != nil {
		return fmt.Errorf("indexdb: set branch status: %w", cvcerr.ErrIoError)
	}
	return nil
}

// SetGitLink records a git_sha -> commit_hash association.
func (db *DB) SetGitLink(gitSHA, commitHash string) error {
	_, err := db.conn.Exec(
		`INSERT INTO git_links(git_sha, commit_hash) VALUES (?, ?) ON CONFLICT(git_sha) DO UPDATE SET commit_hash=excluded.commit_hash`,
		gitSHA, commitHash,
	)
	if err != nil {
		return fmt.Errorf("indexdb: set git link: %w", cvcerr.ErrIoError)
	}
	return nil
}

// GetGitLink resolves a git SHA to its linked commit hash.
func (db *DB) GetGitLink(gitSHA string) (string, error) {
	var commitHash string
	err := db.conn.QueryRow(`SELECT commit_hash FROM git_links WHERE git_sha = ?`, gitSHA).Scan(&commitHash)
	if err == sql.ErrNoRows {
		return "", &cvcerr.NotFound{Kind: "git_link", ID: gitSHA}
	}
	if err != nil {
		return "", fmt.Errorf("indexdb: get git link: %w", cvcerr.ErrIoError)
	}
	return commitHash, nil
}

// SearchCommitMessages returns commit hashes whose metadata message
// contains substr (case-insensitive), most recent first, capped at limit.
func (db *DB) SearchCommitMessages(substr string, limit int) ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT commit_hash FROM commits WHERE json_extract(metadata_json, '$.message') LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT ?`,
		"%"+escapeLike(substr)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("indexdb: search commits: %w", cvcerr.ErrIoError)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("indexdb: scan search hit: %w", cvcerr.ErrIoError)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	replacer := func(in string) string {
		out := make([]byte, 0, len(in))
		for i := 0; i < len(in); i++ {
			switch in[i] {
			case '\\', '%', '_':
				out = append(out, '\\', in[i])
			default:
				out = append(out, in[i])
			}
		}
		return string(out)
	}
	return replacer(s)
}

// AuditEvent is one row of the append-only audit log.
type AuditEvent struct {
	TimestampUnix int64
	Actor         string
	Operation     string
	CommitHash    string
	Branch        string
	Detail        string
}

// InsertAuditEvent appends an audit_log row. Failures here never abort the
// operation that triggered them; callers log and continue.
func (db *DB) InsertAuditEvent(e AuditEvent) error {
	_, err := db.conn.Exec(
		`INSERT INTO audit_log(ts, actor, operation, commit_hash, branch, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		e.TimestampUnix, e.Actor, e.Operation, nullable(e.CommitHash), nullable(e.Branch), e.Detail,
	)
	if err != nil {
		return fmt.Errorf("indexdb: insert audit event: %w", cvcerr.ErrIoError)
	}
	return nil
}

// QueryAuditLog returns the most recent limit audit events, newest first.
func (db *DB) QueryAuditLog(limit int) ([]AuditEvent, error) {
	rows, err := db.conn.Query(`SELECT ts, actor, operation, COALESCE(commit_hash,''), COALESCE(branch,''), detail FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("indexdb: query audit log: %w", cvcerr.ErrIoError)
	}
	defer rows.Close()
	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.TimestampUnix, &e.Actor, &e.Operation, &e.CommitHash, &e.Branch, &e.Detail); err != nil {
			return nil, fmt.Errorf("indexdb: scan audit event: %w", cvcerr.ErrIoError)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
