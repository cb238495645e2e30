// Package model defines the data types versioned by the CVC engine: the
// typed conversation messages, the content blob they compose into, and the
// commit/branch records of the Merkle DAG that stores them.
package model

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Attachment is a reference to binary content carried alongside a Message.
// Only a content hash is stored; the bytes themselves live outside the DAG.
type Attachment struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Message is a single turn in a conversation. Messages are append-only
// within a context window.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Name        string       `json:"name,omitempty"`
	ToolCallID  string       `json:"tool_call_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ContentBlob is the payload of one commit: the full conversation state at
// that point, plus auxiliary producer-supplied data.
type ContentBlob struct {
	Messages       []Message         `json:"messages"`
	ReasoningTrace string            `json:"reasoning_trace,omitempty"`
	ToolOutputs    map[string]string `json:"tool_outputs,omitempty"`
	SourceFiles    map[string]string `json:"source_files,omitempty"`
	TokenCount     *int64            `json:"token_count,omitempty"`
}

// Mode records which front-end originated a commit. Informational only.
type Mode string

const (
	ModeCLI     Mode = "cli"
	ModeProxy   Mode = "proxy"
	ModeMCP     Mode = "mcp"
	ModeUnknown Mode = "unknown"
)

// CommitType classifies a commit's provenance.
type CommitType string

const (
	CommitGenesis    CommitType = "genesis"
	CommitCheckpoint CommitType = "checkpoint"
	CommitAnchor     CommitType = "anchor"
	CommitRollback   CommitType = "rollback"
	CommitMerge      CommitType = "merge"
	CommitAnalysis   CommitType = "analysis"
	CommitGeneration CommitType = "generation"
)

// CommitMetadata carries the immutable, non-content data attached to every
// commit.
type CommitMetadata struct {
	TimestampSeconds float64    `json:"timestamp_seconds"`
	AgentID          string     `json:"agent_id"`
	Mode             Mode       `json:"mode"`
	Provider         string     `json:"provider,omitempty"`
	Model            string     `json:"model,omitempty"`
	GitCommitSHA     string     `json:"git_commit_sha,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Message          string     `json:"message"`
	CommitType       CommitType `json:"commit_type"`
	IsDelta          bool       `json:"is_delta"`
	// RestoredFrom is set on rollback commits to the hash of the commit that
	// was restored.
	RestoredFrom string `json:"restored_from,omitempty"`
	// SourceBranch/TargetBranch/LCA are set on merge commits.
	SourceBranch string `json:"source_branch,omitempty"`
	TargetBranch string `json:"target_branch,omitempty"`
	LCA          string `json:"lca,omitempty"`
}

// CognitiveCommit is one immutable node of the Merkle DAG.
type CognitiveCommit struct {
	CommitHash    string         `json:"commit_hash"`
	ParentHashes  []string       `json:"parent_hashes"`
	ContentHash   string         `json:"content_hash"`
	Metadata      CommitMetadata `json:"metadata"`
	CreatedAtUnix int64          `json:"created_at"`
}

// ShortHash returns a 12-character display prefix of the commit hash.
func (c CognitiveCommit) ShortHash() string {
	if len(c.CommitHash) <= 12 {
		return c.CommitHash
	}
	return c.CommitHash[:12]
}

// BranchStatus tracks the lifecycle of a branch pointer.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchMerged   BranchStatus = "merged"
	BranchArchived BranchStatus = "archived"
)

// BranchPointer is a named, mutable pointer to a head commit.
type BranchPointer struct {
	Name          string       `json:"name"`
	HeadHash      string       `json:"head_hash"`
	Status        BranchStatus `json:"status"`
	CreatedAtUnix int64        `json:"created_at"`
	Description   string       `json:"description"`
	ParentBranch  string       `json:"parent_branch,omitempty"`
}

// BlobKind distinguishes a fully compressed anchor from a dictionary delta.
type BlobKind string

const (
	BlobAnchor BlobKind = "anchor"
	BlobDelta  BlobKind = "delta"
)

// StoredBlob describes one record in the BlobStore.
type StoredBlob struct {
	ContentHash      string
	Kind             BlobKind
	CompressedBytes  []byte
	DecompressedSize int64
	AnchorHash       string // empty for anchors
	PredecessorHash  string // empty for anchors
}
