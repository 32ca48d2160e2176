package models

import "time"

// Document is a workspace-scoped logical record pointing at a physical
// vault object. Many Documents may share one storage key (deduplication);
// the bytes are deleted only when the last referencing Document goes away.
type Document struct {
	ID             string    `bson:"id" json:"id"`
	WorkspaceID    string    `bson:"workspace_id" json:"workspace_id"`
	Filename       string    `bson:"filename" json:"filename"`
	Title          string    `bson:"title,omitempty" json:"title,omitempty"`
	Extension      string    `bson:"extension" json:"extension"`
	ContentType    string    `bson:"content_type,omitempty" json:"content_type,omitempty"`
	ContentHash    string    `bson:"content_hash" json:"content_hash"` // sha-256 of bytes
	StorageKey     string    `bson:"storage_key" json:"storage_key"`
	Status         string    `bson:"status" json:"status"`
	CurrentVersion int       `bson:"current_version" json:"current_version"`
	ChunkCount     int       `bson:"chunk_count" json:"chunk_count"`
	SizeBytes      int64     `bson:"size_bytes" json:"size_bytes"`
	SharedWith     []string  `bson:"shared_with" json:"shared_with"`
	RagConfigHash  string    `bson:"rag_config_hash,omitempty" json:"rag_config_hash,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`

	// IsShared is set on list responses when the requesting workspace
	// sees the document through shared_with rather than ownership.
	IsShared bool `bson:"-" json:"is_shared,omitempty"`
	// WorkspaceName is resolved on cross-workspace listings.
	WorkspaceName string `bson:"-" json:"workspace_name,omitempty"`
}

// IllegalFilenameChars are rejected in filenames and workspace names.
const IllegalFilenameChars = `/\:*?"<>|`

// Document status constants
const (
	DocStatusUploaded = "uploaded"
	DocStatusIndexing = "indexing"
	DocStatusIndexed  = "indexed"
	DocStatusFailed   = "failed"
)

// VaultPool is the sentinel owner for soft-detached documents: the bytes
// stay in the vault but no workspace owns the record anymore.
const VaultPool = "vault"

// ConflictDescriptor describes an upload collision so the caller can
// resubmit with an explicit resolution strategy.
type ConflictDescriptor struct {
	Type          string        `json:"type"` // exact_duplicate, name_collision, content_collision
	Filename      string        `json:"filename"`
	SuggestedName string        `json:"suggested_name"`
	ExistingDoc   *ExistingRef  `json:"existing_doc,omitempty"`
}

// ExistingRef identifies the document an upload collided with.
type ExistingRef struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	WorkspaceID string `json:"workspace"`
}

// Conflict type constants
const (
	ConflictExactDuplicate   = "exact_duplicate"
	ConflictNameCollision    = "name_collision"
	ConflictContentCollision = "content_collision"
	ConflictRagMismatch      = "rag_mismatch"
)

// Upload resolution strategies
const (
	StrategyRename    = "rename"
	StrategyOverwrite = "overwrite"
	StrategyNone      = "none"
)

// DocumentInspection bundles a document's metadata with its live index
// state as read back from the vector shard.
type DocumentInspection struct {
	Metadata   *Document         `json:"metadata"`
	Collection string            `json:"collection"`
	ChunkCount int               `json:"chunk_count"`
	Settings   WorkspaceSettings `json:"settings"`
}
