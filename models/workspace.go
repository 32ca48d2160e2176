package models

import "time"

// Workspace is a tenant scope for documents and settings. Its
// embedding-affecting settings are fixed at creation; see
// WorkspaceSettings for the mutability split.
type Workspace struct {
	ID          string    `bson:"id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`

	Stats    *WorkspaceStats    `bson:"-" json:"stats,omitempty"`
	Settings *WorkspaceSettings `bson:"-" json:"settings,omitempty"`
}

// WorkspaceStats summarizes workspace contents on listings.
type WorkspaceStats struct {
	DocCount int64 `json:"doc_count"`
}

// DefaultWorkspaceID is the reserved system fallback workspace. It is
// non-editable and non-deletable.
const DefaultWorkspaceID = "default"

// WorkspaceSettings holds the merged settings view for one workspace:
// global defaults overlaid with the workspace's override record.
// Fields tagged immutable cannot change after workspace creation because
// doing so would invalidate the vectors already stored for it.
type WorkspaceSettings struct {
	// Embedding settings (immutable)
	EmbeddingProvider string `bson:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel    string `bson:"embedding_model" json:"embedding_model"`
	EmbeddingDim      int    `bson:"embedding_dim" json:"embedding_dim"`

	// Chunking settings (immutable)
	ChunkSize    int `bson:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `bson:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval engine selection (immutable): "basic" or "graph"
	RetrievalEngine string `bson:"retrieval_engine" json:"retrieval_engine"`

	// Graph store connection, used when RetrievalEngine is "graph" (immutable)
	GraphURI      string `bson:"graph_uri,omitempty" json:"graph_uri,omitempty"`
	GraphUser     string `bson:"graph_user,omitempty" json:"graph_user,omitempty"`
	GraphPassword string `bson:"graph_password,omitempty" json:"graph_password,omitempty"`

	// Retrieval settings (mutable)
	RetrievalMode string  `bson:"retrieval_mode" json:"retrieval_mode"` // hybrid, vector, keyword
	SearchLimit   int     `bson:"search_limit" json:"search_limit"`
	HybridAlpha   float64 `bson:"hybrid_alpha" json:"hybrid_alpha"`

	// UI settings (mutable)
	Theme         string `bson:"theme" json:"theme"`
	ShowReasoning bool   `bson:"show_reasoning" json:"show_reasoning"`
}

// Retrieval engine kinds
const (
	EngineBasic = "basic"
	EngineGraph = "graph"
)
