// Package vector wraps the Qdrant index behind the operations the vault
// needs. Points are partitioned into one collection per embedding
// dimension ("dimension shards"); a document's points live in whichever
// shard matches its owning workspace's dimension at indexing time.
package vector

import "context"

// Payload keys for chunk points. workspace_id and shared_with are
// denormalized onto every point so visibility filtering needs no join
// at query time.
const (
	PayloadDocID         = "doc_id"
	PayloadWorkspaceID   = "workspace_id"
	PayloadSharedWith    = "shared_with"
	PayloadText          = "text"
	PayloadIndex         = "index"
	PayloadSource        = "source"
	PayloadContentHash   = "content_hash"
	PayloadRagConfigHash = "rag_config_hash"
	PayloadVersion       = "version"
)

// DimensionShards lists every dimension a shard may exist for. Hard
// purges sweep all of them by content hash.
var DimensionShards = []int{384, 512, 768, 896, 1024, 1536, 1792, 3072}

// ChunkPoint is one stored vector point.
type ChunkPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// Scored is a point with a similarity score attached.
type Scored struct {
	ChunkPoint
	Score float32
}

// Index is the vector index contract consumed by the vault services.
type Index interface {
	// EnsureShard creates the shard collection for a dimension if missing.
	EnsureShard(ctx context.Context, dim int) error

	// ShardExists reports whether the shard collection exists.
	ShardExists(ctx context.Context, dim int) (bool, error)

	// Upsert writes points into the shard.
	Upsert(ctx context.Context, dim int, points []ChunkPoint) error

	// Query runs a similarity search restricted to points visible to
	// workspaceID (owned or shared).
	Query(ctx context.Context, dim int, vec []float32, workspaceID string, limit int) ([]Scored, error)

	// KeywordSearch runs a full-text match over chunk text with the
	// same visibility restriction. Results carry no similarity score;
	// their order is the stable scroll order.
	KeywordSearch(ctx context.Context, dim int, text, workspaceID string, limit int) ([]ChunkPoint, error)

	// ScrollByDoc pages a document's points.
	ScrollByDoc(ctx context.Context, dim int, docID string, limit int, withVectors bool) ([]ChunkPoint, error)

	// ScrollByContentHash pages every point carrying the content hash,
	// optionally with vectors (used to re-tag instead of re-embed).
	ScrollByContentHash(ctx context.Context, dim int, contentHash string, limit int, withVectors bool) ([]ChunkPoint, error)

	// DeleteByDoc deletes points for a (doc, workspace) pair. An empty
	// workspaceID deletes the document's points in every workspace.
	DeleteByDoc(ctx context.Context, dim int, docID, workspaceID string) error

	// DeleteByContentHash deletes every point carrying the content hash.
	DeleteByContentHash(ctx context.Context, dim int, contentHash string) error

	// SetSharedWith patches the shared_with payload on all of a
	// document's points so visibility filtering stays correct.
	SetSharedWith(ctx context.Context, dim int, docID string, sharedWith []string) error

	// CountByDoc counts a document's stored points.
	CountByDoc(ctx context.Context, dim int, docID string) (int, error)

	Close() error
}
