// Package ragconfig computes the signature over embedding-affecting
// workspace settings and audits documents against target workspaces.
// Pure functions, no I/O.
package ragconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"knowledge-vault/models"
)

// HashLength is the truncation length of the settings signature.
const HashLength = 12

// Hash returns a stable signature over the six embedding-affecting
// fields. Two workspaces with equal hashes can share vector points
// without re-embedding.
func Hash(s models.WorkspaceSettings) string {
	configStr := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		s.EmbeddingProvider, s.EmbeddingModel,
		s.ChunkSize, s.ChunkOverlap,
		s.EmbeddingDim, s.RetrievalEngine)
	sum := sha256.Sum256([]byte(configStr))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Audit is the compatibility verdict for moving or sharing a document
// into a target workspace.
type Audit struct {
	Compatible      bool
	ReindexRequired bool
	// Expected is the document's recorded hash, Actual the target
	// workspace's. Both are carried so conflicts can be surfaced with
	// the competing values.
	Expected string
	Actual   string
}

// AuditDocument compares a document's recorded rag config hash with the
// target workspace's settings. When the hashes differ and force is
// false the result is incompatible; with force set, the operation may
// proceed but must re-index first.
func AuditDocument(doc *models.Document, target models.WorkspaceSettings, force bool) Audit {
	targetHash := Hash(target)
	if doc.RagConfigHash == targetHash {
		return Audit{Compatible: true, Expected: doc.RagConfigHash, Actual: targetHash}
	}
	if force {
		return Audit{Compatible: true, ReindexRequired: true, Expected: doc.RagConfigHash, Actual: targetHash}
	}
	return Audit{Compatible: false, Expected: doc.RagConfigHash, Actual: targetHash}
}

// immutableFields are fixed at workspace creation: changing any of them
// would invalidate the vectors already stored for the workspace.
var immutableFields = map[string]bool{
	"embedding_provider": true,
	"embedding_model":    true,
	"embedding_dim":      true,
	"chunk_size":         true,
	"chunk_overlap":      true,
	"retrieval_engine":   true,
	"graph_uri":          true,
	"graph_user":         true,
	"graph_password":     true,
}

// IsImmutable reports whether a settings field is fixed after creation.
func IsImmutable(field string) bool {
	return immutableFields[field]
}

// ImmutableViolations returns the immutable fields touched by an update,
// in deterministic order for stable error messages.
func ImmutableViolations(updates map[string]interface{}) []string {
	ordered := []string{
		"embedding_provider", "embedding_model", "embedding_dim",
		"chunk_size", "chunk_overlap", "retrieval_engine",
		"graph_uri", "graph_user", "graph_password",
	}
	var violations []string
	for _, f := range ordered {
		if _, ok := updates[f]; ok {
			violations = append(violations, f)
		}
	}
	return violations
}
