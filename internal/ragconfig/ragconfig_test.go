package ragconfig

import (
	"testing"

	"knowledge-vault/models"
)

func baseSettings() models.WorkspaceSettings {
	return models.WorkspaceSettings{
		EmbeddingProvider: "google",
		EmbeddingModel:    "text-embedding-004",
		EmbeddingDim:      1536,
		ChunkSize:         800,
		ChunkOverlap:      150,
		RetrievalEngine:   models.EngineBasic,
	}
}

func TestHashStable(t *testing.T) {
	s := baseSettings()
	h1 := Hash(s)
	h2 := Hash(s)
	if h1 != h2 {
		t.Fatalf("hash not stable: %s != %s", h1, h2)
	}
	if len(h1) != HashLength {
		t.Fatalf("expected %d char hash, got %d (%s)", HashLength, len(h1), h1)
	}
}

func TestHashSensitiveToEmbeddingFields(t *testing.T) {
	base := Hash(baseSettings())

	cases := []struct {
		name   string
		mutate func(*models.WorkspaceSettings)
	}{
		{"provider", func(s *models.WorkspaceSettings) { s.EmbeddingProvider = "mock" }},
		{"model", func(s *models.WorkspaceSettings) { s.EmbeddingModel = "text-embedding-005" }},
		{"dim", func(s *models.WorkspaceSettings) { s.EmbeddingDim = 768 }},
		{"chunk_size", func(s *models.WorkspaceSettings) { s.ChunkSize = 1000 }},
		{"chunk_overlap", func(s *models.WorkspaceSettings) { s.ChunkOverlap = 100 }},
		{"engine", func(s *models.WorkspaceSettings) { s.RetrievalEngine = models.EngineGraph }},
	}
	for _, tc := range cases {
		s := baseSettings()
		tc.mutate(&s)
		if Hash(s) == base {
			t.Errorf("%s: hash did not change", tc.name)
		}
	}
}

func TestHashIgnoresMutableFields(t *testing.T) {
	s := baseSettings()
	base := Hash(s)
	s.SearchLimit = 20
	s.HybridAlpha = 0.9
	s.Theme = "light"
	s.RetrievalMode = "vector"
	if Hash(s) != base {
		t.Fatalf("hash changed for mutable-only update")
	}
}

func TestAuditDocument(t *testing.T) {
	target := baseSettings()
	doc := &models.Document{RagConfigHash: Hash(target)}

	if a := AuditDocument(doc, target, false); !a.Compatible || a.ReindexRequired {
		t.Fatalf("matching hashes should be compatible without reindex: %+v", a)
	}

	mismatched := baseSettings()
	mismatched.EmbeddingDim = 768

	a := AuditDocument(doc, mismatched, false)
	if a.Compatible {
		t.Fatalf("mismatched hashes without force must conflict")
	}
	if a.Expected != doc.RagConfigHash || a.Actual != Hash(mismatched) {
		t.Fatalf("audit must carry both hashes: %+v", a)
	}

	forced := AuditDocument(doc, mismatched, true)
	if !forced.Compatible || !forced.ReindexRequired {
		t.Fatalf("forced audit should pass with reindex required: %+v", forced)
	}
}

func TestImmutableViolations(t *testing.T) {
	updates := map[string]interface{}{
		"search_limit":  10,
		"embedding_dim": 768,
		"chunk_size":    400,
		"theme":         "light",
	}
	violations := ImmutableViolations(updates)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", violations)
	}
	if violations[0] != "embedding_dim" || violations[1] != "chunk_size" {
		t.Fatalf("unexpected violation order: %v", violations)
	}

	if !IsImmutable("retrieval_engine") {
		t.Errorf("retrieval_engine should be immutable")
	}
	if IsImmutable("hybrid_alpha") {
		t.Errorf("hybrid_alpha should be mutable")
	}
}
