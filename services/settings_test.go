package services

import "testing"

func TestValidateMutableSettings(t *testing.T) {
	ok := map[string]interface{}{
		"retrieval_mode": "vector",
		"search_limit":   float64(10),
		"hybrid_alpha":   0.3,
		"theme":          "dark",
		"show_reasoning": true,
	}
	if err := validateMutableSettings(ok); err != nil {
		t.Fatalf("expected valid updates, got %v", err)
	}
	// JSON numbers arrive as float64 and must be normalized.
	if n, isInt := ok["search_limit"].(int); !isInt || n != 10 {
		t.Fatalf("search_limit not normalized to int: %#v", ok["search_limit"])
	}

	bad := []map[string]interface{}{
		{"embedding_dim_x": 5},            // unknown field
		{"retrieval_mode": "fulltext"},    // bad enum
		{"search_limit": 0},               // below range
		{"search_limit": 21},              // above range
		{"search_limit": 2.5},             // non-integral
		{"hybrid_alpha": 1.5},             // above range
		{"hybrid_alpha": float64(-0.001)}, // below range
	}
	for _, updates := range bad {
		if err := validateMutableSettings(updates); err == nil {
			t.Errorf("expected rejection for %#v", updates)
		}
	}
}

func TestValidateGlobalSettingsAcceptsEmbeddingFields(t *testing.T) {
	updates := map[string]interface{}{
		"embedding_provider": "google",
		"embedding_model":    "text-embedding-004",
		"embedding_dim":      float64(768),
		"chunk_size":         float64(1000),
		"chunk_overlap":      float64(150),
		"retrieval_engine":   "graph",
		"search_limit":       float64(8),
	}
	if err := validateGlobalSettings(updates); err != nil {
		t.Fatalf("expected valid global updates, got %v", err)
	}
	if n, isInt := updates["embedding_dim"].(int); !isInt || n != 768 {
		t.Fatalf("embedding_dim not normalized to int: %#v", updates["embedding_dim"])
	}
	if n, isInt := updates["search_limit"].(int); !isInt || n != 8 {
		t.Fatalf("search_limit not normalized to int: %#v", updates["search_limit"])
	}
}

func TestValidateGlobalSettingsRejections(t *testing.T) {
	bad := []map[string]interface{}{
		{"workspace_id": "x"},          // unknown field
		{"embedding_dim": 777},         // no shard for this dimension
		{"chunk_size": 0},              // below range
		{"chunk_overlap": -1},          // below range
		{"retrieval_engine": "sparql"}, // bad enum
		{"search_limit": 50},           // mutable validation still applies
	}
	for _, updates := range bad {
		if err := validateGlobalSettings(updates); err == nil {
			t.Errorf("expected rejection for %#v", updates)
		}
	}
}
