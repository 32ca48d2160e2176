package services

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestValidateFilename(t *testing.T) {
	if err := ValidateFilename("report 2024.pdf"); err != nil {
		t.Fatalf("expected valid filename, got %v", err)
	}
	bad := []string{"", "  ", "a/b.pdf", `a\b.txt`, "a:b.md", "q?.txt", `say "hi".txt`, "a|b.log", "<x>.md", "star*.txt"}
	for _, name := range bad {
		if err := ValidateFilename(name); err == nil {
			t.Errorf("expected rejection for %q", name)
		}
	}
}

func TestSuggestRenameFirstVariant(t *testing.T) {
	got := SuggestRename("notes.txt", []string{"notes.txt", "other.txt"})
	if got != "notes (1).txt" {
		t.Fatalf("got %q", got)
	}
}

func TestSuggestRenameScansExistingNumbers(t *testing.T) {
	existing := []string{"notes.txt", "notes (1).txt", "notes (3).txt", "notes (2).md"}
	got := SuggestRename("notes.txt", existing)
	if got != "notes (4).txt" {
		t.Fatalf("got %q", got)
	}
}

func TestSuggestRenameIgnoresUnrelatedPrefixes(t *testing.T) {
	// "notes extra (7).txt" shares the prefix but not the "(N)" shape
	// directly after the base name.
	existing := []string{"notes.txt", "notes extra (7).txt"}
	got := SuggestRename("notes.txt", existing)
	if got != "notes (1).txt" {
		t.Fatalf("got %q", got)
	}
}

func TestSuggestRenameNoExtension(t *testing.T) {
	got := SuggestRename("README", []string{"README", "README (1)"})
	if got != "README (2)" {
		t.Fatalf("got %q", got)
	}
}

func TestStorageKeyLowercasesExtension(t *testing.T) {
	if got := StorageKey("abc123", ".PDF"); got != "abc123.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestDocSelectorMatchesIDOrName(t *testing.T) {
	filter := docSelector("ws1", "report.pdf")
	or, ok := filter["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("expected two-clause $or, got %v", filter)
	}
	if or[0]["id"] != "report.pdf" {
		t.Fatalf("first clause must match by id, got %v", or[0])
	}
	if or[1]["filename"] != "report.pdf" {
		t.Fatalf("second clause must match by filename, got %v", or[1])
	}
	if or[1]["workspace_id"] != "ws1" {
		t.Fatalf("filename clause must be scoped to the workspace, got %v", or[1])
	}
}

func TestDocSelectorGlobalNameWithoutWorkspace(t *testing.T) {
	filter := docSelector("", "report.pdf")
	or := filter["$or"].([]bson.M)
	if _, scoped := or[1]["workspace_id"]; scoped {
		t.Fatalf("empty workspace must not scope the filename clause, got %v", or[1])
	}
}

func TestUploadCollisionFiltersScopes(t *testing.T) {
	byName, byHash := uploadCollisionFilters("ws1", "report.pdf", "abc123")
	if byName["workspace_id"] != "ws1" || byName["filename"] != "report.pdf" {
		t.Fatalf("name lookup must be workspace-scoped, got %v", byName)
	}
	if byHash["content_hash"] != "abc123" {
		t.Fatalf("hash lookup must match by content hash, got %v", byHash)
	}
	if _, scoped := byHash["workspace_id"]; scoped {
		t.Fatalf("content lookup must span all workspaces, got %v", byHash)
	}
}

func TestHashBytesStable(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == HashBytes([]byte("hello!")) {
		t.Fatal("distinct content must hash differently")
	}
}
