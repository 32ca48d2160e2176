package services

import (
	"math"
	"reflect"
	"testing"

	"knowledge-vault/models"
)

func rl(ids ...string) []models.SearchResult {
	out := make([]models.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = models.SearchResult{ID: id, Text: "text-" + id}
	}
	return out
}

func ids(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestFuseRRFScores(t *testing.T) {
	// "b" is rank 1 in the first list and rank 0 in the second.
	results := FuseRRF(10, rl("a", "b"), rl("b", "c"))

	want := map[string]float64{
		"a": 1.0 / 61,
		"b": 1.0/62 + 1.0/61,
		"c": 1.0 / 62,
	}
	for _, r := range results {
		if math.Abs(r.Score-want[r.ID]) > 1e-12 {
			t.Errorf("score for %s = %v, want %v", r.ID, r.Score, want[r.ID])
		}
	}
	if got := ids(results); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("order %v", got)
	}
}

func TestFuseRRFAppearingInBothListsBeatsSingleList(t *testing.T) {
	// A chunk near the bottom of both lists still outranks a chunk at
	// the top of only one: 2/(60+n) style sums dominate single terms
	// when n is small relative to the constant.
	results := FuseRRF(10, rl("only-top", "x1", "both"), rl("x2", "both"))
	if results[0].ID != "both" {
		t.Fatalf("expected dual-list candidate first, got %v", ids(results))
	}
}

func TestFuseRRFDeterministicTieBreak(t *testing.T) {
	// Disjoint candidates at equal ranks have identical scores; order
	// must fall back to ascending id.
	for i := 0; i < 10; i++ {
		results := FuseRRF(10, rl("zebra"), rl("apple"))
		if got := ids(results); !reflect.DeepEqual(got, []string{"apple", "zebra"}) {
			t.Fatalf("run %d: unstable tie-break %v", i, got)
		}
	}
}

func TestFuseRRFInputOrderOfListsIrrelevantForScores(t *testing.T) {
	a := FuseRRF(10, rl("a", "b", "c"), rl("c", "d"))
	b := FuseRRF(10, rl("c", "d"), rl("a", "b", "c"))
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("fusion depends on list order: %v vs %v", ids(a), ids(b))
	}
}

func TestFuseRRFTruncatesToLimit(t *testing.T) {
	results := FuseRRF(2, rl("a", "b", "c", "d"), rl("e", "f"))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestFuseRRFEmptyLists(t *testing.T) {
	if got := FuseRRF(5); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if got := FuseRRF(5, nil, rl()); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestFuseRRFSingleListPreservesOrder(t *testing.T) {
	results := FuseRRF(10, rl("x", "y", "z"))
	if got := ids(results); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("single list reordered: %v", got)
	}
}
