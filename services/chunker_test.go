package services

import (
	"strings"
	"testing"
)

func TestChunkShortTextSinglePiece(t *testing.T) {
	chunks := Chunk("hello world", 800, 150)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestChunkEmpty(t *testing.T) {
	if got := Chunk("   \n  ", 800, 150); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestChunkOverlapCarriesContext(t *testing.T) {
	words := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("chunk %d exceeds size: %d runes", i, len([]rune(c)))
		}
	}
	// With overlap, total chunk length exceeds the source length.
	total := 0
	for _, c := range chunks {
		total += len([]rune(c))
	}
	if total <= len([]rune(text)) {
		t.Fatalf("expected overlap to duplicate context: %d total vs %d source", total, len([]rune(text)))
	}
}

func TestChunkCoversAllContent(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 50)
	chunks := Chunk(text, 100, 0)
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "abcdefghij") {
		t.Fatal("content lost during chunking")
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(strings.TrimSpace(text))-len(chunks)*2 {
		t.Fatalf("chunks dropped content: %d of %d chars", total, len(text))
	}
}
