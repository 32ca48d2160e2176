package blob

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := "vault/ab12cd34/v1/paper.pdf"
	content := []byte("physical document bytes")

	if err := s.Put(ctx, key, bytes.NewReader(content)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch: got %q", got)
	}

	ok, err := s.Has(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Has = %v, %v; want true", ok, err)
	}
}

func TestPutIsIdempotentOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "vault/doc1/v1/a.txt"

	if err := s.Put(ctx, key, bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, key, bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || string(got) != "first" {
		t.Fatalf("Get after re-put = %q, %v", got, err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "vault/missing/v1/x.txt"); err != ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "vault/doc9/v1/b.txt"

	if err := s.Put(ctx, key, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "vault", "doc9")); !os.IsNotExist(err) {
		t.Fatalf("expected doc directory to be pruned")
	}

	// Deleting again is a no-op
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, "../outside.txt", bytes.NewReader([]byte("x"))); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if _, err := s.Get(ctx, "/etc/passwd"); err == ErrObjectNotFound || err == nil {
		t.Fatalf("expected absolute key to be rejected with an error, got %v", err)
	}
}
