package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"knowledge-vault/internal/ai"
	"knowledge-vault/internal/blob"
	"knowledge-vault/internal/config"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
)

// fakeIndex records vector operations so tests can assert what was
// written and what was cleaned up.
type fakeIndex struct {
	scrollPoints []vector.ChunkPoint
	upserted     [][]vector.ChunkPoint
	deletions    []string // "dim/doc/workspace"
	failUpsert   bool
}

func (f *fakeIndex) EnsureShard(ctx context.Context, dim int) error { return nil }
func (f *fakeIndex) ShardExists(ctx context.Context, dim int) (bool, error) {
	return true, nil
}
func (f *fakeIndex) Upsert(ctx context.Context, dim int, points []vector.ChunkPoint) error {
	if f.failUpsert {
		return errors.New("upsert rejected")
	}
	f.upserted = append(f.upserted, points)
	return nil
}
func (f *fakeIndex) Query(ctx context.Context, dim int, vec []float32, workspaceID string, limit int) ([]vector.Scored, error) {
	return nil, nil
}
func (f *fakeIndex) KeywordSearch(ctx context.Context, dim int, text, workspaceID string, limit int) ([]vector.ChunkPoint, error) {
	return nil, nil
}
func (f *fakeIndex) ScrollByDoc(ctx context.Context, dim int, docID string, limit int, withVectors bool) ([]vector.ChunkPoint, error) {
	return f.scrollPoints, nil
}
func (f *fakeIndex) ScrollByContentHash(ctx context.Context, dim int, contentHash string, limit int, withVectors bool) ([]vector.ChunkPoint, error) {
	return nil, nil
}
func (f *fakeIndex) DeleteByDoc(ctx context.Context, dim int, docID, workspaceID string) error {
	f.deletions = append(f.deletions, docID+"/"+workspaceID)
	return nil
}
func (f *fakeIndex) DeleteByContentHash(ctx context.Context, dim int, contentHash string) error {
	return nil
}
func (f *fakeIndex) SetSharedWith(ctx context.Context, dim int, docID string, sharedWith []string) error {
	return nil
}
func (f *fakeIndex) CountByDoc(ctx context.Context, dim int, docID string) (int, error) {
	return 0, nil
}
func (f *fakeIndex) Close() error { return nil }

// fakeBlobStore serves one object, or refuses everything.
type fakeBlobStore struct {
	data    []byte
	failGet bool
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader) error { return nil }
func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("storage unavailable")
	}
	return f.data, nil
}
func (f *fakeBlobStore) Delete(ctx context.Context, key string) error    { return nil }
func (f *fakeBlobStore) Has(ctx context.Context, key string) (bool, error) { return true, nil }

func newTestOrchestration(index *fakeIndex, blobs blob.Store) *OrchestrationService {
	cfg := &config.Config{BlobTimeout: time.Second, MongoTimeout: time.Second}
	indexing := &IndexingService{
		blobs:     blobs,
		index:     index,
		cfg:       cfg,
		timeout:   time.Second,
		embedders: map[string]ai.Embedder{},
	}
	return &OrchestrationService{
		index:    index,
		indexing: indexing,
		timeout:  time.Second,
	}
}

func mockSettings() models.WorkspaceSettings {
	return models.WorkspaceSettings{
		EmbeddingProvider: "mock",
		EmbeddingModel:    "test-model",
		EmbeddingDim:      384,
		ChunkSize:         120,
		ChunkOverlap:      20,
	}
}

func testDoc() *models.Document {
	return &models.Document{
		ID:          "doc1",
		WorkspaceID: "source",
		Filename:    "notes.txt",
		Extension:   ".txt",
		ContentHash: "abc",
		StorageKey:  "abc.txt",
		SharedWith:  []string{},
	}
}

func TestEmbedIntoTargetWritesTargetWorkspace(t *testing.T) {
	index := &fakeIndex{}
	blobs := &fakeBlobStore{data: bytes.Repeat([]byte("knowledge vault chunk text "), 30)}
	orch := newTestOrchestration(index, blobs)

	count, canceled, err := orch.embedIntoTarget(context.Background(), nil, testDoc(), "target", mockSettings(), func(int, string) {})
	if err != nil {
		t.Fatalf("embedIntoTarget failed: %v", err)
	}
	if canceled {
		t.Fatal("unexpected cancellation")
	}
	if count <= 0 {
		t.Fatalf("expected points to be written, got count %d", count)
	}
	if len(index.upserted) != 1 {
		t.Fatalf("expected one upsert batch, got %d", len(index.upserted))
	}
	for _, p := range index.upserted[0] {
		if ws := p.Payload[vector.PayloadWorkspaceID]; ws != "target" {
			t.Fatalf("point tagged with workspace %v, want target", ws)
		}
	}
	if len(index.deletions) != 0 {
		t.Fatalf("successful run must not delete points, got %v", index.deletions)
	}
}

func TestEmbedIntoTargetCleansUpOnFailure(t *testing.T) {
	index := &fakeIndex{}
	blobs := &fakeBlobStore{failGet: true}
	orch := newTestOrchestration(index, blobs)

	_, _, err := orch.embedIntoTarget(context.Background(), nil, testDoc(), "target", mockSettings(), func(int, string) {})
	if err == nil {
		t.Fatal("expected an error when the vault read fails")
	}
	if len(index.upserted) != 0 {
		t.Fatalf("no points should be written on failure, got %d batches", len(index.upserted))
	}
	if len(index.deletions) != 1 || index.deletions[0] != "doc1/target" {
		t.Fatalf("expected target-shard cleanup doc1/target, got %v", index.deletions)
	}
}

func TestEmbedIntoTargetCleansUpOnUpsertError(t *testing.T) {
	index := &fakeIndex{failUpsert: true}
	blobs := &fakeBlobStore{data: bytes.Repeat([]byte("chunk text for the vault "), 30)}
	orch := newTestOrchestration(index, blobs)

	_, _, err := orch.embedIntoTarget(context.Background(), nil, testDoc(), "target", mockSettings(), func(int, string) {})
	if err == nil {
		t.Fatal("expected an error when the upsert fails")
	}
	if len(index.deletions) != 1 || index.deletions[0] != "doc1/target" {
		t.Fatalf("expected target-shard cleanup doc1/target, got %v", index.deletions)
	}
}

func TestRetagWorkspacePreservesPointIdentity(t *testing.T) {
	index := &fakeIndex{
		scrollPoints: []vector.ChunkPoint{
			{ID: "p1", Vector: []float32{0.1, 0.2}, Payload: map[string]interface{}{
				vector.PayloadDocID:       "doc1",
				vector.PayloadWorkspaceID: "source",
				vector.PayloadText:        "first",
			}},
			{ID: "p2", Vector: []float32{0.3, 0.4}, Payload: map[string]interface{}{
				vector.PayloadDocID:       "doc1",
				vector.PayloadWorkspaceID: "source",
				vector.PayloadText:        "second",
			}},
		},
	}
	orch := newTestOrchestration(index, &fakeBlobStore{})

	if err := orch.retagWorkspace(context.Background(), 384, "doc1", "target"); err != nil {
		t.Fatalf("retagWorkspace failed: %v", err)
	}
	if len(index.upserted) != 1 {
		t.Fatalf("expected one upsert batch, got %d", len(index.upserted))
	}
	got := index.upserted[0]
	if len(got) != 2 {
		t.Fatalf("expected both points rewritten, got %d", len(got))
	}
	for i, want := range []string{"p1", "p2"} {
		if got[i].ID != want {
			t.Fatalf("point id changed: got %s, want %s", got[i].ID, want)
		}
		if ws := got[i].Payload[vector.PayloadWorkspaceID]; ws != "target" {
			t.Fatalf("point %s workspace = %v, want target", want, ws)
		}
		if got[i].Payload[vector.PayloadText] == "" {
			t.Fatalf("point %s lost its payload", want)
		}
	}
}
