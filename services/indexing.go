package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"knowledge-vault/internal/ai"
	"knowledge-vault/internal/blob"
	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/ragconfig"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// IndexingService turns stored documents into vector points. Duplicate
// content already embedded under a compatible config is re-tagged
// instead of re-embedded.
type IndexingService struct {
	docs    *mongo.Collection
	blobs   blob.Store
	index   vector.Index
	sets    *SettingsService
	tasks   *TaskService
	cfg     *config.Config
	metrics *telemetry.Metrics
	timeout time.Duration

	mu        sync.Mutex
	embedders map[string]ai.Embedder
	titler    ai.Completer
}

func NewIndexingService(db *mongo.Database, cfg *config.Config, blobs blob.Store, index vector.Index, sets *SettingsService, tasks *TaskService) *IndexingService {
	// Title generation is best-effort. Without an API key documents
	// simply keep their filename as the display name.
	var titler ai.Completer
	if cfg.GeminiAPIKey != "" {
		c, err := ai.NewGeminiCompleter(cfg.GeminiAPIKey, cfg.TitleModel, cfg.EmbedTimeout)
		if err != nil {
			logger.Warn("title completer unavailable", "error", err.Error())
		} else {
			titler = c
		}
	}
	return &IndexingService{
		docs:      db.Collection("documents"),
		blobs:     blobs,
		index:     index,
		sets:      sets,
		tasks:     tasks,
		cfg:       cfg,
		timeout:   cfg.MongoTimeout,
		embedders: map[string]ai.Embedder{},
		titler:    titler,
	}
}

// BindMetrics attaches the telemetry instrument set. Optional.
func (s *IndexingService) BindMetrics(m *telemetry.Metrics) { s.metrics = m }

func (s *IndexingService) embedder(provider, model string, dim int) (ai.Embedder, error) {
	key := fmt.Sprintf("%s|%s|%d", provider, model, dim)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.embedders[key]; ok {
		return e, nil
	}
	e, err := ai.NewEmbedder(s.cfg, provider, model, dim)
	if err != nil {
		return nil, err
	}
	s.embedders[key] = e
	return e, nil
}

// claim transitions the document into indexing atomically, returning
// the record as it was before the claim. Claiming a document another
// worker already holds fails.
func (s *IndexingService) claim(ctx context.Context, docID string) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var prior models.Document
	err := s.docs.FindOneAndUpdate(ctx,
		bson.M{"id": docID, "status": bson.M{"$ne": models.DocStatusIndexing}},
		bson.M{"$set": bson.M{"status": models.DocStatusIndexing, "updated_at": time.Now().UTC()}},
	).Decode(&prior)
	if err == mongo.ErrNoDocuments {
		var current models.Document
		if gerr := s.docs.FindOne(ctx, bson.M{"id": docID}).Decode(&current); gerr == nil {
			return nil, utils.NewConflictError("Document is already being indexed",
				map[string]interface{}{"document_id": docID, "status": current.Status})
		}
		return nil, utils.NewNotFoundError("Document " + docID + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}

func (s *IndexingService) setStatus(ctx context.Context, docID, status string, extra bson.M) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		set[k] = v
	}
	if _, err := s.docs.UpdateOne(mctx, bson.M{"id": docID}, bson.M{"$set": set}); err != nil {
		logger.Error("document status update failed", "doc_id", docID, "status", status, "error", err.Error())
	}
}

// Run is the worker body for an indexing task.
func (s *IndexingService) Run(ctx context.Context, taskID, docID, workspaceID string, force bool) error {
	started := time.Now()
	token := s.tasks.Token(taskID)
	progress := func(p int, msg string) {
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusProcessing, Progress: &p, Message: msg})
	}
	fail := func(code, msg string) error {
		s.setStatus(ctx, docID, models.DocStatusFailed, nil)
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusFailed, Message: msg, ErrorCode: code})
		return fmt.Errorf("%s", msg)
	}
	// Cancellation reverts the document to its pre-claim shape so a
	// later attempt starts clean.
	cancelled := func() error {
		s.setStatus(ctx, docID, models.DocStatusUploaded, nil)
		s.index.DeleteByDoc(ctx, s.dimFor(ctx, workspaceID), docID, workspaceID)
		return nil
	}

	if token.Cancelled(ctx) {
		return nil
	}

	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return fail("INDEXING_ERROR", "Settings lookup failed: "+err.Error())
	}
	configHash := ragconfig.Hash(settings)

	doc, err := s.claim(ctx, docID)
	if err != nil {
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusFailed, Message: err.Error(), ErrorCode: utils.ErrorCodeOf(err)})
		return err
	}

	// Already indexed under the same config and not forced: report the
	// existing chunk count and restore the status.
	if doc.Status == models.DocStatusIndexed && doc.RagConfigHash == configHash && !force {
		s.setStatus(ctx, docID, models.DocStatusIndexed, nil)
		done := 100
		s.tasks.Update(ctx, taskID, TaskUpdate{
			Status: models.TaskStatusCompleted, Progress: &done,
			Message: "Already indexed.",
			Result:  map[string]interface{}{"document_id": docID, "chunk_count": doc.ChunkCount, "skipped": true},
		})
		return nil
	}

	progress(10, "Preparing shard...")
	if err := s.index.EnsureShard(ctx, settings.EmbeddingDim); err != nil {
		return fail("INDEXING_ERROR", "Shard creation failed: "+err.Error())
	}

	// Drop whatever this (doc, workspace) pair had before.
	if err := s.index.DeleteByDoc(ctx, settings.EmbeddingDim, docID, workspaceID); err != nil {
		return fail("INDEXING_ERROR", "Stale point cleanup failed: "+err.Error())
	}

	if token.Cancelled(ctx) {
		return cancelled()
	}

	// Dedup fast path: identical bytes already embedded under the same
	// config elsewhere can be re-tagged without touching the embedder.
	chunkCount, reused, err := s.retagFromTwin(ctx, doc, workspaceID, settings, configHash)
	if err != nil {
		return fail("INDEXING_ERROR", "Point reuse failed: "+err.Error())
	}

	if !reused {
		chunkCount, err = s.embedAndUpsert(ctx, token, doc, workspaceID, settings, configHash, progress)
		if err != nil {
			if utils.IsValidation(err) {
				return fail("VALIDATION_ERROR", err.Error())
			}
			return fail("INDEXING_ERROR", err.Error())
		}
		if chunkCount < 0 { // canceled mid-phase
			return cancelled()
		}
	}

	progress(95, "Finalizing...")
	s.setStatus(ctx, docID, models.DocStatusIndexed, bson.M{
		"chunk_count":     chunkCount,
		"rag_config_hash": configHash,
	})

	done := 100
	s.tasks.Update(ctx, taskID, TaskUpdate{
		Status: models.TaskStatusCompleted, Progress: &done,
		Message: "Indexing complete.",
		Result: map[string]interface{}{
			"document_id": docID,
			"chunk_count": chunkCount,
			"reused":      reused,
			"collection":  vector.CollectionName(settings.EmbeddingDim),
		},
	})
	s.metrics.RecordIndexing(ctx, time.Since(started).Seconds(), reused)
	logger.Info("document indexed", "doc_id", docID, "workspace_id", workspaceID,
		"chunks", chunkCount, "reused", reused, "dim", settings.EmbeddingDim)
	return nil
}

// retagFromTwin looks for an indexed sibling record with identical
// content and config, and clones its points under this document's
// identity. Returns (chunkCount, true) when the fast path applied.
func (s *IndexingService) retagFromTwin(ctx context.Context, doc *models.Document, workspaceID string, settings models.WorkspaceSettings, configHash string) (int, bool, error) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var twin models.Document
	err := s.docs.FindOne(mctx, bson.M{
		"content_hash":    doc.ContentHash,
		"id":              bson.M{"$ne": doc.ID},
		"status":          models.DocStatusIndexed,
		"rag_config_hash": configHash,
	}).Decode(&twin)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	points, err := s.index.ScrollByDoc(ctx, settings.EmbeddingDim, twin.ID, 10000, true)
	if err != nil || len(points) == 0 {
		return 0, false, err
	}

	retagged := make([]vector.ChunkPoint, 0, len(points))
	for _, p := range points {
		payload := map[string]interface{}{}
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[vector.PayloadDocID] = doc.ID
		payload[vector.PayloadWorkspaceID] = workspaceID
		payload[vector.PayloadSharedWith] = doc.SharedWith
		payload[vector.PayloadSource] = doc.Filename
		retagged = append(retagged, vector.ChunkPoint{
			ID:      uuid.NewString(),
			Vector:  p.Vector,
			Payload: payload,
		})
	}
	if err := s.index.Upsert(ctx, settings.EmbeddingDim, retagged); err != nil {
		return 0, false, err
	}
	if doc.Title == "" && twin.Title != "" {
		s.setStatus(ctx, doc.ID, models.DocStatusIndexing, bson.M{"title": twin.Title})
	}
	return len(retagged), true, nil
}

// embedAndUpsert runs the full pipeline. A negative count signals
// cancellation observed mid-phase.
func (s *IndexingService) embedAndUpsert(ctx context.Context, token *CancelToken, doc *models.Document, workspaceID string, settings models.WorkspaceSettings, configHash string, progress func(int, string)) (int, error) {
	progress(20, "Extracting text...")
	bctx, bcancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	defer bcancel()
	data, err := s.blobs.Get(bctx, doc.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("vault read failed: %w", err)
	}
	text, err := ExtractText(data, doc.Extension)
	if err != nil {
		return 0, err
	}

	chunks := Chunk(text, settings.ChunkSize, settings.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, utils.NewValidationError("Document has no indexable text", nil)
	}
	if token.Cancelled(ctx) {
		return -1, nil
	}

	if s.titler != nil && doc.Title == "" {
		if title := s.generateTitle(ctx, chunks[0]); title != "" {
			s.setStatus(ctx, doc.ID, models.DocStatusIndexing, bson.M{"title": title})
		}
	}

	progress(40, fmt.Sprintf("Embedding %d chunks...", len(chunks)))
	embedder, err := s.embedder(settings.EmbeddingProvider, settings.EmbeddingModel, settings.EmbeddingDim)
	if err != nil {
		return 0, err
	}
	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if token.Cancelled(ctx) {
		return -1, nil
	}

	progress(75, "Writing points...")
	points := make([]vector.ChunkPoint, len(chunks))
	for i := range chunks {
		points[i] = vector.ChunkPoint{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]interface{}{
				vector.PayloadDocID:         doc.ID,
				vector.PayloadWorkspaceID:   workspaceID,
				vector.PayloadSharedWith:    doc.SharedWith,
				vector.PayloadText:          chunks[i],
				vector.PayloadIndex:         i,
				vector.PayloadSource:        doc.Filename,
				vector.PayloadContentHash:   doc.ContentHash,
				vector.PayloadRagConfigHash: configHash,
				vector.PayloadVersion:       doc.CurrentVersion,
			},
		}
	}
	if err := s.index.Upsert(ctx, settings.EmbeddingDim, points); err != nil {
		return 0, fmt.Errorf("point upsert failed: %w", err)
	}
	return len(points), nil
}

// generateTitle asks the completion model for a short display title
// based on the document's opening text. Failures are logged and the
// document keeps its filename as the display name.
func (s *IndexingService) generateTitle(ctx context.Context, excerpt string) string {
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}
	prompt := "Generate a short descriptive title (at most 8 words) for the following document excerpt. Reply with the title only.\n\n" + excerpt
	title, err := s.titler.Complete(ctx, prompt)
	if err != nil {
		logger.Warn("title generation failed", "error", err.Error())
		return ""
	}
	title = strings.Trim(title, "\"'` \n")
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}

func (s *IndexingService) dimFor(ctx context.Context, workspaceID string) int {
	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return s.cfg.DefaultEmbeddingDim
	}
	return settings.EmbeddingDim
}
