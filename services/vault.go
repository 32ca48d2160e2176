package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-vault/internal/blob"
	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// Enqueuer schedules follow-up background work. Implemented by the
// queue client; injected so services never import the queue package.
type Enqueuer interface {
	EnqueueIndexing(ctx context.Context, taskID, docID, workspaceID string, force bool) error
	EnqueueWorkspaceOp(ctx context.Context, taskID string) error
}

// VaultService owns the content-addressed object store and the document
// records pointing into it. Bytes are stored once per content hash;
// records reference them and the last reference going away removes the
// bytes.
type VaultService struct {
	docs    *mongo.Collection
	blobs   blob.Store
	index   vector.Index
	sets    *SettingsService
	tasks   *TaskService
	queue   Enqueuer
	metrics *telemetry.Metrics
	timeout time.Duration
	blobTTL time.Duration
}

func NewVaultService(db *mongo.Database, cfg *config.Config, blobs blob.Store, index vector.Index, sets *SettingsService, tasks *TaskService) *VaultService {
	return &VaultService{
		docs:    db.Collection("documents"),
		blobs:   blobs,
		index:   index,
		sets:    sets,
		tasks:   tasks,
		timeout: cfg.MongoTimeout,
		blobTTL: cfg.BlobTimeout,
	}
}

// BindQueue attaches the enqueuer after queue construction. The queue
// client needs the services to exist first, so wiring happens in two
// steps.
func (s *VaultService) BindQueue(q Enqueuer) { s.queue = q }

// BindMetrics attaches the telemetry instrument set. Optional.
func (s *VaultService) BindMetrics(m *telemetry.Metrics) { s.metrics = m }

// HashBytes returns the hex sha-256 content hash used as vault address.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StorageKey derives the vault object key from content hash and
// extension. Identical bytes with different extensions stay distinct
// objects so content type survives round trips.
func StorageKey(contentHash, extension string) string {
	return contentHash + strings.ToLower(extension)
}

// ValidateFilename rejects empty names and path-hostile characters.
func ValidateFilename(filename string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return utils.NewValidationError("Filename cannot be empty", nil)
	}
	for _, r := range filename {
		if strings.ContainsRune(models.IllegalFilenameChars, r) {
			return utils.NewValidationError(
				fmt.Sprintf("Filename contains illegal character '%c'", r),
				map[string]interface{}{"character": string(r)})
		}
	}
	return nil
}

var renameSuffix = regexp.MustCompile(`^\((\d+)\)$`)

// SuggestRename proposes "<base> (N).<ext>" with N one past the highest
// existing numbered variant of the same base name.
func SuggestRename(filename string, existing []string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	highest := 0
	for _, name := range existing {
		otherExt := filepath.Ext(name)
		if !strings.EqualFold(otherExt, ext) {
			continue
		}
		otherBase := strings.TrimSuffix(name, otherExt)
		rest, found := strings.CutPrefix(otherBase, base+" ")
		if !found {
			continue
		}
		if m := renameSuffix.FindStringSubmatch(rest); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return fmt.Sprintf("%s (%d)%s", base, highest+1, ext)
}

// uploadCollisionFilters builds the two collision lookups: filenames
// clash within the workspace, content clashes against the whole vault.
func uploadCollisionFilters(workspaceID, filename, contentHash string) (byName, byHash bson.M) {
	return bson.M{"workspace_id": workspaceID, "filename": filename},
		bson.M{"content_hash": contentHash}
}

// ClassifyUpload detects collisions for an incoming (workspace,
// filename, content hash) triple. A nil descriptor means the upload is
// clean.
func (s *VaultService) ClassifyUpload(ctx context.Context, workspaceID, filename, contentHash string) (*models.ConflictDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nameFilter, hashFilter := uploadCollisionFilters(workspaceID, filename, contentHash)

	var byName models.Document
	err := s.docs.FindOne(ctx, nameFilter).Decode(&byName)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, err
	}
	if err == nil {
		kind := models.ConflictNameCollision
		if byName.ContentHash == contentHash {
			kind = models.ConflictExactDuplicate
		}
		suggested, serr := s.suggestedName(ctx, workspaceID, filename)
		if serr != nil {
			return nil, serr
		}
		return &models.ConflictDescriptor{
			Type:          kind,
			Filename:      filename,
			SuggestedName: suggested,
			ExistingDoc: &models.ExistingRef{
				ID:          byName.ID,
				Filename:    byName.Filename,
				WorkspaceID: byName.WorkspaceID,
			},
		}, nil
	}

	// Content collisions are global: identical bytes anywhere in the
	// vault count, regardless of which workspace holds them.
	var byHash models.Document
	err = s.docs.FindOne(ctx, hashFilter).Decode(&byHash)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	suggested, serr := s.suggestedName(ctx, workspaceID, filename)
	if serr != nil {
		return nil, serr
	}
	return &models.ConflictDescriptor{
		Type:          models.ConflictContentCollision,
		Filename:      filename,
		SuggestedName: suggested,
		ExistingDoc: &models.ExistingRef{
			ID:          byHash.ID,
			Filename:    byHash.Filename,
			WorkspaceID: byHash.WorkspaceID,
		},
	}, nil
}

func (s *VaultService) suggestedName(ctx context.Context, workspaceID, filename string) (string, error) {
	cursor, err := s.docs.Find(ctx, bson.M{"workspace_id": workspaceID},
		options.Find().SetProjection(bson.M{"filename": 1}))
	if err != nil {
		return "", err
	}
	defer cursor.Close(ctx)
	var rows []struct {
		Filename string `bson:"filename"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return "", err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Filename
	}
	return SuggestRename(filename, names), nil
}

// ResolveUpload applies the caller's conflict strategy. It returns the
// final filename plus the document to overwrite, if any. With no
// strategy a detected conflict is returned as a conflict error carrying
// the descriptor so the client can resubmit.
func (s *VaultService) ResolveUpload(ctx context.Context, workspaceID, filename, contentHash, strategy string) (string, *models.Document, error) {
	conflict, err := s.ClassifyUpload(ctx, workspaceID, filename, contentHash)
	if err != nil {
		return "", nil, err
	}
	if conflict == nil {
		return filename, nil, nil
	}

	switch strategy {
	case models.StrategyRename:
		return conflict.SuggestedName, nil, nil
	case models.StrategyOverwrite:
		// Overwrite only applies to a name-based conflict in this
		// workspace. A cross-workspace content hit proceeds as a new
		// record; dedup reuses the stored bytes.
		if conflict.Type == models.ConflictContentCollision {
			return filename, nil, nil
		}
		existing, err := s.getByID(ctx, conflict.ExistingDoc.ID)
		if err != nil {
			return "", nil, err
		}
		return existing.Filename, existing, nil
	default:
		return "", nil, utils.NewConflictError(
			fmt.Sprintf("Upload conflicts with existing document '%s'", conflict.ExistingDoc.Filename),
			map[string]interface{}{
				"type":           conflict.Type,
				"filename":       conflict.Filename,
				"suggested_name": conflict.SuggestedName,
				"existing_doc":   conflict.ExistingDoc,
			})
	}
}

// RunIngestion is the worker body for an upload. It commits the bytes
// and the document record, then hands off to indexing. Each checkpoint
// observes the cancel token and unwinds whatever was written so far.
func (s *VaultService) RunIngestion(ctx context.Context, taskID, workspaceID, filename, contentType, strategy string, data []byte) error {
	token := s.tasks.Token(taskID)
	progress := func(p int, msg string) {
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusProcessing, Progress: &p, Message: msg})
	}

	fail := func(code, msg string) error {
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusFailed, Message: msg, ErrorCode: code})
		return fmt.Errorf("%s", msg)
	}

	if token.Cancelled(ctx) {
		return nil
	}
	progress(10, "Storing content...")

	contentHash := HashBytes(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if !SupportedExtension(ext) {
		return fail("VALIDATION_ERROR", "Unsupported file type '"+ext+"'")
	}

	finalName, overwrite, err := s.ResolveUpload(ctx, workspaceID, filename, contentHash, strategy)
	if err != nil {
		if utils.IsConflict(err) {
			return fail("CONFLICT_ERROR", err.Error())
		}
		return fail("INGESTION_ERROR", "Conflict check failed: "+err.Error())
	}

	key := StorageKey(contentHash, ext)
	wroteBlob := false
	bctx, bcancel := context.WithTimeout(ctx, s.blobTTL)
	defer bcancel()
	has, err := s.blobs.Has(bctx, key)
	if err != nil {
		return fail("STORAGE_ERROR", "Vault check failed: "+err.Error())
	}
	if !has {
		if err := s.blobs.Put(bctx, key, bytes.NewReader(data)); err != nil {
			return fail("STORAGE_ERROR", "Vault write failed: "+err.Error())
		}
		wroteBlob = true
		s.metrics.RecordVaultObject(ctx)
	}

	// Unwind helper for the failure paths below.
	removeBlobIfOrphaned := func() {
		if !wroteBlob {
			return
		}
		mctx, mcancel := context.WithTimeout(context.Background(), s.timeout)
		defer mcancel()
		n, cerr := s.docs.CountDocuments(mctx, bson.M{"storage_key": key})
		if cerr == nil && n == 0 {
			s.blobs.Delete(mctx, key)
		}
	}

	if token.Cancelled(ctx) {
		removeBlobIfOrphaned()
		s.tasks.Update(ctx, taskID, TaskUpdate{Message: "Canceled before commit."})
		return nil
	}
	progress(40, "Recording document...")

	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		removeBlobIfOrphaned()
		return fail("INGESTION_ERROR", "Settings lookup failed: "+err.Error())
	}

	now := time.Now().UTC()
	var docID string
	mctx, mcancel := context.WithTimeout(ctx, s.timeout)
	defer mcancel()
	if overwrite != nil {
		docID = overwrite.ID
		oldKey := overwrite.StorageKey
		_, err = s.docs.UpdateOne(mctx, bson.M{"id": overwrite.ID}, bson.M{"$set": bson.M{
			"filename":        finalName,
			"extension":       ext,
			"content_type":    contentType,
			"content_hash":    contentHash,
			"storage_key":     key,
			"status":          models.DocStatusUploaded,
			"chunk_count":     0,
			"size_bytes":      int64(len(data)),
			"rag_config_hash": "",
			"updated_at":      now,
		}, "$inc": bson.M{"current_version": 1}})
		if err != nil {
			removeBlobIfOrphaned()
			return fail("INGESTION_ERROR", "Document update failed: "+err.Error())
		}
		// Stale points for the replaced content.
		s.index.DeleteByDoc(ctx, settings.EmbeddingDim, overwrite.ID, "")
		if oldKey != key {
			s.deleteBlobIfUnreferenced(ctx, oldKey)
		}
	} else {
		docID = uuid.NewString()[:8]
		doc := &models.Document{
			ID:             docID,
			WorkspaceID:    workspaceID,
			Filename:       finalName,
			Extension:      ext,
			ContentType:    contentType,
			ContentHash:    contentHash,
			StorageKey:     key,
			Status:         models.DocStatusUploaded,
			CurrentVersion: 1,
			SizeBytes:      int64(len(data)),
			SharedWith:     []string{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.docs.InsertOne(mctx, doc); err != nil {
			removeBlobIfOrphaned()
			if mongo.IsDuplicateKeyError(err) {
				return fail("CONFLICT_ERROR", "Document '"+finalName+"' was created concurrently")
			}
			return fail("INGESTION_ERROR", "Document insert failed: "+err.Error())
		}
	}

	progress(70, "Scheduling indexing...")
	if token.Cancelled(ctx) {
		// The document is committed; cancellation past this point only
		// skips the indexing hand-off.
		s.tasks.Update(ctx, taskID, TaskUpdate{
			Result: map[string]interface{}{"document_id": docID, "filename": finalName},
		})
		return nil
	}

	indexTask, err := s.tasks.Create(ctx, models.TaskTypeIndexing, map[string]interface{}{
		"document_id": docID,
		"filename":    finalName,
	}, workspaceID)
	if err == nil {
		err = s.queue.EnqueueIndexing(ctx, indexTask.ID, docID, workspaceID, false)
	}
	if err != nil {
		logger.Error("indexing hand-off failed", "doc_id", docID, "error", err.Error())
	}

	done := 100
	s.tasks.Update(ctx, taskID, TaskUpdate{
		Status:   models.TaskStatusCompleted,
		Progress: &done,
		Message:  "Upload complete.",
		Result: map[string]interface{}{
			"document_id":  docID,
			"filename":     finalName,
			"content_hash": contentHash,
			"size_bytes":   len(data),
		},
	})
	s.metrics.RecordIngestion(ctx, workspaceID)
	logger.Info("document ingested", "doc_id", docID, "workspace_id", workspaceID, "filename", finalName, "bytes", len(data))
	return nil
}

func (s *VaultService) getByID(ctx context.Context, docID string) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var doc models.Document
	err := s.docs.FindOne(ctx, bson.M{"id": docID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("Document " + docID + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// docSelector matches a document by id or by filename. A workspace
// scopes the filename lookup; without one the name matches globally.
func docSelector(workspaceID, idOrName string) bson.M {
	byName := bson.M{"filename": idOrName}
	if workspaceID != "" {
		byName["workspace_id"] = workspaceID
	}
	return bson.M{"$or": []bson.M{{"id": idOrName}, byName}}
}

// Get resolves a document by id, falling back to filename.
func (s *VaultService) Get(ctx context.Context, workspaceID, idOrName string) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var doc models.Document
	err := s.docs.FindOne(ctx, docSelector(workspaceID, idOrName)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("Document '" + idOrName + "' not found")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetContent fetches the stored bytes for a document.
func (s *VaultService) GetContent(ctx context.Context, workspaceID, idOrName string) (*models.Document, []byte, error) {
	doc, err := s.Get(ctx, workspaceID, idOrName)
	if err != nil {
		return nil, nil, err
	}
	bctx, cancel := context.WithTimeout(ctx, s.blobTTL)
	defer cancel()
	data, err := s.blobs.Get(bctx, doc.StorageKey)
	if err == blob.ErrObjectNotFound {
		return nil, nil, utils.NewNotFoundError("Vault object missing for document " + doc.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// ListByWorkspace returns documents owned by or shared with a
// workspace, shared ones flagged.
func (s *VaultService) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.docs.Find(ctx, bson.M{"$or": []bson.M{
		{"workspace_id": workspaceID},
		{"shared_with": workspaceID},
	}}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].IsShared = docs[i].WorkspaceID != workspaceID
	}
	return docs, nil
}

// ListAll returns every document record across workspaces.
func (s *VaultService) ListAll(ctx context.Context) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.docs.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// VaultObject is one unique stored blob with its referencing documents.
type VaultObject struct {
	ContentHash string            `bson:"_id" json:"content_hash"`
	StorageKey  string            `bson:"storage_key" json:"storage_key"`
	SizeBytes   int64             `bson:"size_bytes" json:"size_bytes"`
	RefCount    int               `bson:"ref_count" json:"ref_count"`
	Documents   []models.Document `bson:"documents" json:"documents"`
}

// ListVault groups document records by content hash, showing the
// physical dedup view of the store.
func (s *VaultService) ListVault(ctx context.Context) ([]VaultObject, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$content_hash"},
			{Key: "storage_key", Value: bson.D{{Key: "$first", Value: "$storage_key"}}},
			{Key: "size_bytes", Value: bson.D{{Key: "$first", Value: "$size_bytes"}}},
			{Key: "ref_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "documents", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "ref_count", Value: -1}}}},
	}
	cursor, err := s.docs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	objects := []VaultObject{}
	if err := cursor.All(ctx, &objects); err != nil {
		return nil, err
	}
	return objects, nil
}

// Detach removes a document from a workspace's view. The owner
// detaching soft-releases the record into the vault pool; a shared
// workspace detaching just leaves the audience. Either way that
// workspace's vector points go.
func (s *VaultService) Detach(ctx context.Context, idOrName, workspaceID string) error {
	doc, err := s.Get(ctx, workspaceID, idOrName)
	if err != nil {
		return err
	}
	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return err
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	now := time.Now().UTC()
	switch {
	case doc.WorkspaceID == workspaceID:
		_, err = s.docs.UpdateOne(mctx, bson.M{"id": doc.ID}, bson.M{"$set": bson.M{
			"workspace_id": models.VaultPool,
			"status":       models.DocStatusUploaded,
			"updated_at":   now,
		}})
	case contains(doc.SharedWith, workspaceID):
		_, err = s.docs.UpdateOne(mctx, bson.M{"id": doc.ID},
			bson.M{"$pull": bson.M{"shared_with": workspaceID}, "$set": bson.M{"updated_at": now}})
	default:
		return utils.NewValidationError("Document is not attached to workspace '"+workspaceID+"'", nil)
	}
	if err != nil {
		return err
	}

	if err := s.index.DeleteByDoc(ctx, settings.EmbeddingDim, doc.ID, workspaceID); err != nil {
		logger.Error("point cleanup failed on detach", "doc_id", doc.ID, "workspace_id", workspaceID, "error", err.Error())
	}
	logger.Info("document detached", "doc_id", doc.ID, "workspace_id", workspaceID)
	return nil
}

// Purge permanently destroys a document's content: every record
// sharing the storage key, every point in every dimension shard, and
// the blob itself.
func (s *VaultService) Purge(ctx context.Context, workspaceID, idOrName string) error {
	doc, err := s.Get(ctx, workspaceID, idOrName)
	if err != nil {
		return err
	}

	for _, dim := range vector.DimensionShards {
		exists, serr := s.index.ShardExists(ctx, dim)
		if serr != nil || !exists {
			continue
		}
		if derr := s.index.DeleteByContentHash(ctx, dim, doc.ContentHash); derr != nil {
			logger.Error("shard purge failed", "dim", dim, "content_hash", doc.ContentHash, "error", derr.Error())
		}
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.docs.DeleteMany(mctx, bson.M{"storage_key": doc.StorageKey})
	if err != nil {
		return err
	}

	bctx, bcancel := context.WithTimeout(ctx, s.blobTTL)
	defer bcancel()
	if err := s.blobs.Delete(bctx, doc.StorageKey); err != nil && err != blob.ErrObjectNotFound {
		return err
	}
	logger.Info("document purged", "doc_id", doc.ID, "storage_key", doc.StorageKey, "records_removed", res.DeletedCount)
	return nil
}

// deleteBlobIfUnreferenced drops the blob when no record points at it.
func (s *VaultService) deleteBlobIfUnreferenced(ctx context.Context, key string) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.docs.CountDocuments(mctx, bson.M{"storage_key": key})
	if err != nil || n > 0 {
		return
	}
	bctx, bcancel := context.WithTimeout(ctx, s.blobTTL)
	defer bcancel()
	if err := s.blobs.Delete(bctx, key); err != nil && err != blob.ErrObjectNotFound {
		logger.Error("orphan blob cleanup failed", "storage_key", key, "error", err.Error())
	}
}

// DetachAllForWorkspace releases every document a workspace owns or
// sees, used when the workspace itself is deleted.
func (s *VaultService) DetachAllForWorkspace(ctx context.Context, workspaceID string) error {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cursor, err := s.docs.Find(mctx, bson.M{"$or": []bson.M{
		{"workspace_id": workspaceID},
		{"shared_with": workspaceID},
	}})
	if err != nil {
		return err
	}
	var docs []models.Document
	if err := cursor.All(mctx, &docs); err != nil {
		return err
	}
	for i := range docs {
		if err := s.Detach(ctx, docs[i].ID, workspaceID); err != nil {
			return err
		}
	}
	return nil
}

// Inspect reports a document's metadata next to the live state of its
// vector shard.
func (s *VaultService) Inspect(ctx context.Context, idOrName, workspaceID string) (*models.DocumentInspection, error) {
	doc, err := s.Get(ctx, workspaceID, idOrName)
	if err != nil {
		return nil, err
	}
	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	count, err := s.index.CountByDoc(ctx, settings.EmbeddingDim, doc.ID)
	if err != nil {
		return nil, err
	}
	settings.GraphPassword = "" // never serialize credentials
	return &models.DocumentInspection{
		Metadata:   doc,
		Collection: vector.CollectionName(settings.EmbeddingDim),
		ChunkCount: count,
		Settings:   settings,
	}, nil
}

// Chunks lists a document's stored chunks in index order.
func (s *VaultService) Chunks(ctx context.Context, idOrName, workspaceID string, limit int) ([]models.ChunkRecord, error) {
	doc, err := s.Get(ctx, workspaceID, idOrName)
	if err != nil {
		return nil, err
	}
	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	points, err := s.index.ScrollByDoc(ctx, settings.EmbeddingDim, doc.ID, limit, false)
	if err != nil {
		return nil, err
	}
	records := make([]models.ChunkRecord, 0, len(points))
	for _, p := range points {
		records = append(records, models.ChunkRecord{
			ID:          p.ID,
			DocID:       payloadString(p.Payload, vector.PayloadDocID),
			WorkspaceID: payloadString(p.Payload, vector.PayloadWorkspaceID),
			Text:        payloadString(p.Payload, vector.PayloadText),
			Index:       payloadInt(p.Payload, vector.PayloadIndex),
			Source:      payloadString(p.Payload, vector.PayloadSource),
		})
	}
	return records, nil
}

func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
