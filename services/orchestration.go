package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/ragconfig"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// Workspace operation kinds carried in task metadata.
const (
	OpMove    = "move"
	OpShare   = "share"
	OpUnshare = "unshare"
	OpLink    = "link"
)

// OrchestrationService moves documents between workspaces. Every
// operation audits the target's embedding config first; incompatible
// targets are rejected unless the caller forces a re-index.
type OrchestrationService struct {
	docs     *mongo.Collection
	index    vector.Index
	sets     *SettingsService
	tasks    *TaskService
	indexing *IndexingService
	vault    *VaultService
	queue    Enqueuer
	timeout  time.Duration
}

func NewOrchestrationService(db *mongo.Database, index vector.Index, sets *SettingsService, tasks *TaskService, indexing *IndexingService, vault *VaultService) *OrchestrationService {
	return &OrchestrationService{
		docs:     db.Collection("documents"),
		index:    index,
		sets:     sets,
		tasks:    tasks,
		indexing: indexing,
		vault:    vault,
		timeout:  indexing.timeout,
	}
}

func (s *OrchestrationService) BindQueue(q Enqueuer) { s.queue = q }

// Audit checks a document against a target workspace without mutating
// anything, surfacing the competing config hashes on mismatch.
func (s *OrchestrationService) Audit(ctx context.Context, docID, targetWorkspace string, force bool) (ragconfig.Audit, error) {
	doc, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return ragconfig.Audit{}, err
	}
	target, err := s.sets.Get(ctx, targetWorkspace)
	if err != nil {
		return ragconfig.Audit{}, err
	}
	return ragconfig.AuditDocument(doc, target, force), nil
}

func ragMismatchError(audit ragconfig.Audit) error {
	return utils.NewConflictError(
		"Document embedding config does not match the target workspace",
		map[string]interface{}{
			"type":     models.ConflictRagMismatch,
			"expected": audit.Expected,
			"actual":   audit.Actual,
		})
}

// RunWorkspaceOp is the worker body for a workspace_op task. The
// operation and its arguments ride in the task metadata so a failed op
// can be retried from the record alone.
func (s *OrchestrationService) RunWorkspaceOp(ctx context.Context, taskID string) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	token := s.tasks.Token(taskID)
	if token.Cancelled(ctx) {
		return nil
	}

	op, _ := task.Metadata["op"].(string)
	docID, _ := task.Metadata["document_id"].(string)
	target, _ := task.Metadata["target_workspace"].(string)
	force, _ := task.Metadata["force"].(bool)

	progress := func(p int, msg string) {
		s.tasks.Update(ctx, taskID, TaskUpdate{Status: models.TaskStatusProcessing, Progress: &p, Message: msg})
	}
	fail := func(err error) error {
		s.tasks.Update(ctx, taskID, TaskUpdate{
			Status: models.TaskStatusFailed, Message: err.Error(), ErrorCode: utils.ErrorCodeOf(err),
		})
		return err
	}

	progress(10, fmt.Sprintf("Running %s...", op))
	var result map[string]interface{}
	switch op {
	case OpMove:
		result, err = s.move(ctx, token, docID, target, force, progress)
	case OpShare:
		result, err = s.share(ctx, token, docID, target, force, progress)
	case OpUnshare:
		result, err = s.unshare(ctx, docID, target)
	case OpLink:
		result, err = s.link(ctx, docID, target)
	default:
		err = utils.NewValidationError("Unknown workspace operation '"+op+"'", map[string]interface{}{"op": op})
	}
	if err != nil {
		return fail(err)
	}
	if result == nil { // canceled at a checkpoint
		return nil
	}

	done := 100
	s.tasks.Update(ctx, taskID, TaskUpdate{
		Status: models.TaskStatusCompleted, Progress: &done,
		Message: fmt.Sprintf("%s complete.", op), Result: result,
	})
	logger.Info("workspace op complete", "op", op, "doc_id", docID, "target", target)
	return nil
}

// move transfers ownership. Matching configs keep the existing vectors
// and just re-tag them; mismatched configs (with force) re-embed under
// the target's settings. The source workspace's points always end up
// gone.
func (s *OrchestrationService) move(ctx context.Context, token *CancelToken, docID, target string, force bool, progress func(int, string)) (map[string]interface{}, error) {
	doc, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.WorkspaceID == target {
		return map[string]interface{}{"document_id": docID, "workspace": target, "unchanged": true}, nil
	}
	targetSettings, err := s.sets.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	audit := ragconfig.AuditDocument(doc, targetSettings, force)
	if !audit.Compatible {
		return nil, ragMismatchError(audit)
	}
	sourceWorkspace := doc.WorkspaceID
	sourceDim := s.indexing.dimFor(ctx, sourceWorkspace)

	// Target points are written before ownership changes, so a failed
	// or canceled attempt leaves the document fully owned and indexed
	// where it started.
	var count int
	if audit.ReindexRequired {
		progress(40, "Re-indexing for target workspace...")
		canceled := false
		count, canceled, err = s.embedIntoTarget(ctx, token, doc, target, targetSettings, progress)
		if err != nil {
			return nil, err
		}
		if canceled {
			return nil, nil
		}
	} else {
		progress(60, "Re-tagging vectors...")
		if err := s.retagWorkspace(ctx, sourceDim, docID, target); err != nil {
			return nil, err
		}
	}

	set := bson.M{
		"workspace_id": target,
		"updated_at":   time.Now().UTC(),
	}
	if audit.ReindexRequired {
		set["status"] = models.DocStatusIndexed
		set["chunk_count"] = count
		set["rag_config_hash"] = ragconfig.Hash(targetSettings)
	}
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err = s.docs.UpdateOne(mctx, bson.M{"id": docID}, bson.M{"$set": set}); err != nil {
		// Unwind the vector side: drop the fresh target set, or restore
		// the original workspace tag on re-tagged points.
		if audit.ReindexRequired {
			if derr := s.index.DeleteByDoc(ctx, targetSettings.EmbeddingDim, docID, target); derr != nil {
				logger.Error("target point cleanup failed on move", "doc_id", docID, "error", derr.Error())
			}
		} else {
			if rerr := s.retagWorkspace(ctx, sourceDim, docID, sourceWorkspace); rerr != nil {
				logger.Error("workspace tag restore failed on move", "doc_id", docID, "error", rerr.Error())
			}
		}
		return nil, err
	}

	// Points tagged with the old owner are stale either way.
	if err := s.index.DeleteByDoc(ctx, sourceDim, docID, sourceWorkspace); err != nil {
		logger.Error("source point cleanup failed on move", "doc_id", docID, "error", err.Error())
	}
	return map[string]interface{}{"document_id": docID, "workspace": target, "reindexed": audit.ReindexRequired}, nil
}

// embedIntoTarget writes a fresh point set for the document into the
// target workspace's shard under the target's settings. Points written
// by a failed or canceled attempt are removed again so no partial set
// is left behind. The bool reports cancellation.
func (s *OrchestrationService) embedIntoTarget(ctx context.Context, token *CancelToken, doc *models.Document, target string, targetSettings models.WorkspaceSettings, progress func(int, string)) (int, bool, error) {
	if err := s.index.EnsureShard(ctx, targetSettings.EmbeddingDim); err != nil {
		return 0, false, err
	}
	reindexed := *doc
	reindexed.WorkspaceID = target
	count, err := s.indexing.embedAndUpsert(ctx, token, &reindexed, target, targetSettings, ragconfig.Hash(targetSettings), progress)
	if err != nil || count < 0 {
		if derr := s.index.DeleteByDoc(ctx, targetSettings.EmbeddingDim, doc.ID, target); derr != nil {
			logger.Error("target point cleanup failed", "doc_id", doc.ID, "workspace_id", target, "error", derr.Error())
		}
		if err != nil {
			return 0, false, err
		}
		return 0, true, nil
	}
	return count, false, nil
}

// retagWorkspace rewrites the workspace owner on a document's points in
// place, preserving ids and vectors.
func (s *OrchestrationService) retagWorkspace(ctx context.Context, dim int, docID, newWorkspace string) error {
	points, err := s.index.ScrollByDoc(ctx, dim, docID, 10000, true)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		points[i].Payload[vector.PayloadWorkspaceID] = newWorkspace
	}
	return s.index.Upsert(ctx, dim, points)
}

// share grants another workspace read access. Compatible configs reuse
// the owner's vectors through the shared_with payload; a forced share
// into an incompatible workspace embeds a parallel copy under the
// target's settings.
func (s *OrchestrationService) share(ctx context.Context, token *CancelToken, docID, target string, force bool, progress func(int, string)) (map[string]interface{}, error) {
	doc, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.WorkspaceID == target {
		return nil, utils.NewValidationError("Cannot share a document with its owning workspace", nil)
	}
	targetSettings, err := s.sets.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	audit := ragconfig.AuditDocument(doc, targetSettings, force)
	if !audit.Compatible {
		return nil, ragMismatchError(audit)
	}

	// The shared copy lands in the target shard before the grant, so a
	// failed or canceled attempt leaves shared_with untouched.
	if audit.ReindexRequired {
		progress(40, "Embedding shared copy...")
		_, canceled, err := s.embedIntoTarget(ctx, token, doc, target, targetSettings, progress)
		if err != nil {
			return nil, err
		}
		if canceled {
			return nil, nil
		}
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.docs.UpdateOne(mctx, bson.M{"id": docID}, bson.M{
		"$addToSet": bson.M{"shared_with": target},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		if audit.ReindexRequired {
			if derr := s.index.DeleteByDoc(ctx, targetSettings.EmbeddingDim, docID, target); derr != nil {
				logger.Error("target point cleanup failed on share", "doc_id", docID, "error", derr.Error())
			}
		}
		return nil, err
	}
	updated, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	// Keep visibility payload in sync on the owner's points.
	ownerDim := s.indexing.dimFor(ctx, updated.WorkspaceID)
	if err := s.index.SetSharedWith(ctx, ownerDim, docID, updated.SharedWith); err != nil {
		logger.Error("shared_with sync failed", "doc_id", docID, "error", err.Error())
	}
	return map[string]interface{}{"document_id": docID, "shared_with": updated.SharedWith}, nil
}

// unshare revokes access and removes any points the target workspace
// accumulated for the document.
func (s *OrchestrationService) unshare(ctx context.Context, docID, target string) (map[string]interface{}, error) {
	doc, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !contains(doc.SharedWith, target) {
		return nil, utils.NewValidationError("Document is not shared with workspace '"+target+"'", nil)
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.docs.UpdateOne(mctx, bson.M{"id": docID}, bson.M{
		"$pull": bson.M{"shared_with": target},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, err
	}
	updated, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	targetDim := s.indexing.dimFor(ctx, target)
	if err := s.index.DeleteByDoc(ctx, targetDim, docID, target); err != nil {
		logger.Error("target point cleanup failed on unshare", "doc_id", docID, "error", err.Error())
	}
	ownerDim := s.indexing.dimFor(ctx, updated.WorkspaceID)
	if err := s.index.SetSharedWith(ctx, ownerDim, docID, updated.SharedWith); err != nil {
		logger.Error("shared_with sync failed", "doc_id", docID, "error", err.Error())
	}
	return map[string]interface{}{"document_id": docID, "shared_with": updated.SharedWith}, nil
}

// link creates an independent record in the target workspace pointing
// at the same vault bytes, then indexes it under the target's own
// config. Linking content the target already holds is a no-op.
func (s *OrchestrationService) link(ctx context.Context, docID, target string) (map[string]interface{}, error) {
	doc, err := s.vault.getByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var existing models.Document
	err = s.docs.FindOne(mctx, bson.M{"workspace_id": target, "content_hash": doc.ContentHash}).Decode(&existing)
	if err == nil {
		return map[string]interface{}{"document_id": existing.ID, "workspace": target, "unchanged": true}, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	filename := doc.Filename
	conflict, err := s.vault.ClassifyUpload(ctx, target, filename, doc.ContentHash)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		filename = conflict.SuggestedName
	}

	now := time.Now().UTC()
	linked := &models.Document{
		ID:             uuid.NewString()[:8],
		WorkspaceID:    target,
		Filename:       filename,
		Extension:      doc.Extension,
		ContentType:    doc.ContentType,
		ContentHash:    doc.ContentHash,
		StorageKey:     doc.StorageKey,
		Status:         models.DocStatusUploaded,
		CurrentVersion: 1,
		SizeBytes:      doc.SizeBytes,
		SharedWith:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.docs.InsertOne(mctx, linked); err != nil {
		return nil, err
	}

	indexTask, err := s.tasks.Create(ctx, models.TaskTypeIndexing, map[string]interface{}{
		"document_id": linked.ID,
		"filename":    linked.Filename,
	}, target)
	if err == nil {
		err = s.queue.EnqueueIndexing(ctx, indexTask.ID, linked.ID, target, true)
	}
	if err != nil {
		logger.Error("indexing hand-off failed on link", "doc_id", linked.ID, "error", err.Error())
	}
	return map[string]interface{}{"document_id": linked.ID, "workspace": target, "filename": filename}, nil
}
