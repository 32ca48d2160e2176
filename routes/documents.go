package routes

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/queue"
	"knowledge-vault/models"
	"knowledge-vault/services"
	"knowledge-vault/utils"
)

// HandleUploadDocument accepts a multipart upload, resolves conflicts
// synchronously, then stages the bytes and hands off to the ingestion
// worker. The response is the task id to poll.
func HandleUploadDocument(cfg *config.Config, vault *services.VaultService, tasks *services.TaskService, queueClient *queue.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Param("workspace_id")

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if err := services.ValidateFilename(filename); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		ext := strings.ToLower(filepath.Ext(filename))
		if !services.SupportedExtension(ext) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Unsupported file type '"+ext+"'", gin.H{"extension": ext})
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}

		strategy := c.PostForm("strategy")
		switch strategy {
		case "", models.StrategyNone, models.StrategyRename, models.StrategyOverwrite:
		default:
			utils.RespondWithBadRequest(c, "strategy must be 'rename' or 'overwrite'", gin.H{"strategy": strategy})
			return
		}

		// Conflicts surface before any work is queued, carrying the
		// suggested rename so the client can resubmit.
		contentHash := services.HashBytes(data)
		if strategy == "" || strategy == models.StrategyNone {
			if _, _, err := vault.ResolveUpload(c.Request.Context(), workspaceID, filename, contentHash, models.StrategyNone); err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
		}

		stageIngestion(c, cfg, tasks, queueClient, workspaceID, filename,
			header.Header.Get("Content-Type"), strategy, data, nil)
	}
}

// stageIngestion creates the ingestion task, stages the bytes for the
// worker, and enqueues the job. The 202 response carries the task id.
func stageIngestion(c *gin.Context, cfg *config.Config, tasks *services.TaskService, queueClient *queue.Client, workspaceID, filename, contentType, strategy string, data []byte, extraMeta map[string]interface{}) {
	metadata := map[string]interface{}{
		"filename":     filename,
		"size_bytes":   int64(len(data)),
		"content_hash": services.HashBytes(data),
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}
	task, err := tasks.Create(c.Request.Context(), models.TaskTypeIngestion, metadata, workspaceID)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to create task", nil)
		return
	}

	if err := os.MkdirAll(cfg.StagingDir, 0755); err != nil {
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}
	ext := strings.ToLower(filepath.Ext(filename))
	stagingPath := filepath.Join(cfg.StagingDir, fmt.Sprintf("%s%s", task.ID, ext))
	if err := os.WriteFile(stagingPath, data, 0600); err != nil {
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}

	err = queueClient.EnqueueIngestion(c.Request.Context(), queue.IngestPayload{
		TaskID:      task.ID,
		WorkspaceID: workspaceID,
		Filename:    filename,
		ContentType: contentType,
		Strategy:    strategy,
		StagingPath: stagingPath,
	})
	if err != nil {
		os.Remove(stagingPath)
		logger.Error("ingestion enqueue failed", "task_id", task.ID, "error", err.Error())
		utils.RespondWithInternalError(c, "Failed to schedule ingestion", nil)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id":  task.ID,
		"filename": filename,
		"status":   task.Status,
	})
}

type arxivUploadRequest struct {
	ArxivID  string `json:"arxiv_id" binding:"required"`
	Strategy string `json:"strategy"`
}

// HandleUploadArxiv downloads a paper from arXiv and feeds it into the
// regular ingestion flow under its title as filename.
func HandleUploadArxiv(cfg *config.Config, vault *services.VaultService, arxiv *services.ArxivClient, tasks *services.TaskService, queueClient *queue.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Param("workspace_id")
		var req arxivUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "arxiv_id is required", nil)
			return
		}
		switch req.Strategy {
		case "", models.StrategyNone, models.StrategyRename, models.StrategyOverwrite:
		default:
			utils.RespondWithBadRequest(c, "strategy must be 'rename' or 'overwrite'", gin.H{"strategy": req.Strategy})
			return
		}

		arxivID, err := services.ParseArxivID(req.ArxivID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		title, data, err := arxiv.Fetch(c.Request.Context(), arxivID, cfg.MaxFileSize)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		filename := services.SafeArxivFilename(title)

		if req.Strategy == "" || req.Strategy == models.StrategyNone {
			contentHash := services.HashBytes(data)
			if _, _, err := vault.ResolveUpload(c.Request.Context(), workspaceID, filename, contentHash, models.StrategyNone); err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
		}

		stageIngestion(c, cfg, tasks, queueClient, workspaceID, filename,
			"application/pdf", req.Strategy, data, map[string]interface{}{"arxiv_id": arxivID})
	}
}

// HandleListWorkspaceDocuments lists documents owned by or shared with
// a workspace.
func HandleListWorkspaceDocuments(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := vault.ListByWorkspace(c.Request.Context(), c.Param("workspace_id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

// HandleListAllDocuments lists every document across workspaces.
func HandleListAllDocuments(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := vault.ListAll(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

// HandleListVault shows the deduplicated physical view of the store.
func HandleListVault(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		objects, err := vault.ListVault(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"objects": objects, "count": len(objects)})
	}
}

// HandleGetDocument resolves a document by id or filename.
func HandleGetDocument(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := vault.Get(c.Request.Context(), c.Query("workspace"), c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// HandleGetDocumentContent streams the stored bytes back to the client.
func HandleGetDocumentContent(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, data, err := vault.GetContent(c.Request.Context(), c.Query("workspace"), c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		contentType := doc.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
		c.Data(http.StatusOK, contentType, data)
	}
}

// HandleDeleteDocument detaches a document from a workspace. With
// ?hard=true the content is purged from the vault entirely.
func HandleDeleteDocument(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")
		workspaceID := c.Param("workspace_id")

		var err error
		hard := c.Query("hard") == "true"
		if hard {
			err = vault.Purge(c.Request.Context(), workspaceID, docID)
		} else {
			err = vault.Detach(c.Request.Context(), docID, workspaceID)
		}
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": docID, "purged": hard})
	}
}

// HandleIndexDocument schedules (re-)indexing of a stored document,
// addressed by id or filename.
func HandleIndexDocument(vault *services.VaultService, tasks *services.TaskService, queueClient *queue.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Query("workspace")
		if workspaceID == "" {
			workspaceID = models.DefaultWorkspaceID
		}
		force := c.Query("force") == "true"

		doc, err := vault.Get(c.Request.Context(), workspaceID, c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		task, err := tasks.Create(c.Request.Context(), models.TaskTypeIndexing, map[string]interface{}{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"force":       force,
		}, workspaceID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create task", nil)
			return
		}
		if err := queueClient.EnqueueIndexing(c.Request.Context(), task.ID, doc.ID, workspaceID, force); err != nil {
			utils.RespondWithInternalError(c, "Failed to schedule indexing", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "document_id": doc.ID})
	}
}

type workspaceOpRequest struct {
	Op              string `json:"op" binding:"required"`
	TargetWorkspace string `json:"target_workspace" binding:"required"`
	Force           bool   `json:"force"`
}

// HandleWorkspaceOp schedules a cross-workspace operation (move, share,
// unshare, link). The config audit runs synchronously first so
// incompatible targets fail fast with both hashes in the error.
func HandleWorkspaceOp(vault *services.VaultService, orchestration *services.OrchestrationService, tasks *services.TaskService, queueClient *queue.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workspaceOpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "op and target_workspace are required", nil)
			return
		}
		switch req.Op {
		case services.OpMove, services.OpShare, services.OpUnshare, services.OpLink:
		default:
			utils.RespondWithBadRequest(c, "op must be one of move, share, unshare, link", gin.H{"op": req.Op})
			return
		}

		doc, err := vault.Get(c.Request.Context(), c.Query("workspace"), c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		docID := doc.ID

		if req.Op == services.OpMove || req.Op == services.OpShare {
			audit, err := orchestration.Audit(c.Request.Context(), docID, req.TargetWorkspace, req.Force)
			if err != nil {
				utils.RespondWithDomainError(c, err)
				return
			}
			if !audit.Compatible {
				utils.RespondWithDomainError(c, utils.NewConflictError(
					"Document embedding config does not match the target workspace",
					gin.H{
						"type":     models.ConflictRagMismatch,
						"expected": audit.Expected,
						"actual":   audit.Actual,
					}))
				return
			}
		}

		task, err := tasks.Create(c.Request.Context(), models.TaskTypeWorkspaceOp, map[string]interface{}{
			"op":               req.Op,
			"document_id":      docID,
			"target_workspace": req.TargetWorkspace,
			"force":            req.Force,
		}, req.TargetWorkspace)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create task", nil)
			return
		}
		if err := queueClient.EnqueueWorkspaceOp(c.Request.Context(), task.ID); err != nil {
			utils.RespondWithInternalError(c, "Failed to schedule operation", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "op": req.Op})
	}
}

// HandleInspectDocument reports metadata next to live shard state.
func HandleInspectDocument(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Query("workspace")
		if workspaceID == "" {
			workspaceID = models.DefaultWorkspaceID
		}
		inspection, err := vault.Inspect(c.Request.Context(), c.Param("id"), workspaceID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, inspection)
	}
}

// HandleListDocumentChunks lists a document's stored chunks.
func HandleListDocumentChunks(vault *services.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Query("workspace")
		if workspaceID == "" {
			workspaceID = models.DefaultWorkspaceID
		}
		chunks, err := vault.Chunks(c.Request.Context(), c.Param("id"), workspaceID, 0)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks, "count": len(chunks)})
	}
}
