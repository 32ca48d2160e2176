package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledge-vault/internal/queue"
	"knowledge-vault/models"
	"knowledge-vault/services"
	"knowledge-vault/utils"
)

// HandleGetTask returns one task record.
func HandleGetTask(tasks *services.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := tasks.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// HandleListTasks lists tasks, optionally filtered by type and
// workspace.
func HandleListTasks(tasks *services.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		list, err := tasks.List(c.Request.Context(), c.Query("type"), c.Query("workspace"), limit)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": list, "count": len(list)})
	}
}

// HandleCancelTask flags a running task for cooperative cancellation.
func HandleCancelTask(tasks *services.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := tasks.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": c.Param("id"), "status": models.TaskStatusCanceled})
	}
}

// HandleRetryTask resets a failed retryable task and re-enqueues it.
func HandleRetryTask(tasks *services.TaskService, queueClient *queue.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := tasks.Retry(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		switch task.Type {
		case models.TaskTypeIndexing:
			docID, _ := task.Metadata["document_id"].(string)
			force, _ := task.Metadata["force"].(bool)
			err = queueClient.EnqueueIndexing(c.Request.Context(), task.ID, docID, task.WorkspaceID, force)
		case models.TaskTypeWorkspaceOp:
			err = queueClient.EnqueueWorkspaceOp(c.Request.Context(), task.ID)
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to re-enqueue task", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "status": task.Status})
	}
}

// HandleCleanupTasks purges terminal tasks past the retention window.
func HandleCleanupTasks(tasks *services.TaskService, defaultRetentionHours int) gin.HandlerFunc {
	return func(c *gin.Context) {
		hours, err := strconv.Atoi(c.DefaultQuery("older_than_hours", strconv.Itoa(defaultRetentionHours)))
		if err != nil || hours < 1 {
			utils.RespondWithBadRequest(c, "older_than_hours must be a positive integer", nil)
			return
		}
		deleted, err := tasks.Cleanup(c.Request.Context(), hours)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}
