package routes

import (
	"github.com/gin-gonic/gin"

	"knowledge-vault/internal/config"
	"knowledge-vault/internal/queue"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/services"
)

// Services bundles everything the HTTP layer dispatches into.
type Services struct {
	Vault         *services.VaultService
	Indexing      *services.IndexingService
	Orchestration *services.OrchestrationService
	Workspaces    *services.WorkspaceService
	Settings      *services.SettingsService
	Tasks         *services.TaskService
	Search        *services.SearchService
	Arxiv         *services.ArxivClient
	Queue         *queue.Client
	Metrics       *telemetry.Metrics
}

// SetupRoutes wires the full API surface onto the router.
func SetupRoutes(router *gin.Engine, cfg *config.Config, s *Services) {
	api := router.Group("/api")

	// Workspaces
	api.POST("/workspaces", HandleCreateWorkspace(s.Workspaces))
	api.GET("/workspaces", HandleListWorkspaces(s.Workspaces))
	api.GET("/workspaces/:workspace_id", HandleGetWorkspace(s.Workspaces))
	api.PUT("/workspaces/:workspace_id", HandleUpdateWorkspace(s.Workspaces))
	api.DELETE("/workspaces/:workspace_id", HandleDeleteWorkspace(s.Workspaces))

	// Workspace settings
	api.GET("/settings", HandleGetDefaultSettings(s.Settings))
	api.PUT("/settings", HandleUpdateGlobalSettings(s.Settings))
	api.GET("/workspaces/:workspace_id/settings", HandleGetSettings(s.Settings))
	api.PUT("/workspaces/:workspace_id/settings", HandleUpdateSettings(s.Settings))

	// Documents
	api.POST("/workspaces/:workspace_id/documents", HandleUploadDocument(cfg, s.Vault, s.Tasks, s.Queue))
	api.POST("/workspaces/:workspace_id/documents/arxiv", HandleUploadArxiv(cfg, s.Vault, s.Arxiv, s.Tasks, s.Queue))
	api.GET("/workspaces/:workspace_id/documents", HandleListWorkspaceDocuments(s.Vault))
	api.DELETE("/workspaces/:workspace_id/documents/:id", HandleDeleteDocument(s.Vault))
	api.GET("/documents", HandleListAllDocuments(s.Vault))
	api.GET("/documents/:id", HandleGetDocument(s.Vault))
	api.GET("/documents/:id/content", HandleGetDocumentContent(s.Vault))
	api.GET("/documents/:id/chunks", HandleListDocumentChunks(s.Vault))
	api.GET("/documents/:id/inspect", HandleInspectDocument(s.Vault))
	api.POST("/documents/:id/index", HandleIndexDocument(s.Vault, s.Tasks, s.Queue))
	api.POST("/documents/:id/workspaces", HandleWorkspaceOp(s.Vault, s.Orchestration, s.Tasks, s.Queue))

	// Vault (physical dedup view)
	api.GET("/vault", HandleListVault(s.Vault))

	// Retrieval
	api.POST("/workspaces/:workspace_id/search", HandleSearch(s.Search, s.Metrics))
	api.GET("/search", HandleGlobalSearch(s.Search))

	// Tasks
	api.GET("/tasks", HandleListTasks(s.Tasks))
	api.GET("/tasks/:id", HandleGetTask(s.Tasks))
	api.POST("/tasks/:id/cancel", HandleCancelTask(s.Tasks))
	api.POST("/tasks/:id/retry", HandleRetryTask(s.Tasks, s.Queue))
	api.POST("/tasks/cleanup", HandleCleanupTasks(s.Tasks, cfg.TaskRetentionHours))
}
