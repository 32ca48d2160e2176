package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-vault/models"
	"knowledge-vault/services"
	"knowledge-vault/utils"
)

type createWorkspaceRequest struct {
	Name        string                    `json:"name" binding:"required"`
	Description string                    `json:"description"`
	Settings    *models.WorkspaceSettings `json:"settings"`
}

// HandleCreateWorkspace registers a workspace with its embedding
// settings frozen at creation.
func HandleCreateWorkspace(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkspaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "name is required", nil)
			return
		}
		ws, err := workspaces.Create(c.Request.Context(), req.Name, req.Description, req.Settings)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ws)
	}
}

// HandleListWorkspaces lists workspaces with stats and settings.
func HandleListWorkspaces(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := workspaces.List(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workspaces": list, "count": len(list)})
	}
}

// HandleGetWorkspace returns one workspace with stats and settings.
func HandleGetWorkspace(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := workspaces.Details(c.Request.Context(), c.Param("workspace_id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, ws)
	}
}

type updateWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleUpdateWorkspace renames or re-describes a workspace.
func HandleUpdateWorkspace(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateWorkspaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", nil)
			return
		}
		ws, err := workspaces.Update(c.Request.Context(), c.Param("workspace_id"), req.Name, req.Description)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, ws)
	}
}

// HandleDeleteWorkspace removes a workspace, releasing its documents
// into the vault pool.
func HandleDeleteWorkspace(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := workspaces.Delete(c.Request.Context(), c.Param("workspace_id")); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workspace_id": c.Param("workspace_id"), "deleted": true})
	}
}
