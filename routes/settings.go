package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-vault/services"
	"knowledge-vault/utils"
)

// HandleGetSettings returns the effective settings for a workspace,
// defaults overlaid with the workspace's own record.
func HandleGetSettings(settings *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolved, err := settings.Get(c.Request.Context(), c.Param("workspace_id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		resolved.GraphPassword = ""
		c.JSON(http.StatusOK, resolved)
	}
}

// HandleUpdateSettings applies a partial settings update. Immutable
// fields are rejected with the offending field names.
func HandleUpdateSettings(settings *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", nil)
			return
		}
		resolved, err := settings.Update(c.Request.Context(), c.Param("workspace_id"), updates)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		resolved.GraphPassword = ""
		c.JSON(http.StatusOK, resolved)
	}
}

// HandleGetDefaultSettings exposes the global settings baseline.
func HandleGetDefaultSettings(settings *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defaults, err := settings.GlobalDefaults(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		defaults.GraphPassword = ""
		c.JSON(http.StatusOK, defaults)
	}
}

// HandleUpdateGlobalSettings applies a partial update to the global
// defaults. These seed future workspaces; existing workspaces keep the
// values frozen at their creation.
func HandleUpdateGlobalSettings(settings *services.SettingsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", nil)
			return
		}
		resolved, err := settings.UpdateGlobal(c.Request.Context(), updates)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		resolved.GraphPassword = ""
		c.JSON(http.StatusOK, resolved)
	}
}
