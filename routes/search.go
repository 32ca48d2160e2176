package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"knowledge-vault/internal/telemetry"
	"knowledge-vault/services"
	"knowledge-vault/utils"
)

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// HandleSearch runs hybrid retrieval over a workspace's shard.
func HandleSearch(search *services.SearchService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "query is required", nil)
			return
		}

		start := time.Now()
		results, engine, err := search.Search(c.Request.Context(), c.Param("workspace_id"), req.Query, req.Limit)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		if metrics != nil {
			metrics.RecordSearch(c.Request.Context(), engine, time.Since(start).Seconds())
		}

		c.JSON(http.StatusOK, gin.H{
			"results": results,
			"count":   len(results),
			"engine":  engine,
		})
	}
}

// HandleGlobalSearch is the synchronous metadata search over workspace
// names and document filenames.
func HandleGlobalSearch(search *services.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		results, err := search.GlobalSearch(c.Request.Context(), query, limit)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}
