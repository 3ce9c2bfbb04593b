package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/api/dto"
)

// Health godoc
// @Summary      Health check
// @Description  Returns server health and version
// @Tags         global
// @Produce      json
// @Success      200 {object} dto.HealthResponse
// @Router       /health [get]
func Health(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.HealthResponse{
			Status:  "healthy",
			Version: version,
		})
	}
}
