package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const importRunsLimit = 20

// @Summary List import runs
// @Description Recent imports of the movement history, newest first
// @Tags imports
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ImportRun
// @Router /api/imports [get]
func (s *Server) listImports(c *gin.Context) {
	runs, err := s.catalog.ListImportRuns(c.Request.Context(), importRunsLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list import runs")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, runs)
}
