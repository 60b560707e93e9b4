package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/painel-dev/painel/internal/catalog"
)

// MetricRequest selects an aggregated column. The label is for display only.
type MetricRequest struct {
	Name  string `json:"nome" binding:"required,identifier"`
	Label string `json:"label"`
}

// QueryRequest represents a dynamic analysis request
type QueryRequest struct {
	StartDate  string            `json:"data_inicial" binding:"required,datetime=2006-01-02"`
	EndDate    string            `json:"data_final" binding:"required,datetime=2006-01-02"`
	Dimensions []string          `json:"dimensoes" binding:"required,min=1,dive,identifier"`
	Metrics    []MetricRequest   `json:"metricas" binding:"required,min=1,dive"`
	Filters    map[string]string `json:"filtros" binding:"omitempty,dive,keys,identifier,endkeys"`
}

func (r QueryRequest) toQuery() (catalog.Query, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return catalog.Query{}, err
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return catalog.Query{}, err
	}

	metrics := make([]string, len(r.Metrics))
	for i, m := range r.Metrics {
		metrics[i] = m.Name
	}

	return catalog.Query{
		Start:      start,
		End:        end,
		Dimensions: r.Dimensions,
		Metrics:    metrics,
		Filters:    r.Filters,
	}, nil
}

// @Summary Dynamic analysis
// @Description Aggregates the movement history by the requested dimensions
// @Tags query
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body QueryRequest true "Query"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/query [post]
func (s *Server) runQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	q, err := req.toQuery()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	rows, err := s.catalog.Query(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to run query")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, rows)
}
