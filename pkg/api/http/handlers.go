package http

import (
	"net/http"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BatchRequest is a list of independent pipelines to validate together
type BatchRequest struct {
	Pipelines []*domain.Pipeline `json:"pipelines" binding:"required,min=1,dive,required"`
}

// BatchItemResponse is the outcome of one pipeline in a batch. Exactly one
// of Result and Error is set.
type BatchItemResponse struct {
	Index  int                      `json:"index"`
	Result *domain.ValidationResult `json:"result,omitempty"`
	Error  *ErrorDetail             `json:"error,omitempty"`
}

// ValidationSubmitResponse acknowledges an asynchronous validation
type ValidationSubmitResponse struct {
	JobID       string           `json:"job_id"`
	Status      domain.JobStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// handlePing answers the liveness probe used by the editor frontend
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"Ping": "Pong"})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status := http.StatusOK
	state := "healthy"

	if s.workers != nil {
		pool := s.workers.Health().GetStatus()
		checks["workers"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			state = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleListNodeTypes returns the node-type catalog
func (s *Server) handleListNodeTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"node_types": domain.Catalog()})
}

// handleValidatePipeline checks a submitted snapshot for cycles
func (s *Server) handleValidatePipeline(c *gin.Context) {
	var p domain.Pipeline
	if err := c.ShouldBindJSON(&p); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	result, err := s.orchestrator.Validate(c.Request.Context(), &p)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleValidateBatch validates several pipelines concurrently
func (s *Server) handleValidateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}
	if len(req.Pipelines) > s.maxBatch {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    CodeInvalidRequest,
				Message: "too many pipelines in batch",
				Details: gin.H{"max": s.maxBatch, "got": len(req.Pipelines)},
			},
		})
		return
	}

	items, err := s.orchestrator.ValidateBatch(c.Request.Context(), req.Pipelines)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := make([]BatchItemResponse, len(items))
	for i, item := range items {
		resp[i] = BatchItemResponse{Index: i, Result: item.Result}
		if item.Err != nil {
			_, detail := classify(item.Err)
			resp[i].Error = &detail
		}
	}

	c.JSON(http.StatusOK, gin.H{"results": resp})
}

// handleSubmitValidation queues a pipeline for the worker pool
func (s *Server) handleSubmitValidation(c *gin.Context) {
	var p domain.Pipeline
	if err := c.ShouldBindJSON(&p); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	job, err := s.orchestrator.SubmitAsync(c.Request.Context(), &p)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ValidationSubmitResponse{
		JobID:       job.ID,
		Status:      job.Status,
		SubmittedAt: job.SubmittedAt,
	})
}

// handleGetValidation returns an asynchronous validation job
func (s *Server) handleGetValidation(c *gin.Context) {
	job, err := s.orchestrator.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleListPipelines lists saved pipeline ids
func (s *Server) handleListPipelines(c *gin.Context) {
	ids, err := s.orchestrator.ListPipelines(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelines": ids,
		"total":     len(ids),
	})
}

// handleGetPipeline returns a saved pipeline
func (s *Server) handleGetPipeline(c *gin.Context) {
	p, err := s.orchestrator.GetPipeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// handleDeletePipeline removes a saved pipeline
func (s *Server) handleDeletePipeline(c *gin.Context) {
	pipelineID := c.Param("id")
	if err := s.orchestrator.DeletePipeline(c.Request.Context(), pipelineID); err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("pipeline deleted", zap.String("pipeline_id", pipelineID))
	c.Status(http.StatusNoContent)
}
