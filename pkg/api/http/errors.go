package http

import (
	"errors"
	"net/http"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes returned in ErrorDetail.Code
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeDuplicateID        = "DUPLICATE_ID"
	CodeInvalidHandle      = "INVALID_HANDLE"
	CodeHandleRoleMismatch = "HANDLE_ROLE_MISMATCH"
	CodeHandleOccupied     = "HANDLE_OCCUPIED"
	CodeEdgeConflict       = "EDGE_ID_CONFLICT"
	CodeUnknownNodeType    = "UNKNOWN_NODE_TYPE"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidReference   = "INVALID_REFERENCE"
	CodeStorageError       = "STORAGE_ERROR"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// classify maps a domain error to its HTTP status and error detail
func classify(err error) (int, ErrorDetail) {
	var (
		dup      *domain.DuplicateIDError
		handle   *domain.InvalidHandleError
		role     *domain.HandleRoleMismatchError
		occupied *domain.HandleOccupiedError
		ref      *domain.InvalidReferenceError
		conflict *domain.EdgeConflictError
	)

	switch {
	case errors.As(err, &dup):
		return http.StatusConflict, ErrorDetail{
			Code:    CodeDuplicateID,
			Message: err.Error(),
			Details: gin.H{"id": dup.ID},
		}
	case errors.As(err, &handle):
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code:    CodeInvalidHandle,
			Message: err.Error(),
			Details: gin.H{"node_id": handle.NodeID, "handle": handle.Handle},
		}
	case errors.As(err, &role):
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code:    CodeHandleRoleMismatch,
			Message: err.Error(),
			Details: gin.H{"node_id": role.NodeID, "handle": role.Handle, "expected": role.Expected, "actual": role.Actual},
		}
	case errors.As(err, &occupied):
		return http.StatusConflict, ErrorDetail{
			Code:    CodeHandleOccupied,
			Message: err.Error(),
			Details: gin.H{"node_id": occupied.NodeID, "handle": occupied.Handle, "edge_id": occupied.EdgeID},
		}
	case errors.As(err, &conflict):
		return http.StatusConflict, ErrorDetail{
			Code:    CodeEdgeConflict,
			Message: err.Error(),
			Details: gin.H{"edge_id": conflict.EdgeID, "source": conflict.Existing.Source, "target": conflict.Existing.Target},
		}
	case errors.As(err, &ref):
		return http.StatusUnprocessableEntity, ErrorDetail{
			Code:    CodeInvalidReference,
			Message: err.Error(),
			Details: gin.H{"edge_id": ref.EdgeID, "node_id": ref.NodeID, "field": ref.Field},
		}
	case errors.Is(err, domain.ErrUnknownNodeType):
		return http.StatusUnprocessableEntity, ErrorDetail{Code: CodeUnknownNodeType, Message: err.Error()}
	case errors.Is(err, domain.ErrMalformed), errors.Is(err, domain.ErrNilPipeline):
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPipelineNotFound),
		errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeStorageError, Message: err.Error()}
	}
}

// writeError logs err and writes the matching error response
func (s *Server) writeError(c *gin.Context, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", c.FullPath()),
			zap.String("code", detail.Code),
			zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: detail})
}

// writeBadRequest writes a 400 for a body that could not be bound
func (s *Server) writeBadRequest(c *gin.Context, err error) {
	s.logger.Debug("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    CodeInvalidRequest,
			Message: err.Error(),
		},
	})
}
