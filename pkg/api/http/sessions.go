package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aescanero/dagflow/internal/application/graphstore"
	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/gin-gonic/gin"
)

// CreateSessionRequest optionally names a saved pipeline to load
type CreateSessionRequest struct {
	PipelineID string `json:"pipeline_id"`
}

// SessionResponse describes an editing session and its graph
type SessionResponse struct {
	SessionID string               `json:"session_id"`
	CreatedAt time.Time            `json:"created_at"`
	Version   uint64               `json:"version"`
	Document  domain.GraphDocument `json:"document"`
}

// AddNodeRequest places a node; an empty id is generated
type AddNodeRequest struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type" binding:"required"`
	Position domain.Position        `json:"position"`
	Data     map[string]interface{} `json:"data"`
}

// ConnectRequest joins a source handle to a target handle
type ConnectRequest struct {
	Source       string `json:"source" binding:"required"`
	SourceHandle string `json:"sourceHandle" binding:"required"`
	Target       string `json:"target" binding:"required"`
	TargetHandle string `json:"targetHandle" binding:"required"`
}

// SaveSessionRequest persists a session; an empty pipeline id creates one
type SaveSessionRequest struct {
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
}

// bindOptionalJSON binds the body when there is one
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleCreateSession opens an editing session
func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	session, err := s.orchestrator.CreateSession(c.Request.Context(), req.PipelineID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
		Version:   session.Store.Version(),
		Document:  session.Store.Export(),
	})
}

// handleGetSession returns a session's full graph
func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.orchestrator.Session(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
		Version:   session.Store.Version(),
		Document:  session.Store.Export(),
	})
}

// handleCloseSession discards a session
func (s *Server) handleCloseSession(c *gin.Context) {
	if err := s.orchestrator.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleAddNode places a node in a session's graph
func (s *Server) handleAddNode(c *gin.Context) {
	var req AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	nodeType, err := domain.ParseNodeType(req.Type)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var node domain.Node
	err = s.orchestrator.Mutate(c.Param("id"), "add_node", func(store *graphstore.Store) error {
		var err error
		node, err = store.AddNode(domain.Node{
			ID:       req.ID,
			Type:     nodeType,
			Position: req.Position,
			Data:     req.Data,
		})
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, node)
}

// handleUpdateNodeData merges a patch into a node's data
func (s *Server) handleUpdateNodeData(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	nodeID := c.Param("nodeId")
	var node domain.Node
	err := s.orchestrator.Mutate(c.Param("id"), "update_node_data", func(store *graphstore.Store) error {
		if err := store.UpdateNodeData(nodeID, patch); err != nil {
			return err
		}
		node, _ = store.Node(nodeID)
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

// handleMoveNode sets a node's canvas position
func (s *Server) handleMoveNode(c *gin.Context) {
	var pos domain.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	nodeID := c.Param("nodeId")
	var node domain.Node
	err := s.orchestrator.Mutate(c.Param("id"), "move_node", func(store *graphstore.Store) error {
		if err := store.MoveNode(nodeID, pos); err != nil {
			return err
		}
		node, _ = store.Node(nodeID)
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

// handleRemoveNode deletes a node and its edges
func (s *Server) handleRemoveNode(c *gin.Context) {
	nodeID := c.Param("nodeId")
	err := s.orchestrator.Mutate(c.Param("id"), "remove_node", func(store *graphstore.Store) error {
		return store.RemoveNode(nodeID)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleConnect adds an edge between two handles
func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	var edge domain.Edge
	err := s.orchestrator.Mutate(c.Param("id"), "connect", func(store *graphstore.Store) error {
		var err error
		edge, err = store.Connect(req.Source, req.SourceHandle, req.Target, req.TargetHandle)
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, edge)
}

// handleRemoveEdge deletes one edge
func (s *Server) handleRemoveEdge(c *gin.Context) {
	edgeID := c.Param("edgeId")
	err := s.orchestrator.Mutate(c.Param("id"), "remove_edge", func(store *graphstore.Store) error {
		return store.RemoveEdge(edgeID)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleSnapshot returns the validator's view of a session's graph
func (s *Server) handleSnapshot(c *gin.Context) {
	session, err := s.orchestrator.Session(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session.Store.Snapshot())
}

// handleSubmitSession snapshots and validates a session's graph
func (s *Server) handleSubmitSession(c *gin.Context) {
	result, err := s.orchestrator.SubmitSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleSaveSession persists a session's graph
func (s *Server) handleSaveSession(c *gin.Context) {
	var req SaveSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		s.writeBadRequest(c, err)
		return
	}

	saved, err := s.orchestrator.SaveSession(c.Request.Context(), c.Param("id"), req.PipelineID, req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}
