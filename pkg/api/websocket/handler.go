package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dagflow/internal/application/orchestrator"
	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/aescanero/dagflow/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
)

// SessionFinder looks up open editing sessions
type SessionFinder interface {
	Session(sessionID string) (*orchestrator.Session, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	sessions SessionFinder
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. Browser connections are
// accepted only from allowedOrigins; "*" allows any origin.
func NewHandler(eventBus ports.EventBus, sessions SessionFinder, allowedOrigins []string, logger *zap.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Handler{
		eventBus: eventBus,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		logger: logger,
	}
}

// HandleSessionStream streams change events of one editing session until
// the client disconnects or the session closes.
func (h *Handler) HandleSessionStream(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.sessions.Session(sessionID); err != nil {
		status, code := http.StatusInternalServerError, "STORAGE_ERROR"
		if errors.Is(err, domain.ErrSessionNotFound) {
			status, code = http.StatusNotFound, "NOT_FOUND"
		}
		c.JSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the upgrade so no change after the handshake is missed
	eventChan := make(chan ports.Event, eventBuffer)
	handler := func(ctx context.Context, event ports.Event) error {
		if event.SessionID != sessionID {
			return nil
		}
		select {
		case eventChan <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("session_id", sessionID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	if err := h.eventBus.Subscribe(ctx, ports.TopicSessionEvents, handler); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "STORAGE_ERROR", "message": err.Error()}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("session_id", sessionID),
		zap.String("client", c.ClientIP()))

	// Reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write message", zap.Error(err))
				return
			}

			if event.Type == domain.EventTypeSessionClosed {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
		}
	}
}
