// internal/socket/handler.go
package socket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the router; browsers connect from the frontend origin.
		return true
	},
}

// Handler upgrades authenticated requests to websocket connections.
type Handler struct {
	Hub  *Hub
	Auth service.AuthService
}

func NewHandler(hub *Hub, auth service.AuthService) *Handler {
	return &Handler{Hub: hub, Auth: auth}
}

// HandleWebSocket reads the token from the query string, since browsers cannot
// set headers on a websocket handshake, and falls back to the Authorization header.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "No token provided"}})
		return
	}

	userID, err := h.Auth.ValidateToken(tokenString)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "websocket token rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid token"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.Hub, uuid.New().String(), userID, conn)
	h.Hub.register <- client

	// Personal room for timer events
	h.Hub.JoinRoom(client, userRoom(userID))

	go client.WritePump()
	go client.ReadPump()
}

// AccessAuthorizer admits project:<id> and workspace:<id> joins for users the
// access resolver accepts.
func AccessAuthorizer(access service.AccessService) RoomAuthorizer {
	return func(ctx context.Context, userID, room string) bool {
		kind, id, ok := strings.Cut(room, ":")
		if !ok || id == "" {
			return false
		}

		var target service.Target
		switch kind {
		case "project":
			target.ProjectID = id
		case "workspace":
			target.WorkspaceID = id
		default:
			return false
		}

		_, err := access.Resolve(ctx, userID, target)
		return err == nil
	}
}
