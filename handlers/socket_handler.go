package handlers

import (
	"log/slog"
	"net/http"

	"quizchat/middleware"
	"quizchat/models"
	"quizchat/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type SocketHandler struct {
	hub      *services.Hub
	provider services.IdentityProvider
	logger   *slog.Logger
}

func NewSocketHandler(hub *services.Hub, provider services.IdentityProvider, logger *slog.Logger) *SocketHandler {
	return &SocketHandler{hub: hub, provider: provider, logger: logger}
}

// Connect upgrades the request. A token is optional; without one the
// connection can only register anonymously.
func (h *SocketHandler) Connect(c *gin.Context) {
	var verified *models.Identity
	if token := middleware.BearerToken(c.Request); token != "" {
		identity, err := h.provider.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		verified = &identity
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client, err := h.hub.Attach(conn, verified)
	if err != nil {
		conn.Close()
		return
	}
	h.logger.Debug("websocket connected", "client", client.ID(), "authenticated", verified != nil)
}
