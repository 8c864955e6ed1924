package handlers

import (
	"net/http"

	"quizchat/services"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	presence *services.PresenceRegistry
	relay    *services.MessageRelay
	chat     *services.RoomFabric
}

func NewChatHandler(presence *services.PresenceRegistry, relay *services.MessageRelay, chat *services.RoomFabric) *ChatHandler {
	return &ChatHandler{presence: presence, relay: relay, chat: chat}
}

func (h *ChatHandler) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.presence.Online()})
}

func (h *ChatHandler) RoomMessages(c *gin.Context) {
	room := c.Param("room")
	messages, err := h.relay.History(c.Request.Context(), room)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":     room,
		"members":  h.chat.MemberCount(room),
		"messages": messages,
	})
}
