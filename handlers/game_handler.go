package handlers

import (
	"errors"
	"net/http"

	"quizchat/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService *services.GameService
}

func NewGameHandler(gameService *services.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

func (h *GameHandler) GetChannel(c *gin.Context) {
	channel := c.Param("channel")
	state, err := h.gameService.State(c.Request.Context(), channel)
	if errors.Is(err, services.ErrChannelNotFound) || errors.Is(err, services.ErrNotGameChannel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *GameHandler) StartChannel(c *gin.Context) {
	channel := c.Param("channel")
	err := h.gameService.Start(c.Request.Context(), channel)
	if errors.Is(err, services.ErrNotGameChannel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game started", "channel": channel})
}

func (h *GameHandler) StopChannel(c *gin.Context) {
	channel := c.Param("channel")
	err := h.gameService.Stop(c.Request.Context(), channel)
	if errors.Is(err, services.ErrNotGameChannel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game stopped", "channel": channel})
}
