package routes

import (
	"quizchat/handlers"
	"quizchat/middleware"
	"quizchat/services"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Socket   *handlers.SocketHandler
	Chat     *handlers.ChatHandler
	Game     *handlers.GameHandler
	Question *handlers.QuestionHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, provider services.IdentityProvider) {
	router.GET("/health", h.Health.Check)

	// WebSocket endpoint for chat and game traffic
	router.GET("/ws", h.Socket.Connect)

	api := router.Group("/api")
	{
		api.GET("/presence", h.Chat.Presence)
		api.GET("/rooms/:room/messages", h.Chat.RoomMessages)
		api.GET("/channels/:channel", h.Game.GetChannel)
		api.GET("/questions", h.Question.ListQuestions)

		admin := api.Group("/")
		admin.Use(middleware.AuthMiddleware(provider), middleware.RequireAdmin())
		{
			admin.POST("/channels/:channel/start", h.Game.StartChannel)
			admin.POST("/channels/:channel/stop", h.Game.StopChannel)
			admin.POST("/questions", h.Question.CreateQuestion)
		}
	}
}
