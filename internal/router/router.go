// Package router 负责组装中间件与全部 HTTP 路由。
package router

import (
	"net/http"

	"study-with-speech/internal/handler"
	"study-with-speech/internal/middleware"
	"study-with-speech/internal/service"

	"github.com/gin-gonic/gin"
)

// Services 汇总路由需要的业务服务。
type Services struct {
	User         service.UserService
	Chat         service.ChatService
	Feedback     service.FeedbackService
	SavedMessage service.SavedMessageService
	Suggestion   service.SuggestionService
}

// New 创建路由引擎。allowedOrigins 为 CORS 白名单。
func New(svc Services, allowedOrigins []string) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(allowedOrigins))

	userHandler := handler.NewUserHandler(svc.User)
	authHandler := handler.NewAuthHandler(svc.User)
	messageHandler := handler.NewMessageHandler(svc.Chat, svc.Feedback)
	savedHandler := handler.NewSavedMessageHandler(svc.SavedMessage)
	suggestionHandler := handler.NewSuggestionHandler(svc.Suggestion)
	chatHandler := handler.NewChatHandler(svc.Chat, svc.User)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "study-with-speech API is running"})
	})

	// 无需认证的路由
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.POST("/auth/refresh", authHandler.RefreshToken)
	// WebSocket 在升级前自行校验路径中的 token
	r.GET("/chat/:token", chatHandler.Handle)

	// 需要认证的路由
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(svc.User))
	{
		authed.POST("/logout", userHandler.Logout)
		authed.GET("/me", userHandler.Me)
		authed.GET("/users", userHandler.List)
		authed.PATCH("/profile-image", userHandler.UpdateProfileImage)

		authed.GET("/messages", messageHandler.List)
		authed.POST("/messages", messageHandler.Create)
		authed.POST("/messages/:id/like", messageHandler.Like)
		authed.POST("/messages/:id/dislike", messageHandler.Dislike)

		authed.GET("/suggestions", suggestionHandler.List)
		authed.POST("/suggestions", suggestionHandler.Create)

		authed.GET("/saved-messages", savedHandler.List)
		authed.POST("/saved-messages", savedHandler.Create)
		authed.DELETE("/saved-messages/:id", savedHandler.Delete)
	}

	return r
}
