package handler

import (
	"net/http"

	"study-with-speech/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler 处理聊天消息的收发与点赞/点踩。
type MessageHandler struct {
	chatService     service.ChatService
	feedbackService service.FeedbackService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(chatService service.ChatService, feedbackService service.FeedbackService) *MessageHandler {
	return &MessageHandler{chatService: chatService, feedbackService: feedbackService}
}

// List 返回当前用户的消息历史。
func (h *MessageHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	msgs, err := h.chatService.ListMessages(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, "ListMessages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Create 运行一次完整的聊天流程并返回用户消息与助手回复。
func (h *MessageHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req service.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}

	res, err := h.chatService.Send(c.Request.Context(), user, req)
	if err != nil {
		writeError(c, "CreateMessage", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Like 点赞，返回最新的 likes 计数。
func (h *MessageHandler) Like(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	likes, err := h.feedbackService.Like(c.Request.Context(), user, id)
	if err != nil {
		writeError(c, "LikeMessage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

// Dislike 点踩，返回最新的 dislikes 计数。
func (h *MessageHandler) Dislike(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	dislikes, err := h.feedbackService.Dislike(c.Request.Context(), user, id)
	if err != nil {
		writeError(c, "DislikeMessage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dislikes": dislikes})
}
