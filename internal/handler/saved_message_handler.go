package handler

import (
	"net/http"

	"study-with-speech/internal/service"

	"github.com/gin-gonic/gin"
)

// SavedMessageHandler 处理消息收藏。
type SavedMessageHandler struct {
	savedService service.SavedMessageService
}

// NewSavedMessageHandler 创建一个新的 SavedMessageHandler 实例。
func NewSavedMessageHandler(savedService service.SavedMessageService) *SavedMessageHandler {
	return &SavedMessageHandler{savedService: savedService}
}

type saveMessageRequest struct {
	MessageID uint `json:"messageId"`
}

// List 返回当前用户的收藏。
func (h *SavedMessageHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	items, err := h.savedService.ListSaved(c.Request.Context(), user)
	if err != nil {
		writeError(c, "ListSaved", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Create 收藏一条消息。
func (h *SavedMessageHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req saveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MessageID == 0 {
		badRequest(c, "messageId is required")
		return
	}
	saved, err := h.savedService.Save(c.Request.Context(), user, req.MessageID)
	if err != nil {
		writeError(c, "SaveMessage", err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// Delete 取消收藏，只允许删除自己的记录。
func (h *SavedMessageHandler) Delete(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.savedService.Unsave(c.Request.Context(), user, id); err != nil {
		writeError(c, "UnsaveMessage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
