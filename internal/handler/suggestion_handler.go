package handler

import (
	"net/http"

	"study-with-speech/internal/service"

	"github.com/gin-gonic/gin"
)

// SuggestionHandler 处理建议的提交与查询。
type SuggestionHandler struct {
	suggestionService service.SuggestionService
}

// NewSuggestionHandler 创建一个新的 SuggestionHandler 实例。
func NewSuggestionHandler(suggestionService service.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestionService: suggestionService}
}

type createSuggestionRequest struct {
	Text string `json:"text"`
}

func (h *SuggestionHandler) List(c *gin.Context) {
	items, err := h.suggestionService.List(c.Request.Context())
	if err != nil {
		writeError(c, "ListSuggestions", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *SuggestionHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req createSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}
	item, err := h.suggestionService.Create(c.Request.Context(), user, req.Text)
	if err != nil {
		writeError(c, "CreateSuggestion", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}
