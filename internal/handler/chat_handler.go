package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"study-with-speech/internal/service"
	"study-with-speech/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxFrameBytes = 64 << 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // token 已在升级前校验
	},
}

// 推送给客户端的帧类型
const (
	frameReply = "reply"
	frameError = "error"
)

type chatFrame struct {
	Type        string      `json:"type"`
	UserMessage interface{} `json:"userMessage,omitempty"`
	BotMessage  interface{} `json:"botMessage,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ChatHandler 负责处理 WebSocket 聊天连接，每一帧走一次完整的消息流程。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
	}
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	user, _, err := h.userService.Authenticate(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, "ChatHandshake", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	log.Infow("WebSocket 连接已建立", "userId", user.ID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		in := parseChatFrame(message)
		res, err := h.chatService.Send(c.Request.Context(), user, in)

		var frame chatFrame
		if err != nil {
			status, msg := errorStatus(err)
			if status >= http.StatusInternalServerError {
				log.Errorf("ChatHandler: 处理消息失败, userId: %d, error: %v", user.ID, err)
			}
			frame = chatFrame{Type: frameError, Error: msg}
		} else {
			frame = chatFrame{Type: frameReply, UserMessage: res.UserMessage, BotMessage: res.BotMessage}
		}
		if err := conn.WriteJSON(frame); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Warnf("写入 WebSocket 消息失败: %v", err)
			}
			return
		}
	}
}

// parseChatFrame 支持 JSON {"content","level","speech"} 或纯文本帧。
func parseChatFrame(message []byte) service.SendInput {
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var in service.SendInput
		if err := json.Unmarshal(trimmed, &in); err == nil {
			return in
		}
	}
	return service.SendInput{Content: string(message)}
}
