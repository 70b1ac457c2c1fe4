package service

import (
	"context"
	"fmt"
	"strings"

	"study-with-speech/internal/config"
	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/pkg/kafka"
	"study-with-speech/pkg/llm"
	"study-with-speech/pkg/log"
)

// SendInput 是一次聊天请求的输入。
type SendInput struct {
	Content string `json:"content"`
	Level   string `json:"level,omitempty"`
	Speech  bool   `json:"speech,omitempty"`
}

// SendResult 包含本轮的用户消息与助手回复。
type SendResult struct {
	UserMessage *model.Message `json:"userMessage"`
	BotMessage  *model.Message `json:"botMessage"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	Send(ctx context.Context, user *model.User, in SendInput) (*SendResult, error)
	ListMessages(ctx context.Context, userID uint) ([]model.Message, error)
}

type chatService struct {
	messageRepo repository.MessageRepository
	llmClient   llm.Client
	prompts     *PromptBuilder
	generation  *llm.GenerationParams
	events      kafka.Publisher
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(messageRepo repository.MessageRepository, llmClient llm.Client, prompts *PromptBuilder, gen config.LLMGenerationConfig, events kafka.Publisher) ChatService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &chatService{
		messageRepo: messageRepo,
		llmClient:   llmClient,
		prompts:     prompts,
		generation:  llm.DefaultGeneration(gen),
		events:      events,
	}
}

// Send 保存用户消息，调用模型生成回复并保存助手消息。
// 用户消息在调用模型前提交，模型失败时不会回滚；助手消息只在拿到补全后写入。
func (s *chatService) Send(ctx context.Context, user *model.User, in SendInput) (*SendResult, error) {
	// 只用去空白的副本判断是否为空，保存和发送原始内容
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}

	// 1. 保存用户消息
	userMsg := &model.Message{
		Content: in.Content,
		UserID:  user.ID,
		Role:    model.RoleUser,
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		log.Errorf("[ChatService] 保存用户消息失败, userId: %d, error: %v", user.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrMessageCreationFailed, err)
	}
	s.publish(ctx, kafka.Event{Type: kafka.EventMessageCreated, UserID: user.ID, MessageID: userMsg.ID})

	// 2. 组装提示词并调用模型，不做重试
	messages := s.prompts.Build(in.Content, in.Level, in.Speech)
	reply, err := s.llmClient.Complete(ctx, messages, s.generation)
	if err != nil {
		log.Errorf("[ChatService] 模型调用失败, userId: %d, messageId: %d, error: %v", user.ID, userMsg.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrMessageCreationFailed, err)
	}

	// 3. 保存助手回复，归属于同一用户
	botMsg := &model.Message{
		Content: reply,
		UserID:  user.ID,
		Role:    model.RoleAssistant,
	}
	if err := s.messageRepo.Create(ctx, botMsg); err != nil {
		log.Errorf("[ChatService] 保存助手消息失败, userId: %d, error: %v", user.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrMessageCreationFailed, err)
	}
	s.publish(ctx, kafka.Event{Type: kafka.EventMessageCreated, UserID: user.ID, MessageID: botMsg.ID})

	return &SendResult{UserMessage: userMsg, BotMessage: botMsg}, nil
}

// ListMessages 返回用户自己的消息，按创建顺序排列并附带用户信息。
func (s *chatService) ListMessages(ctx context.Context, userID uint) ([]model.Message, error) {
	return s.messageRepo.FindByUserWithUser(ctx, userID)
}

func (s *chatService) publish(ctx context.Context, event kafka.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warnf("[ChatService] 发布事件失败, type: %s, error: %v", event.Type, err)
	}
}
