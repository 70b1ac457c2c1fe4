package service

import (
	"context"
	"fmt"
	"strings"

	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/pkg/kafka"
	"study-with-speech/pkg/log"
)

// SuggestionService 处理用户提交的建议。
type SuggestionService interface {
	Create(ctx context.Context, user *model.User, text string) (*model.Suggestion, error)
	List(ctx context.Context) ([]model.Suggestion, error)
}

type suggestionService struct {
	repo   repository.SuggestionRepository
	events kafka.Publisher
}

// NewSuggestionService 创建一个新的 SuggestionService 实例。
func NewSuggestionService(repo repository.SuggestionRepository, events kafka.Publisher) SuggestionService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &suggestionService{repo: repo, events: events}
}

func (s *suggestionService) Create(ctx context.Context, user *model.User, text string) (*model.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	suggestion := &model.Suggestion{Text: text}
	if err := s.repo.Create(ctx, suggestion); err != nil {
		return nil, err
	}
	if err := s.events.Publish(ctx, kafka.Event{Type: kafka.EventSuggestionCreated, UserID: user.ID, SuggestionID: suggestion.ID}); err != nil {
		log.Warnf("[SuggestionService] 发布事件失败, error: %v", err)
	}
	return suggestion, nil
}

func (s *suggestionService) List(ctx context.Context) ([]model.Suggestion, error) {
	return s.repo.FindAll(ctx)
}
