package service

import (
	"context"
	"errors"

	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/pkg/kafka"
	"study-with-speech/pkg/log"

	"gorm.io/gorm"
)

// FeedbackService 处理消息的点赞与点踩。
// 同一用户可以重复点赞，每次调用都会递增。
type FeedbackService interface {
	Like(ctx context.Context, user *model.User, messageID uint) (int, error)
	Dislike(ctx context.Context, user *model.User, messageID uint) (int, error)
}

type feedbackService struct {
	messageRepo repository.MessageRepository
	events      kafka.Publisher
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
func NewFeedbackService(messageRepo repository.MessageRepository, events kafka.Publisher) FeedbackService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &feedbackService{messageRepo: messageRepo, events: events}
}

func (s *feedbackService) Like(ctx context.Context, user *model.User, messageID uint) (int, error) {
	return s.increment(ctx, user, messageID, repository.CounterLikes, kafka.EventMessageLiked)
}

func (s *feedbackService) Dislike(ctx context.Context, user *model.User, messageID uint) (int, error) {
	return s.increment(ctx, user, messageID, repository.CounterDislikes, kafka.EventMessageDisliked)
}

func (s *feedbackService) increment(ctx context.Context, user *model.User, messageID uint, counter, eventType string) (int, error) {
	if messageID == 0 {
		return 0, ErrInvalidRequest
	}
	value, err := s.messageRepo.Increment(ctx, messageID, counter)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	event := kafka.Event{Type: eventType, UserID: user.ID, MessageID: messageID, Value: value}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warnf("[FeedbackService] 发布事件失败, type: %s, error: %v", eventType, err)
	}
	return value, nil
}
