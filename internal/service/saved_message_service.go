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

// SavedMessageService 管理用户的消息收藏。
type SavedMessageService interface {
	Save(ctx context.Context, user *model.User, messageID uint) (*model.SavedMessage, error)
	Unsave(ctx context.Context, user *model.User, savedID uint) error
	ListSaved(ctx context.Context, user *model.User) ([]model.SavedMessageView, error)
}

type savedMessageService struct {
	savedRepo   repository.SavedMessageRepository
	messageRepo repository.MessageRepository
	events      kafka.Publisher
}

// NewSavedMessageService 创建一个新的 SavedMessageService 实例。
func NewSavedMessageService(savedRepo repository.SavedMessageRepository, messageRepo repository.MessageRepository, events kafka.Publisher) SavedMessageService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &savedMessageService{savedRepo: savedRepo, messageRepo: messageRepo, events: events}
}

// Save 收藏一条消息。重复收藏返回 ErrAlreadySaved，而不是静默去重。
func (s *savedMessageService) Save(ctx context.Context, user *model.User, messageID uint) (*model.SavedMessage, error) {
	if messageID == 0 {
		return nil, ErrInvalidRequest
	}
	if _, err := s.messageRepo.FindByID(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	_, err := s.savedRepo.FindByUserAndMessage(ctx, user.ID, messageID)
	if err == nil {
		return nil, ErrAlreadySaved
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	saved := &model.SavedMessage{UserID: user.ID, MessageID: messageID}
	if err := s.savedRepo.Create(ctx, saved); err != nil {
		// 并发收藏同一消息时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadySaved
		}
		return nil, err
	}

	s.publish(ctx, kafka.Event{Type: kafka.EventMessageSaved, UserID: user.ID, MessageID: messageID, SavedMessageID: saved.ID})
	return saved, nil
}

// Unsave 删除收藏记录，只有记录的所有者可以删除。
func (s *savedMessageService) Unsave(ctx context.Context, user *model.User, savedID uint) error {
	if savedID == 0 {
		return ErrInvalidRequest
	}
	saved, err := s.savedRepo.FindByID(ctx, savedID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if saved.UserID != user.ID {
		return ErrForbidden
	}
	if err := s.savedRepo.Delete(ctx, savedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.publish(ctx, kafka.Event{Type: kafka.EventMessageUnsaved, UserID: user.ID, MessageID: saved.MessageID, SavedMessageID: savedID})
	return nil
}

// ListSaved 返回当前用户的收藏及对应的消息内容，按收藏时间升序。
func (s *savedMessageService) ListSaved(ctx context.Context, user *model.User) ([]model.SavedMessageView, error) {
	rows, err := s.savedRepo.FindByUserWithMessage(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	views := make([]model.SavedMessageView, 0, len(rows))
	for _, row := range rows {
		view := model.SavedMessageView{
			ID:        row.ID,
			MessageID: row.MessageID,
			CreatedAt: row.CreatedAt,
		}
		if row.Message != nil {
			view.Content = row.Message.Content
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *savedMessageService) publish(ctx context.Context, event kafka.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warnf("[SavedMessageService] 发布事件失败, type: %s, error: %v", event.Type, err)
	}
}
