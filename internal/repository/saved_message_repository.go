package repository

import (
	"context"

	"study-with-speech/internal/model"

	"gorm.io/gorm"
)

// SavedMessageRepository 定义了消息收藏的持久化操作。
type SavedMessageRepository interface {
	Create(ctx context.Context, saved *model.SavedMessage) error
	FindByID(ctx context.Context, id uint) (*model.SavedMessage, error)
	FindByUserAndMessage(ctx context.Context, userID, messageID uint) (*model.SavedMessage, error)
	FindByUserWithMessage(ctx context.Context, userID uint) ([]model.SavedMessage, error)
	Delete(ctx context.Context, id uint) error
}

type savedMessageRepository struct {
	db *gorm.DB
}

// NewSavedMessageRepository 创建一个新的 SavedMessageRepository 实例。
func NewSavedMessageRepository(db *gorm.DB) SavedMessageRepository {
	return &savedMessageRepository{db: db}
}

// Create 插入收藏记录，重复的 (user, message) 对返回 gorm.ErrDuplicatedKey。
func (r *savedMessageRepository) Create(ctx context.Context, saved *model.SavedMessage) error {
	return r.db.WithContext(ctx).Create(saved).Error
}

func (r *savedMessageRepository) FindByID(ctx context.Context, id uint) (*model.SavedMessage, error) {
	var saved model.SavedMessage
	if err := r.db.WithContext(ctx).First(&saved, id).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *savedMessageRepository) FindByUserAndMessage(ctx context.Context, userID, messageID uint) (*model.SavedMessage, error) {
	var saved model.SavedMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		First(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// FindByUserWithMessage 只返回该用户的收藏，按收藏时间升序，并预加载消息内容。
func (r *savedMessageRepository) FindByUserWithMessage(ctx context.Context, userID uint) ([]model.SavedMessage, error) {
	var out []model.SavedMessage
	err := r.db.WithContext(ctx).
		Preload("Message").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *savedMessageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.SavedMessage{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
