package repository

import (
	"context"
	"fmt"

	"study-with-speech/internal/model"

	"gorm.io/gorm"
)

// 允许原子递增的计数列。
const (
	CounterLikes    = "likes"
	CounterDislikes = "dislikes"
)

// MessageRepository 定义了聊天消息的持久化操作。
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id uint) (*model.Message, error)
	FindByUserWithUser(ctx context.Context, userID uint) ([]model.Message, error)
	Increment(ctx context.Context, id uint, counter string) (int, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByUserWithUser 返回用户的全部消息（按创建顺序），并预加载所属用户。
func (r *messageRepository) FindByUserWithUser(ctx context.Context, userID uint) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// Increment 在同一事务内对计数列执行 col = col + 1 并读回新值。
// 并发递增由数据库的行级原子更新串行化。
func (r *messageRepository) Increment(ctx context.Context, id uint, counter string) (int, error) {
	if counter != CounterLikes && counter != CounterDislikes {
		return 0, fmt.Errorf("unknown counter %q", counter)
	}

	var value int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Message{}).
			Where("id = ?", id).
			UpdateColumn(counter, gorm.Expr(counter+" + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var msg model.Message
		if err := tx.Select("id", counter).First(&msg, id).Error; err != nil {
			return err
		}
		value = msg.Likes
		if counter == CounterDislikes {
			value = msg.Dislikes
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}
