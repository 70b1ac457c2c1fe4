package repository

import (
	"context"

	"study-with-speech/internal/model"

	"gorm.io/gorm"
)

// SuggestionRepository 定义了建议记录的持久化操作。
type SuggestionRepository interface {
	Create(ctx context.Context, s *model.Suggestion) error
	FindAll(ctx context.Context) ([]model.Suggestion, error)
}

type suggestionRepository struct {
	db *gorm.DB
}

// NewSuggestionRepository 创建一个新的 SuggestionRepository 实例。
func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) Create(ctx context.Context, s *model.Suggestion) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *suggestionRepository) FindAll(ctx context.Context) ([]model.Suggestion, error) {
	var out []model.Suggestion
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}
