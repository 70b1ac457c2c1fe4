package model

import "time"

// Suggestion 是用户提交的独立反馈，创建后不再修改。
type Suggestion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Suggestion) TableName() string {
	return "suggestions"
}
