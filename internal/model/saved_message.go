package model

import "time"

// SavedMessage 是用户对某条消息的收藏。(user_id, message_id) 唯一。
type SavedMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_saved_user_message,priority:1" json:"userId"`
	MessageID uint      `gorm:"not null;uniqueIndex:ux_saved_user_message,priority:2;index" json:"messageId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Message *Message `gorm:"foreignKey:MessageID" json:"-"`
}

func (SavedMessage) TableName() string {
	return "saved_messages"
}

// SavedMessageView 是收藏列表接口返回的结构。
type SavedMessageView struct {
	ID        uint      `json:"id"`
	MessageID uint      `json:"messageId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// AllModels 返回需要自动迁移的全部模型。
func AllModels() []interface{} {
	return []interface{}{&User{}, &Message{}, &Suggestion{}, &SavedMessage{}}
}
