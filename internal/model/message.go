package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表一条持久化的聊天消息。
// 助手回复与用户提问都归属于发起对话的用户，通过 Role 区分发送方。
// 内容创建后不可修改，Likes/Dislikes 只由反馈接口递增。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Role      string    `gorm:"type:varchar(16);not null;default:user" json:"role"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Dislikes  int       `gorm:"not null;default:0" json:"dislikes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
