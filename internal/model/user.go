// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应 users 表。Password 只保存 bcrypt 哈希，且永不序列化。
// ProfileImage 可能是完整的 data URL，MySQL 下映射为 mediumtext。
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	ProfileImage *string   `gorm:"size:16777215" json:"profileImage"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
