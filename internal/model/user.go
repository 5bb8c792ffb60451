package model

import (
	"time"
)

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex:idx_username;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Nickname  string    `gorm:"type:varchar(50);not null;default:''" json:"nickname"`
	AvatarURL string    `gorm:"type:varchar(512);not null;default:''" json:"avatar_url"`
	CoupleID  uint64    `gorm:"not null;default:0;index" json:"couple_id"` // 0 表示尚未配对
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
