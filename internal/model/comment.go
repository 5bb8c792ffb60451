package model

import (
	"time"
)

type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ImageID   uint64    `gorm:"not null;index:idx_image_id" json:"image_id"`
	CoupleID  uint64    `gorm:"not null" json:"couple_id"`
	UserID    uint64    `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"type:varchar(1000);not null" json:"content"`
	Vault     bool      `gorm:"not null;default:false" json:"vault"`
	ClientID  string    `gorm:"type:varchar(64);not null;default:''" json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}
