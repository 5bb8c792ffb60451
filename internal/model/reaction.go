package model

import (
	"strconv"
	"time"
)

// Reaction 每人对每张照片至多一个表情
type Reaction struct {
	ImageID   uint64    `gorm:"primaryKey" json:"image_id"`
	UserID    uint64    `gorm:"primaryKey" json:"user_id"`
	CoupleID  uint64    `gorm:"not null;index" json:"couple_id"`
	Emoji     string    `gorm:"type:varchar(16);not null" json:"emoji"`
	Vault     bool      `gorm:"not null;default:false" json:"vault"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// ReactionID 复合主键的对外标识
func ReactionID(imageID, userID uint64) string {
	return strconv.FormatUint(imageID, 10) + ":" + strconv.FormatUint(userID, 10)
}
