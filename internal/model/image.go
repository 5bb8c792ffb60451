package model

import (
	"time"
)

// Image 相册中的照片或视频，Vault 为 true 时只在私密相册可见
type Image struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CoupleID  uint64    `gorm:"not null;index:idx_couple_day,priority:1" json:"couple_id"`
	OwnerID   uint64    `gorm:"not null" json:"owner_id"`
	ObjectKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"object_key"`
	URL       string    `gorm:"type:varchar(512);not null" json:"url"`
	ThumbURL  string    `gorm:"type:varchar(512);not null;default:''" json:"thumb_url"`
	MimeType  string    `gorm:"type:varchar(64);not null" json:"mime_type"`
	Size      int64     `gorm:"not null;default:0" json:"size"`
	Width     int       `gorm:"not null;default:0" json:"width"`
	Height    int       `gorm:"not null;default:0" json:"height"`
	Caption   string    `gorm:"type:varchar(500);not null;default:''" json:"caption"`
	Vault     bool      `gorm:"not null;default:false;index:idx_couple_day,priority:2" json:"vault"`
	Day       string    `gorm:"type:char(10);not null;index:idx_couple_day,priority:3" json:"day"` // 按天相册 YYYY-MM-DD
	ClientID  string    `gorm:"type:varchar(64);not null;default:''" json:"client_id"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Image) TableName() string {
	return "images"
}
