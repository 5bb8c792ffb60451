package model

import "time"

// Couple 情侣空间，相册、私密相册与聊天都以它为边界
type Couple struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	InviteCode    string    `gorm:"type:varchar(16);uniqueIndex" json:"invite_code"`
	UserAID       uint64    `gorm:"not null;index" json:"user_a_id"`
	UserBID       uint64    `gorm:"not null;default:0;index" json:"user_b_id"` // 0 表示等待对方加入
	VaultPassword string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Couple) TableName() string { return "couples" }

// IsMember 判断用户是否属于该空间
func (c *Couple) IsMember(userID uint64) bool {
	return userID != 0 && (c.UserAID == userID || c.UserBID == userID)
}

// Partner 返回另一方的用户 ID
func (c *Couple) Partner(userID uint64) uint64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}
