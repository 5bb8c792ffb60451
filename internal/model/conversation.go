package model

import "time"

// Conversation 情侣空间唯一的聊天会话，MaxMsgSeq 为消息定序
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CoupleID       uint64    `gorm:"uniqueIndex" json:"couple_id"`
	MaxMsgSeq      uint64    `gorm:"not null;default:0" json:"max_msg_seq"`
	LastMsgContent string    `gorm:"type:varchar(255)" json:"last_msg_content"`
	LastSenderID   uint64    `gorm:"not null;default:0" json:"last_sender_id"`
	LastMessageAt  time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// AllModels 自动迁移的全部模型
func AllModels() []any {
	return []any{&User{}, &Couple{}, &Image{}, &Reaction{}, &Comment{}, &Conversation{}}
}
