package mongo

import (
	"time"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID             string    `bson:"_id" json:"id"`                          // ObjectID 十六进制
	ConversationID uint64    `bson:"conversation_id" json:"conversation_id"` // 关联 MySQL 的会话 ID
	CoupleID       uint64    `bson:"couple_id" json:"couple_id"`
	SenderID       uint64    `bson:"sender_id" json:"sender_id"`
	MsgType        int       `bson:"msg_type" json:"msg_type"`             // 1-文本, 2-图片
	Content        string    `bson:"content" json:"content"`               // 文本内容或图片说明
	Payload        []Payload `bson:"payload,omitempty" json:"payload"`     // 附件
	Seq            uint64    `bson:"seq" json:"seq"`                       // 会话内绝对序号 (来自 MySQL)
	ClientID       string    `bson:"client_id,omitempty" json:"client_id"` // 客户端临时 ID，用于乐观写入对账
	Deleted        bool      `bson:"deleted,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// Payload 附件
type Payload struct {
	MimeType string `bson:"mime_type" json:"mime_type"`
	MediaURL string `bson:"url" json:"url"`
	Width    int    `bson:"width" json:"width"`
	Height   int    `bson:"height" json:"height"`
}
