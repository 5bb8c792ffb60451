package dto

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	MsgType  int              `json:"msg_type" validate:"omitempty,oneof=1 2"` // 1-文本, 2-图片
	Content  string           `json:"content" validate:"max=2000"`
	Payload  []MessagePayload `json:"payload" validate:"max=9,dive"`
	ClientID string           `json:"client_id" validate:"max=64"`
}

type MessagePayload struct {
	MimeType string `json:"mime_type"`
	MediaURL string `json:"url" validate:"required,url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
