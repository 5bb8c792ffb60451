package realtime

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

const (
	FrameAck    = "ack"
	FrameError  = "error"
	FrameChange = "change"
	FramePong   = "pong"
)

// ClientFrame 客户端发往服务端的控制帧
type ClientFrame struct {
	Action     string `json:"action"`
	Topic      string `json:"topic"`
	Table      string `json:"table,omitempty"`
	Filter     string `json:"filter,omitempty"`
	VaultToken string `json:"vault_token,omitempty"`
}

// ServerFrame 服务端推送帧，change 帧展开事件字段
type ServerFrame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
	*ChangeEvent
}
