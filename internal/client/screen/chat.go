package screen

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"strings"
)

// ChatPageSize 首屏加载的消息数
const ChatPageSize = 50

// Chat 情侣之间的一对一聊天
type Chat struct {
	*Feed[Message]
}

// NewChat conversationID 为 0 时接收情侣空间内全部消息
func NewChat(gw Gateway, conversationID uint64, opts ...SessionOption) *Chat {
	var filter rowfilter.Filter
	if conversationID != 0 {
		filter = rowfilter.Filter{rowfilter.Eq("conversation_id", conversationID)}
	}
	o := collect(opts)
	return &Chat{Feed: NewFeed(gw, FeedConfig[Message]{
		Table:     tableMessages,
		Filter:    filter,
		Query:     gateway.Query{Order: rowfilter.Desc("seq"), Limit: ChatPageSize},
		Decode:    DecodeMessage,
		Validator: ledger.NotBlank(func(m Message) string { return m.Content }),
		Clock:     o.clock,
	})}
}

// Send 发送文本，首尾空白被去除，空文本在本地拒绝
func (c *Chat) Send(ctx context.Context, text string) (ledger.Entity[Message], error) {
	msg := Message{MsgType: consts.MsgTypeText, Content: strings.TrimSpace(text)}
	return c.Submit(ctx, msg, func(ctx context.Context, tempID string, m Message) (gateway.Row, error) {
		return c.gw.Insert(ctx, tableMessages, &dto.SendMessageReq{
			MsgType:  m.MsgType,
			Content:  m.Content,
			ClientID: tempID,
		})
	})
}

// Recall 撤回自己发送的消息
func (c *Chat) Recall(ctx context.Context, id string) error {
	return c.Remove(ctx, id, func(ctx context.Context, id string) error {
		return c.gw.Delete(ctx, tableMessages, rowfilter.Filter{rowfilter.Eq("id", id)})
	})
}
