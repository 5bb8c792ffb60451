package screen

import (
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Message 聊天消息
type Message struct {
	SenderID uint64 `json:"sender_id"`
	MsgType  int    `json:"msg_type"`
	Content  string `json:"content"`
	Seq      uint64 `json:"seq"`
}

// Photo 相册中的一张照片
type Photo struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Day      string `json:"day"`
	Vault    bool   `json:"vault"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Comment 照片评论
type Comment struct {
	ImageID uint64 `json:"image_id"`
	Content string `json:"content"`
}

// Reaction 照片表态，每人每张照片一条
type Reaction struct {
	ImageID uint64 `json:"image_id"`
	Emoji   string `json:"emoji"`
}

type rowMeta struct {
	ID        json.RawMessage `json:"id"`
	ClientID  string          `json:"client_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// rowID 服务端 ID 可能是数字或字符串，统一成字符串
func rowID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("row has no id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.Wrap(err, "decode id")
		}
		if s == "" {
			return "", errors.New("row has empty id")
		}
		return s, nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.Wrap(err, "decode id")
	}
	return strconv.FormatUint(n, 10), nil
}

// decodeRow 解码公共列与载荷，owner 从载荷中取出发送者
func decodeRow[T any](row gateway.Row, owner func(raw map[string]json.RawMessage) string) (ledger.Entity[T], error) {
	var meta rowMeta
	if err := json.Unmarshal(row, &meta); err != nil {
		return ledger.Entity[T]{}, errors.Wrap(err, "decode row")
	}
	id, err := rowID(meta.ID)
	if err != nil {
		return ledger.Entity[T]{}, err
	}
	if meta.CreatedAt.IsZero() {
		return ledger.Entity[T]{}, errors.Errorf("row %s has no created_at", id)
	}
	var payload T
	if err = json.Unmarshal(row, &payload); err != nil {
		return ledger.Entity[T]{}, errors.Wrapf(err, "decode row %s", id)
	}
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(row, &raw); err != nil {
		return ledger.Entity[T]{}, errors.Wrapf(err, "decode row %s", id)
	}
	return ledger.Entity[T]{
		ID:        id,
		OwnerID:   owner(raw),
		Payload:   payload,
		CreatedAt: meta.CreatedAt,
		LocalID:   meta.ClientID,
	}, nil
}

func ownerColumn(column string) func(raw map[string]json.RawMessage) string {
	return func(raw map[string]json.RawMessage) string {
		v, ok := raw[column]
		if !ok {
			return ""
		}
		id, err := rowID(v)
		if err != nil {
			return ""
		}
		return id
	}
}

func DecodeMessage(row gateway.Row) (ledger.Entity[Message], error) {
	return decodeRow[Message](row, ownerColumn("sender_id"))
}

func DecodePhoto(row gateway.Row) (ledger.Entity[Photo], error) {
	e, err := decodeRow[Photo](row, ownerColumn("owner_id"))
	if err != nil {
		return e, err
	}
	if e.Payload.URL == "" {
		return e, errors.Errorf("image %s has no url", e.ID)
	}
	return e, nil
}

func DecodeComment(row gateway.Row) (ledger.Entity[Comment], error) {
	return decodeRow[Comment](row, ownerColumn("user_id"))
}

func DecodeReaction(row gateway.Row) (ledger.Entity[Reaction], error) {
	return decodeRow[Reaction](row, ownerColumn("user_id"))
}
