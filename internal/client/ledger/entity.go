package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempPrefix 客户端临时 ID 前缀，服务端 ID 不会以此开头
const TempPrefix = "tmp-"

// Entity 账本中的一条记录（消息、照片、评论）
type Entity[T any] struct {
	ID        string
	OwnerID   string
	Payload   T
	CreatedAt time.Time
	// LocalID 服务端回显的客户端临时 ID，用于让实时事件直接替换自己的乐观写入
	LocalID string
	// Pending 仅乐观写入尚未确认时为 true
	Pending bool
}

// Kind 变更类型
type Kind int

const (
	Inserted Kind = iota + 1
	Updated
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// ChangeEvent 已解码的远端变更
type ChangeEvent[T any] struct {
	Kind   Kind
	Entity Entity[T]
}

// NewTempID 生成会话内唯一的临时 ID
func NewTempID() string {
	return TempPrefix + uuid.NewString()
}

// IsTemp 判断是否为临时 ID
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// less 按 (CreatedAt, ID) 排序
func less[T any](a, b *Entity[T]) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
