// Package realtime 变更事件的线上格式与订阅匹配。
//
// 每个情侣空间对应一个 redis 频道，业务写入与 Canal CDC 都向该频道发布
// ChangeEvent；websocket 会话按订阅的表名与过滤条件转发。投递语义为至少一次，
// 同一行的事件可能重复或乱序，客户端按持久 ID 幂等合并。
package realtime

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// ChangeEvent 行级变更
type ChangeEvent struct {
	Table     string         `json:"table"`
	EventType EventType      `json:"eventType"`
	New       map[string]any `json:"new,omitempty"`
	Old       map[string]any `json:"old,omitempty"`
	CoupleID  uint64         `json:"couple_id"`
	Vault     bool           `json:"vault,omitempty"`
	CommitTS  int64          `json:"commit_ts"`
}

// Row 供过滤匹配的行，DELETE 取旧值
func (e *ChangeEvent) Row() map[string]any {
	if e.EventType == Delete && e.Old != nil {
		return e.Old
	}
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// NewEvent 由模型构造事件，行内容经 JSON 往返保持与 REST 响应一致
func NewEvent(table string, typ EventType, coupleID uint64, vault bool, newRow, oldRow any) (*ChangeEvent, error) {
	evt := &ChangeEvent{
		Table:     table,
		EventType: typ,
		CoupleID:  coupleID,
		Vault:     vault,
		CommitTS:  time.Now().UnixMilli(),
	}
	var err error
	if newRow != nil {
		if evt.New, err = RowOf(newRow); err != nil {
			return nil, err
		}
	}
	if oldRow != nil {
		if evt.Old, err = RowOf(oldRow); err != nil {
			return nil, err
		}
	}
	return evt, nil
}

// RowOf 将结构体转为 JSON 对象
func RowOf(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err = json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// Channel 情侣空间的事件频道
func Channel(prefix string, coupleID uint64) string {
	return prefix + strconv.FormatUint(coupleID, 10)
}
