package kafka

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/realtime"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// canalTimeLayout Canal 以会话时区输出 datetime，datetime(3) 带毫秒
const canalTimeLayout = "2006-01-02 15:04:05.999999"

var errSkipRow = errors.New("row skipped")

type columnKind int

const (
	colString columnKind = iota
	colUint
	colInt
	colBool
	colTime
)

// tableSchema 只列出非字符串列，其余原样保留
type tableSchema map[string]columnKind

var schemas = map[string]tableSchema{
	"images": {
		"id": colUint, "couple_id": colUint, "owner_id": colUint, "size": colInt,
		"width": colInt, "height": colInt, "vault": colBool,
		"taken_at": colTime, "created_at": colTime, "updated_at": colTime,
	},
	"comments": {
		"id": colUint, "image_id": colUint, "couple_id": colUint, "user_id": colUint,
		"vault": colBool, "created_at": colTime,
	},
	"reactions": {
		"image_id": colUint, "user_id": colUint, "couple_id": colUint,
		"vault": colBool, "created_at": colTime, "updated_at": colTime,
	},
}

// hiddenColumns 不随事件下发的列
var hiddenColumns = map[string]bool{"password": true, "vault_password": true}

// Watched 是否为需要转换的表
func Watched(table string) bool {
	_, ok := schemas[table]
	return ok
}

// typedRow 将 Canal 的字符串列转换为与 REST 响应一致的 JSON 值
func typedRow(table string, raw map[string]interface{}, loc *time.Location) (map[string]any, error) {
	schema := schemas[table]
	row := make(map[string]any, len(raw)+1)
	for col, v := range raw {
		if hiddenColumns[col] {
			continue
		}
		if v == nil {
			row[col] = nil
			continue
		}
		s, ok := v.(string)
		if !ok {
			row[col] = v
			continue
		}
		typed, err := convertColumn(schema[col], s, loc)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", table, col, err)
		}
		row[col] = typed
	}
	if table == "reactions" {
		imageID, _ := row["image_id"].(uint64)
		userID, _ := row["user_id"].(uint64)
		row["id"] = model.ReactionID(imageID, userID)
	}
	return row, nil
}

func convertColumn(kind columnKind, s string, loc *time.Location) (any, error) {
	switch kind {
	case colUint:
		return strconv.ParseUint(s, 10, 64)
	case colInt:
		return strconv.ParseInt(s, 10, 64)
	case colBool:
		switch s {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("bad bool %q", s)
	case colTime:
		if s == "" {
			return nil, nil
		}
		t, err := time.ParseInLocation(canalTimeLayout, s, loc)
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339Nano), nil
	}
	return s, nil
}

// ToChangeEvents 将一条 Canal 消息转换为变更事件。
// UPDATE 的旧行由新行叠加变化列得到；私密标记或日期变化时拆为 DELETE 与 INSERT，
// 使按 day 或 vault 过滤的订阅能移除旧行。
func ToChangeEvents(msg *CanalMessage, loc *time.Location) ([]*realtime.ChangeEvent, error) {
	if msg.IsDDL || !Watched(msg.Table) {
		return nil, errSkipRow
	}
	var events []*realtime.ChangeEvent
	ts := msg.TS
	if msg.ES > 0 {
		ts = msg.ES
	}
	for i, data := range msg.Data {
		row, err := typedRow(msg.Table, data, loc)
		if err != nil {
			return nil, err
		}
		coupleID, _ := row["couple_id"].(uint64)
		vault, _ := row["vault"].(bool)

		switch msg.Type {
		case canalInsert:
			events = append(events, newEvent(msg.Table, realtime.Insert, coupleID, vault, row, nil, ts))
		case canalDelete:
			events = append(events, newEvent(msg.Table, realtime.Delete, coupleID, vault, nil, row, ts))
		case canalUpdate:
			merged := make(map[string]interface{}, len(data))
			for k, v := range data {
				merged[k] = v
			}
			if i < len(msg.Old) {
				for k, v := range msg.Old[i] {
					merged[k] = v
				}
			}
			old, err := typedRow(msg.Table, merged, loc)
			if err != nil {
				return nil, err
			}
			oldVault, _ := old["vault"].(bool)
			if oldVault != vault || old["day"] != row["day"] {
				events = append(events,
					newEvent(msg.Table, realtime.Delete, coupleID, oldVault, nil, old, ts),
					newEvent(msg.Table, realtime.Insert, coupleID, vault, row, nil, ts))
				continue
			}
			events = append(events, newEvent(msg.Table, realtime.Update, coupleID, vault, row, old, ts))
		default:
			return nil, errSkipRow
		}
	}
	return events, nil
}

func newEvent(table string, typ realtime.EventType, coupleID uint64, vault bool, newRow, oldRow map[string]any, ts int64) *realtime.ChangeEvent {
	return &realtime.ChangeEvent{
		Table:     table,
		EventType: typ,
		New:       newRow,
		Old:       oldRow,
		CoupleID:  coupleID,
		Vault:     vault,
		CommitTS:  ts,
	}
}
