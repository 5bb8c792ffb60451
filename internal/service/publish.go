package service

import (
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/pkg/util"
	"context"
	log "log/slog"
	"time"

	"github.com/goccy/go-json"
)

// publishChange 写入成功后发布变更事件，失败只记录日志
func publishChange(pub realtime.Publisher, table string, typ realtime.EventType, coupleID uint64, vault bool, newRow, oldRow any) {
	evt, err := realtime.NewEvent(table, typ, coupleID, vault, newRow, oldRow)
	if err != nil {
		log.Error("build change event failed", "table", table, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = pub.Publish(ctx, evt)
}

// decodeBody 解码并校验请求体
func decodeBody(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return ErrParamInvalid
	}
	return util.ValidateDTO(v)
}

// idFilter 从过滤条件中取出 id=eq.N
func idFilter(filter rowfilter.Filter, column string) (uint64, error) {
	raw, ok := filter.Lookup(column)
	if !ok {
		return 0, ErrParamInvalid
	}
	id, ok := util.ParseID(raw)
	if !ok {
		return 0, ErrParamInvalid
	}
	return id, nil
}
