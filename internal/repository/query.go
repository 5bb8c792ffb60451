package repository

import (
	"Keepsake/internal/pkg/rowfilter"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// ColumnKind 过滤参数按列类型转换后再交给数据库
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindUint
	KindBool
	KindTime
)

// Columns 可过滤、可排序的列
type Columns map[string]ColumnKind

var sqlOps = map[rowfilter.Op]string{
	rowfilter.OpEq:  "=",
	rowfilter.OpNeq: "<>",
	rowfilter.OpGt:  ">",
	rowfilter.OpGte: ">=",
	rowfilter.OpLt:  "<",
	rowfilter.OpLte: "<=",
}

// Where 将过滤条件追加到查询，列名必须在白名单内
func (c Columns) Where(db *gorm.DB, f rowfilter.Filter) (*gorm.DB, error) {
	for _, cond := range f {
		kind, ok := c[cond.Column]
		if !ok {
			return nil, fmt.Errorf("%w: column %q not filterable", rowfilter.ErrBadFilter, cond.Column)
		}
		op, ok := sqlOps[cond.Op]
		if !ok {
			return nil, fmt.Errorf("%w: operator %q", rowfilter.ErrBadFilter, cond.Op)
		}
		value, err := convert(kind, cond.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", rowfilter.ErrBadFilter, cond.Column, err)
		}
		db = db.Where(cond.Column+" "+op+" ?", value)
	}
	return db, nil
}

// OrderBy 追加排序，未指定时使用 fallback
func (c Columns) OrderBy(db *gorm.DB, o rowfilter.Order, fallback rowfilter.Order) (*gorm.DB, error) {
	if o.Column == "" {
		o = fallback
	}
	if _, ok := c[o.Column]; !ok {
		return nil, fmt.Errorf("%w: column %q not sortable", rowfilter.ErrBadFilter, o.Column)
	}
	db = db.Order(o.SQL())
	// 同一时间戳内按主键稳定排序
	if o.Column != "id" {
		if _, ok := c["id"]; ok {
			db = db.Order(rowfilter.Order{Column: "id", Desc: o.Desc}.SQL())
		}
	}
	return db, nil
}

func convert(kind ColumnKind, raw string) (any, error) {
	switch kind {
	case KindUint:
		return strconv.ParseUint(raw, 10, 64)
	case KindBool:
		return strconv.ParseBool(raw)
	case KindTime:
		return time.Parse(time.RFC3339Nano, raw)
	}
	return raw, nil
}

// clampLimit 限制单页大小
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

const MaxPageSize = 200
