// Package rowfilter 行级过滤条件，REST 查询与实时订阅共用同一套语法：
//
//	couple_id=eq.12&day=eq.2026-10-19&seq=lt.40
//
// 服务端用它生成查询条件并匹配变更事件，客户端用它编码请求。
package rowfilter

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// reserved 不属于过滤条件的查询参数
var reserved = map[string]bool{"order": true, "limit": true, "select": true, "token": true}

var ErrBadFilter = errors.New("invalid filter")

// Cond 单个列条件
type Cond struct {
	Column string
	Op     Op
	Value  string
}

// Filter 多个条件之间为 AND 关系
type Filter []Cond

func Eq(column string, value any) Cond  { return Cond{Column: column, Op: OpEq, Value: Format(value)} }
func Lt(column string, value any) Cond  { return Cond{Column: column, Op: OpLt, Value: Format(value)} }
func Gt(column string, value any) Cond  { return Cond{Column: column, Op: OpGt, Value: Format(value)} }
func Neq(column string, value any) Cond { return Cond{Column: column, Op: OpNeq, Value: Format(value)} }

// Parse 从查询参数解析过滤条件，忽略保留参数
func Parse(values url.Values) (Filter, error) {
	var f Filter
	for column, list := range values {
		if reserved[column] {
			continue
		}
		for _, raw := range list {
			op, value, ok := strings.Cut(raw, ".")
			if !ok || column == "" {
				return nil, fmt.Errorf("%w: %s=%s", ErrBadFilter, column, raw)
			}
			if !validOp(Op(op)) {
				return nil, fmt.Errorf("%w: unknown operator %q", ErrBadFilter, op)
			}
			f = append(f, Cond{Column: column, Op: Op(op), Value: value})
		}
	}
	// map 遍历无序，排序后便于比较与日志
	sort.Slice(f, func(i, j int) bool {
		if f[i].Column != f[j].Column {
			return f[i].Column < f[j].Column
		}
		return f[i].Op < f[j].Op
	})
	return f, nil
}

// ParseString 解析编码后的过滤串
func ParseString(raw string) (Filter, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFilter, err)
	}
	return Parse(values)
}

func validOp(op Op) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Values 编码为查询参数
func (f Filter) Values() url.Values {
	values := url.Values{}
	for _, c := range f {
		values.Add(c.Column, string(c.Op)+"."+c.Value)
	}
	return values
}

func (f Filter) String() string { return f.Values().Encode() }

// Lookup 返回某列的等值条件
func (f Filter) Lookup(column string) (string, bool) {
	for _, c := range f {
		if c.Column == column && c.Op == OpEq {
			return c.Value, true
		}
	}
	return "", false
}

// Without 去掉某列的全部条件
func (f Filter) Without(column string) Filter {
	out := make(Filter, 0, len(f))
	for _, c := range f {
		if c.Column != column {
			out = append(out, c)
		}
	}
	return out
}

// With 追加条件并返回新切片
func (f Filter) With(conds ...Cond) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Columns 校验列名白名单
func (f Filter) Columns(allowed map[string]bool) error {
	for _, c := range f {
		if !allowed[c.Column] {
			return fmt.Errorf("%w: column %q not filterable", ErrBadFilter, c.Column)
		}
	}
	return nil
}

// Matches 判断一行数据是否满足全部条件，缺失的列视为不满足
func (f Filter) Matches(row map[string]any) bool {
	for _, c := range f {
		v, ok := row[c.Column]
		if !ok {
			return false
		}
		if !c.match(Format(v)) {
			return false
		}
	}
	return true
}

func (c Cond) match(actual string) bool {
	cmp := compare(actual, c.Value)
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// compare 两边都是数字时按数值比较，否则按字符串比较（日期与 RFC3339 时间可直接比较）
func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// Format 将行内的值统一成字符串，JSON 解码出的整数 float64 不带小数
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Order 排序方式，编码为 column.asc / column.desc
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

func ParseOrder(raw string) (Order, error) {
	if raw == "" {
		return Order{}, nil
	}
	column, dir, _ := strings.Cut(raw, ".")
	switch dir {
	case "", "asc":
		return Order{Column: column}, nil
	case "desc":
		return Order{Column: column, Desc: true}, nil
	}
	return Order{}, fmt.Errorf("%w: order %q", ErrBadFilter, raw)
}

func (o Order) String() string {
	if o.Column == "" {
		return ""
	}
	if o.Desc {
		return o.Column + ".desc"
	}
	return o.Column + ".asc"
}

// SQL 生成 ORDER BY 片段，调用方需先用白名单校验列名
func (o Order) SQL() string {
	if o.Desc {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}
