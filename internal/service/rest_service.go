package service

import (
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"sort"
)

// Query 表查询参数
type Query struct {
	Filter rowfilter.Filter
	Order  rowfilter.Order
	Limit  int
}

// Table 通过 /rest/:table 暴露的数据表
type Table interface {
	Name() string
	Select(ctx context.Context, scope Scope, q Query) (any, error)
	Insert(ctx context.Context, scope Scope, body []byte) (any, error)
	Update(ctx context.Context, scope Scope, filter rowfilter.Filter, body []byte) (int64, error)
	Delete(ctx context.Context, scope Scope, filter rowfilter.Filter) (int64, error)
}

// RestService 按表名分发通用增删改查
type RestService interface {
	Tables() []string
	Select(ctx context.Context, scope Scope, table string, q Query) (any, error)
	Insert(ctx context.Context, scope Scope, table string, body []byte) (any, error)
	Update(ctx context.Context, scope Scope, table string, filter rowfilter.Filter, body []byte) (int64, error)
	Delete(ctx context.Context, scope Scope, table string, filter rowfilter.Filter) (int64, error)
}

type restServiceImpl struct {
	tables map[string]Table
}

func NewRestService(tables ...Table) RestService {
	s := &restServiceImpl{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Name()] = t
	}
	return s
}

func (s *restServiceImpl) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *restServiceImpl) table(scope Scope, name string) (Table, error) {
	if err := scope.Paired(); err != nil {
		return nil, err
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, ErrTableNotSupported
	}
	return t, nil
}

func (s *restServiceImpl) Select(ctx context.Context, scope Scope, table string, q Query) (any, error) {
	t, err := s.table(scope, table)
	if err != nil {
		return nil, err
	}
	return t.Select(ctx, scope, q)
}

func (s *restServiceImpl) Insert(ctx context.Context, scope Scope, table string, body []byte) (any, error) {
	t, err := s.table(scope, table)
	if err != nil {
		return nil, err
	}
	return t.Insert(ctx, scope, body)
}

// Update 与 Delete 必须带过滤条件，避免误操作整张表
func (s *restServiceImpl) Update(ctx context.Context, scope Scope, table string, filter rowfilter.Filter, body []byte) (int64, error) {
	t, err := s.table(scope, table)
	if err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, ErrParamInvalid
	}
	return t.Update(ctx, scope, filter, body)
}

func (s *restServiceImpl) Delete(ctx context.Context, scope Scope, table string, filter rowfilter.Filter) (int64, error) {
	t, err := s.table(scope, table)
	if err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, ErrParamInvalid
	}
	return t.Delete(ctx, scope, filter)
}
