package logger

import (
	"context"
	"errors"
	log "log/slog"
)

// fanoutHandler 同一条记录写入本地与 logstash，某一路失败不影响其他路
type fanoutHandler struct {
	handlers []log.Handler
}

func newFanout(handlers ...log.Handler) *fanoutHandler {
	return &fanoutHandler{handlers: handlers}
}

func (s *fanoutHandler) Enabled(ctx context.Context, level log.Level) bool {
	for _, h := range s.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (s *fanoutHandler) Handle(ctx context.Context, r log.Record) error {
	var errs []error
	for _, h := range s.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *fanoutHandler) WithAttrs(attrs []log.Attr) log.Handler {
	next := make([]log.Handler, len(s.handlers))
	for i, h := range s.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (s *fanoutHandler) WithGroup(name string) log.Handler {
	next := make([]log.Handler, len(s.handlers))
	for i, h := range s.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// shipFilter 决定哪些记录上报 logstash：请求链路内带 trace_id 的日志，
// 以及 CDC、定时任务等后台协程中 alertLevel 及以上的日志
type shipFilter struct {
	next       log.Handler
	alertLevel log.Level
}

func (s *shipFilter) Enabled(ctx context.Context, level log.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s *shipFilter) Handle(ctx context.Context, r log.Record) error {
	if r.Level < s.alertLevel && !hasTraceID(r) {
		return nil
	}
	return s.next.Handle(ctx, r)
}

func (s *shipFilter) WithAttrs(attrs []log.Attr) log.Handler {
	return &shipFilter{next: s.next.WithAttrs(attrs), alertLevel: s.alertLevel}
}

func (s *shipFilter) WithGroup(name string) log.Handler {
	return &shipFilter{next: s.next.WithGroup(name), alertLevel: s.alertLevel}
}

func hasTraceID(r log.Record) bool {
	found := false
	r.Attrs(func(a log.Attr) bool {
		if a.Key == TraceIDKey && a.Value.String() != "" {
			found = true
			return false
		}
		return true
	})
	return found
}
