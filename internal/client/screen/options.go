package screen

import (
	"Keepsake/internal/client/viewer"
	"Keepsake/internal/pkg/clock"
)

type sessionOptions struct {
	clock clock.Clock
}

type SessionOption func(*sessionOptions)

// WithClock 注入时钟，测试中驱动乐观记录时间与幻灯片计时
func WithClock(c clock.Clock) SessionOption {
	return func(o *sessionOptions) { o.clock = c }
}

func collect(opts []SessionOption) sessionOptions {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o sessionOptions) viewerOptions() []viewer.Option {
	if o.clock == nil {
		return nil
	}
	return []viewer.Option{viewer.WithClock(o.clock)}
}
