package realtime

import (
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/metrics"
	"Keepsake/internal/pkg/redis"
	"context"
	log "log/slog"

	"github.com/goccy/go-json"
)

// Publisher 发布变更事件
type Publisher interface {
	Publish(ctx context.Context, evt *ChangeEvent) error
}

// RedisPublisher 通过 redis pub/sub 向情侣空间频道扇出
type RedisPublisher struct {
	source string
}

func NewRedisPublisher(source string) *RedisPublisher {
	return &RedisPublisher{source: source}
}

func (s *RedisPublisher) Publish(ctx context.Context, evt *ChangeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err = redis.Publish(ctx, Channel(consts.RealtimeCoupleKey, evt.CoupleID), data); err != nil {
		log.ErrorContext(ctx, "realtime publish failed", "table", evt.Table, "type", evt.EventType, "err", err)
		return err
	}
	metrics.EventsPublished.WithLabelValues(evt.Table, s.source).Inc()
	return nil
}
