package kafka

import (
	"Keepsake/internal/pkg/metrics"
	"Keepsake/internal/pkg/realtime"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
)

// CDCHandler 将相册相关表的 binlog 变更转为实时事件
type CDCHandler struct {
	publisher realtime.Publisher
	loc       *time.Location
}

func NewCDCHandler(publisher realtime.Publisher) *CDCHandler {
	return &CDCHandler{publisher: publisher, loc: time.Local}
}

func (s *CDCHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("cdc consumer setup")
	return nil
}

func (s *CDCHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("cdc consumer cleanup")
	return nil
}

func (s *CDCHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("cdc consume claim", "topic", claim.Topic(), "partition", claim.Partition())
	err := pullBinlogBatch(session, claim, s.logic)
	if err != nil {
		log.Error("cdc process batch error", "err", err)
		return err
	}
	return nil
}

// logic 无法解析的消息直接跳过，发布失败返回错误交由批处理重试
func (s *CDCHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg)
	if err != nil {
		return nil
	}
	events, err := ToChangeEvents(canalMsg, s.loc)
	if errors.Is(err, errSkipRow) {
		return nil
	}
	if err != nil {
		log.WarnContext(ctx, "cdc row conversion failed", "table", canalMsg.Table, "err", err)
		metrics.EventsDropped.WithLabelValues("cdc_convert").Inc()
		return nil
	}
	for _, evt := range events {
		if evt.CoupleID == 0 {
			continue
		}
		if err = s.publisher.Publish(ctx, evt); err != nil {
			return err
		}
		metrics.CDCConsumed.WithLabelValues(evt.Table, string(evt.EventType)).Inc()
	}
	return nil
}
