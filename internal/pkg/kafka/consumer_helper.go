package kafka

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const (
	cdcBatchSize     = 32
	cdcBatchTimeout  = 1 * time.Second
	cdcRetryInterval = 100 * time.Millisecond
	cdcRetryCap      = 5 * time.Second
)

var errDDL = errors.New("ddl statement")

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullBinlogBatch 攒批拉取一个分区的 binlog，按到达顺序逐条处理
func pullBinlogBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, cdcBatchSize)
	ticker := time.NewTicker(cdcBatchTimeout)
	defer ticker.Stop()
	flush := func() bool {
		ok := applyInOrder(session, batch, logic)
		batch = batch[:0]
		return ok
	}
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= cdcBatchSize {
				if !flush() {
					return nil
				}
				ticker.Reset(cdcBatchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 && !flush() {
				return nil
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// applyInOrder 同一分区内同一行的变更必须保持 binlog 顺序，因此串行处理；
// 失败的消息退避重试直到成功或会话结束，成功后才提交位点。返回 false 表示会话已结束
func applyInOrder(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) bool {
	ctx := session.Context()
	for _, msg := range messages {
		wait := cdcRetryInterval
		for attempt := 1; ; attempt++ {
			err := logic(ctx, msg)
			if err == nil {
				break
			}
			log.Warn("cdc message retry",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
				"attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
			wait = min(wait*2, cdcRetryCap)
		}
		session.MarkMessage(msg, "")
	}
	return true
}

// ToCanalMessage 解析 Canal 推送的 JSON，DDL 与空数据的消息返回错误
func ToCanalMessage(msg *sarama.ConsumerMessage) (*CanalMessage, error) {
	var canalMsg CanalMessage
	if err := json.Unmarshal(msg.Value, &canalMsg); err != nil {
		log.Warn("unmarshal canal message error", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil, err
	}
	if canalMsg.IsDDL {
		return nil, errDDL
	}
	if len(canalMsg.Data) == 0 {
		return nil, errors.New("canal message has no rows")
	}
	return &canalMsg, nil
}
