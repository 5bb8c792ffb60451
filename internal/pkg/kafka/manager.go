package kafka

import (
	"Keepsake/internal/api/config"
	"Keepsake/internal/pkg/realtime"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	cdcConsumer sarama.ConsumerGroup
	cdcHandler  sarama.ConsumerGroupHandler
	topics      []string
}

// NewConsumerManager 构造函数，CDC 未开启时返回 nil
func NewConsumerManager(cfg *config.Config, publisher realtime.Publisher) (*ConsumerManager, error) {
	if !cfg.KafkaCDC.Enable {
		return nil, nil
	}
	saramaCfg := newSaramaConfig(cfg.Kafka)

	cdcConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaCDC.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		cdcConsumer: cdcConsumer,
		cdcHandler:  NewCDCHandler(publisher),
		topics:      cfg.KafkaCDC.Topics,
	}, nil
}

// Start 启动所有消费者，阻塞直到 ctx 取消
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		log.Info("CDC consumer started", "topics", m.topics)
		for {
			if err := m.cdcConsumer.Consume(ctx, m.topics, m.cdcHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range m.cdcConsumer.Errors() {
			log.Warn("CDC consumer error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.cdcConsumer.Close(); err != nil {
		log.Error("Failed to close cdc consumer", "err", err)
	}
	return nil
}
