package audit

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes one serialized audit entry.
type Producer interface {
	SendMessage(ctx context.Context, key, value []byte) error
	Close() error
}

// KafkaProducer writes entries to the audit topic.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaProducer) SendMessage(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// LogProducer is the fallback when no brokers are configured.
type LogProducer struct {
	log *zap.Logger
}

func NewLogProducer(log *zap.Logger) *LogProducer {
	return &LogProducer{log: log}
}

func (p *LogProducer) SendMessage(ctx context.Context, key, value []byte) error {
	p.log.Info("audit", zap.ByteString("key", key), zap.ByteString("entry", value))
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}
