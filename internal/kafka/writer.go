package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/message"
)

const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 100
)

var (
	publishSuccessCounter = metrics.GetOrCreateCounter(`kafka_writer_total{result="success",type="status_change"}`)
	publishErrorCounter   = metrics.GetOrCreateCounter(`kafka_writer_total{result="write_error",type="status_change"}`)
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(cfg config.Kafka, topic string) *kafka.Writer {
	batchSize := cfg.Writer.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchTimeout := cfg.Writer.BatchTimeoutMs
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Broker.URL, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(batchTimeout) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

// StatusPublisher writes registration status changes to Kafka, keyed by tax id
// so that changes to one registration stay ordered.
type StatusPublisher struct {
	writer MessageWriter
}

func NewStatusPublisher(writer MessageWriter) *StatusPublisher {
	return &StatusPublisher{writer: writer}
}

func (p *StatusPublisher) StatusChanged(ctx context.Context, msg message.RegistrationStatusChanged) error {
	value, err := json.Marshal(msg)
	if err != nil {
		publishErrorCounter.Inc()
		return errors.Wrap(err, "marshal status change")
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.TaxID), Value: value}); err != nil {
		publishErrorCounter.Inc()
		return errors.Wrap(err, "write status change")
	}
	publishSuccessCounter.Inc()
	return nil
}
