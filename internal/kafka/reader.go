package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"

	"payment-reconciler/internal/message"
)

type Metrics struct {
	ReadErrorCounter      *metrics.Counter
	UnmarshalErrorCounter *metrics.Counter
	ProcessErrorCounter   *metrics.Counter
	SuccessCounter        *metrics.Counter
}

var (
	// metrics for gateway webhook events
	paymentEventMetrics = Metrics{
		ReadErrorCounter:      metrics.GetOrCreateCounter(`kafka_reader_total{result="read_error",type="payment_event"}`),
		UnmarshalErrorCounter: metrics.GetOrCreateCounter(`kafka_reader_total{result="unmarshal_error",type="payment_event"}`),
		ProcessErrorCounter:   metrics.GetOrCreateCounter(`kafka_reader_total{result="process_error",type="payment_event"}`),
		SuccessCounter:        metrics.GetOrCreateCounter(`kafka_reader_total{result="success",type="payment_event"}`),
	}
)

// MessageReader is the part of *kafka.Reader the consumer loop needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// PaymentEventProcessor handles one decoded webhook event.
type PaymentEventProcessor interface {
	Process(ctx context.Context, event message.PaymentEvent) error
}

func NewReader(kafkaURL, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(kafkaURL, ","),
		GroupID: groupID,
		Topic:   topic,
	})
}

// ReadPaymentEvents consumes webhook events until ctx is done. It blocks.
func ReadPaymentEvents(ctx context.Context, reader MessageReader, processor PaymentEventProcessor, logger *slog.Logger) {
	readMessages(ctx, reader, logger, func(ctx context.Context, value []byte) error {
		var e message.PaymentEvent
		if err := json.Unmarshal(value, &e); err != nil {
			logger.ErrorContext(ctx, "Error unmarshalling message", "error", err)
			paymentEventMetrics.UnmarshalErrorCounter.Inc()
			return nil
		}
		return processor.Process(ctx, e)
	}, paymentEventMetrics)
}

func readMessages(ctx context.Context, reader MessageReader, logger *slog.Logger, process func(context.Context, []byte) error, kafkaMetrics Metrics) {
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.InfoContext(ctx, "Context done, stopping reader")
				return
			}
			logger.ErrorContext(ctx, "Error reading message", "error", err)
			kafkaMetrics.ReadErrorCounter.Inc()
			continue
		}
		logger.DebugContext(ctx, "Received message", "topic", m.Topic, "offset", m.Offset)

		if err := process(ctx, m.Value); err != nil {
			logger.ErrorContext(ctx, "Error processing message", "topic", m.Topic, "offset", m.Offset, "error", err)
			kafkaMetrics.ProcessErrorCounter.Inc()
			continue
		}
		kafkaMetrics.SuccessCounter.Inc()
	}
}
