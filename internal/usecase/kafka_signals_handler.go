package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	pkgkafka "SignalRelay/pkg/kafka"
	"SignalRelay/pkg/logger"
)

const (
	sourceKafka  = "kafka"
	sourceHeader = "source"
)

type sourceCtxKey struct{}

// KafkaSignalsHandler consumes raw signals published by an external
// scraper. Each message is one RawSignal.
type KafkaSignalsHandler struct {
	topic   string
	ing     *Ingestor
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewKafkaSignalsHandler(topic string, ing *Ingestor, metrics drepo.Metrics, log *logger.Logger) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, ing: ing, metrics: metrics, log: log.With(logger.String("topic", topic))}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle returns nil for records that can never succeed so they are not
// retried into the dead-letter topic.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var raw models.RawSignal
	if err := json.Unmarshal(b, &raw); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("undecodable raw signal", logger.Error(err))
		return nil
	}

	start := time.Now()
	source := sourceKafka
	if v, ok := ctx.Value(sourceCtxKey{}).(string); ok {
		source = v
	}
	_, _, err := h.ing.Ingest(ctx, raw, source)
	h.metrics.RecordLatency("kafka_ingest", time.Since(start).Seconds())
	if errors.Is(err, models.ErrValidation) {
		h.log.Warn("invalid raw signal", logger.String("pair", raw.Pair), logger.Error(err))
		return nil
	}
	return err
}

// ConsumerErrorHook counts and logs failed handling attempts with their
// partition and offset.
func ConsumerErrorHook(metrics drepo.Metrics, log *logger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			metrics.RecordError("consumer_handle")
			log.Warn("raw signal handling failed",
				logger.String("topic", topic),
				logger.Int("partition", km.Partition),
				logger.Int64("offset", km.Offset),
				logger.Error(err))
		},
	}
}

// SourceHeaderHook tags the handling context with the producer's "source"
// header so sightings are attributed to the originating scraper.
func SourceHeaderHook() pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			if v := pkgkafka.HeaderValue(km, sourceHeader); v != "" {
				ctx = context.WithValue(ctx, sourceCtxKey{}, v)
			}
			return ctx, km, data, nil
		},
	}
}
