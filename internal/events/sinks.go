package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"govvault/internal/platform/kafka/producer"
)

// LogSink mirrors every event into the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, e Event) {
	s.logger.InfoContext(ctx, "event",
		"event_id", e.ID,
		"event_type", string(e.Type),
		"subject", e.Subject,
		"fields", e.Fields,
	)
}

// KafkaSink publishes events to a kafka topic, keyed by subject so consumers
// see per-subject ordering.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaSink(p *producer.Producer, topic string, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic, logger: logger}
}

func (s *KafkaSink) Write(_ context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal event", "event_type", string(e.Type), "error", err)
		return
	}
	err = s.producer.ProduceAsync(&producer.Message{
		Topic: s.topic,
		Key:   []byte(e.Subject),
		Value: value,
		Headers: map[string]string{
			"event_type": string(e.Type),
		},
	})
	if err != nil {
		s.logger.Error("publish event", "event_type", string(e.Type), "error", err)
	}
}
