package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/geojson"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
)

// Writer publishes enriched tracts to a Kafka topic, one GeoJSON Feature
// per message keyed by GEOID.
type Writer struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured tract topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// PublishBatch serializes and publishes the tracts in a single
// WriteMessages call.
func (w *Writer) PublishBatch(ctx context.Context, tracts []domain.Tract) error {
	if len(tracts) == 0 {
		return nil
	}
	msgs, err := serializeToMessages(tracts)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d tracts: %w", len(msgs), err)
	}
	w.metrics.TractsPublished.Add(float64(len(msgs)))
	w.logger.Info("tracts published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessages turns each tract into a keyed Feature message.
func serializeToMessages(tracts []domain.Tract) ([]kafkago.Message, error) {
	fc, err := geojson.Encode(tracts)
	if err != nil {
		return nil, err
	}

	msgs := make([]kafkago.Message, len(tracts))
	for i, f := range fc.Features {
		data, err := f.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("serialize tract %d: %w", tracts[i].GeoID10, err)
		}
		msgs[i] = kafkago.Message{
			Key:   []byte(strconv.FormatInt(tracts[i].GeoID10, 10)),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "commarea_n", Value: []byte(strconv.Itoa(tracts[i].CommAreaN))},
				{Key: "processed_at", Value: []byte(tracts[i].ProcessedAt.Format(time.RFC3339))},
			},
		}
	}
	return msgs, nil
}
