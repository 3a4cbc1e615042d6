//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/kafka"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
	"github.com/couchcryptid/chicago-heat-etl/internal/pipeline"
)

const testTopic = "test-tracts"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start kafka container")

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type publishedTract struct {
	Key     string
	Headers map[string]string
	Feature *geojson.Feature
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedTract {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from tract topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	f, err := geojson.UnmarshalFeature(msg.Value)
	require.NoError(t, err, "unmarshal feature")
	return publishedTract{Key: string(msg.Key), Headers: headers, Feature: f}
}

func square(minX, minY float64) orb.MultiPolygon {
	const s = 0.01
	return orb.MultiPolygon{{orb.Ring{
		{minX, minY}, {minX + s, minY}, {minX + s, minY + s}, {minX, minY + s}, {minX, minY},
	}}}
}

// TestEnrichAndPublish runs the enrichment stages on a small synthetic city
// and publishes the result through a real broker.
func TestEnrichAndPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	metrics := observability.NewMetricsForTesting()

	hot := time.Date(2012, time.July, 6, 14, 30, 0, 0, time.UTC)
	in := pipeline.EnrichInputs{
		Tracts: []domain.Tract{
			{GeoID10: 17031000100, CommArea: "ROGERS PARK", CommAreaN: 1, Geometry: square(-87.70, 41.80)},
			{GeoID10: 17031000200, CommArea: "WEST RIDGE", CommAreaN: 2, Geometry: square(-87.60, 41.80)},
		},
		Temperatures: []domain.TemperatureSeries{
			{CommArea: 1, Values: map[time.Time]float64{hot: 35}},
			{CommArea: 2, Values: map[time.Time]float64{hot: 33}},
		},
		Crimes: []domain.Crime{
			{PrimaryDescription: "BATTERY", Location: orb.Point{-87.695, 41.805}},
			{PrimaryDescription: "THEFT", Location: orb.Point{-87.595, 41.805}},
		},
	}

	tracts, checks, err := pipeline.NewEnricher(domain.DefaultHeatwaveThreshold, discardLogger(), metrics).Run(ctx, in)
	require.NoError(t, err)
	require.Len(t, tracts, 2)
	require.Len(t, checks, 8)

	writer := kafka.NewWriter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.PublishBatch(ctx, tracts))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := map[string]publishedTract{}
	for len(got) < len(tracts) {
		p := readPublished(ctx, t, consumer)
		got[p.Key] = p
	}

	rogers := got["17031000100"]
	require.NotNil(t, rogers.Feature)
	assert.Equal(t, "1", rogers.Headers["commarea_n"])
	_, err = time.Parse(time.RFC3339, rogers.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
	assert.InDelta(t, 1.0, rogers.Feature.Properties["H_a"], 1e-9)
	assert.InDelta(t, 1.0, rogers.Feature.Properties["is_violent"], 0)
	assert.Nil(t, rogers.Feature.Properties["TOTAL POPULATION"])

	ridge := got["17031000200"]
	require.NotNil(t, ridge.Feature)
	assert.InDelta(t, -1.0, ridge.Feature.Properties["H_a"], 1e-9)
	assert.InDelta(t, 0.0, ridge.Feature.Properties["is_violent"], 0)
}
