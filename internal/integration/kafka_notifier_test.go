//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkaadapter "github.com/AzatSkyArchLab/wind-cfd-service/internal/adapter/kafka"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/runner"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testEventsTopic = "test-wind-run-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startKafka launches a single-node Kafka broker in a container and returns
// its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
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
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestNotifierPublishesLifecycleEvents verifies the Kafka adapter against a
// real broker: events round-trip with ordering per direction, keyed
// partitioning, and the expected headers.
func TestNotifierPublishesLifecycleEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	notifier := kafkaadapter.NewNotifier([]string{broker}, testEventsTopic, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	at := time.Date(2024, time.April, 26, 15, 30, 0, 0, time.UTC)
	published := []runner.Event{
		{Type: runner.EventStarted, Direction: 270, WindSpeed: 4.5, At: at},
		{Type: runner.EventCompleted, Direction: 270, WindSpeed: 4.5, Points: 1500, At: at.Add(2 * time.Minute)},
		{Type: runner.EventFailed, Direction: 90, WindSpeed: 6, Message: "no output time directories", At: at.Add(3 * time.Minute)},
	}
	for _, ev := range published {
		require.NoError(t, notifier.Publish(ctx, ev))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]runner.Event, 0, len(published))
	keys := make([]string, 0, len(published))
	headers := make([]map[string]string, 0, len(published))
	for len(received) < len(published) {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from events topic")

		var ev runner.Event
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		received = append(received, ev)
		keys = append(keys, string(msg.Key))

		h := make(map[string]string, len(msg.Headers))
		for _, hd := range msg.Headers {
			h[hd.Key] = string(hd.Value)
		}
		headers = append(headers, h)
	}

	assert.Equal(t, published, received, "events round-trip in publish order")
	assert.Equal(t, []string{"270", "270", "90"}, keys, "messages keyed by direction")

	for i, h := range headers {
		assert.Equal(t, published[i].Type, h["event_type"])
		emitted, err := time.Parse(time.RFC3339, h["emitted_at"])
		assert.NoError(t, err, "emitted_at should be valid RFC3339")
		assert.True(t, emitted.Equal(published[i].At))
	}

	assert.Equal(t, 1500, received[1].Points)
	assert.Equal(t, "no output time directories", received[2].Message)
}
