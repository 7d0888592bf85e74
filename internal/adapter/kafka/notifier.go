// Package kafka publishes calculation lifecycle events to a Kafka topic
// so downstream consumers (dashboards, archival jobs) can react to
// finished runs without polling the service.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/runner"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier produces run lifecycle events.
// It implements runner.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the run-events topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// Publish serializes one lifecycle event. Messages are keyed by wind
// direction so all runs for a direction land in one partition, in order.
func (n *Notifier) Publish(ctx context.Context, ev runner.Event) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	n.logger.Debug("publishing run event", "type", ev.Type, "direction", ev.Direction)
	return n.writer.WriteMessages(ctx, msg)
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a lifecycle event into a Kafka message.
func serializeToMessage(ev runner.Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(ev.Direction)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "emitted_at", Value: []byte(ev.At.Format(time.RFC3339))},
		},
	}, nil
}
