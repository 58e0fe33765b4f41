package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger

	consumers []jetstream.ConsumeContext
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Watch delivers the newest stored event for subject and everything after it.
// The consumer is ephemeral, so a watcher that goes away leaves nothing behind.
func (s *Subscriber) Watch(ctx context.Context, subject string, handler EventHandler) error {
	consumer, err := s.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			s.logger.Warn("NatsSubscriber", "Error unmarshalling event data", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
			return
		}

		occurredAt := time.Now()
		if meta, err := msg.Metadata(); err == nil {
			occurredAt = meta.Timestamp
		}

		event := events.BaseEvent{
			Type:       strings.TrimPrefix(msg.Subject(), "events."),
			Data:       payload,
			OccurredAt: occurredAt,
		}
		if err := handler(ctx, event); err != nil {
			s.logger.Warn("NatsSubscriber", "Handler failed", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.consumers = append(s.consumers, cc)

	s.logger.Info("NatsSubscriber", "Watching subject", map[string]interface{}{"subject": subject})
	return nil
}

// Close stops all consumers and closes the connection.
func (s *Subscriber) Close() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
