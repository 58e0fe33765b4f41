package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	SnapshotTopic     = "pipeline_snapshot"
	SnapshotEventType = "pipeline.snapshot"
)

// SnapshotBus fans machine snapshots out to in-process consumers. Delivery
// order is not guaranteed; consumers only see snapshots newer than the last
// one they handled.
type SnapshotBus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewSnapshotBus(pubSub *gochannel.GoChannel, log logger.ILogger) *SnapshotBus {
	return &SnapshotBus{pubSub: pubSub, logger: log}
}

// Publish has the pipeline.Observer signature so it can subscribe to a machine.
func (b *SnapshotBus) Publish(s pipeline.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		b.logger.Error("SnapshotBus", "Failed to marshal snapshot", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("version", fmt.Sprintf("%d", s.Version))
	if err := b.pubSub.Publish(SnapshotTopic, msg); err != nil {
		b.logger.Warn("SnapshotBus", "Failed to publish snapshot", map[string]interface{}{"error": err.Error()})
	}
}

// Consume delivers snapshots to handler until ctx is done.
func (b *SnapshotBus) Consume(ctx context.Context, handler pipeline.Observer) error {
	messages, err := b.pubSub.Subscribe(ctx, SnapshotTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", SnapshotTopic, err)
	}

	latest := pipeline.LatestOnly(handler)
	go func() {
		for msg := range messages {
			var s pipeline.Snapshot
			if err := json.Unmarshal(msg.Payload, &s); err != nil {
				b.logger.Error("SnapshotBus", "Failed to unmarshal snapshot", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			latest(s)
			msg.Ack()
		}
	}()
	return nil
}

// EventPublisher is implemented by *nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// SnapshotRelay forwards bus snapshots to the external event bus so other
// processes can watch the pipeline.
type SnapshotRelay struct {
	bus       *SnapshotBus
	publisher EventPublisher
	timeout   time.Duration
	logger    logger.ILogger
}

func NewSnapshotRelay(bus *SnapshotBus, publisher EventPublisher, log logger.ILogger) *SnapshotRelay {
	return &SnapshotRelay{
		bus:       bus,
		publisher: publisher,
		timeout:   5 * time.Second,
		logger:    log,
	}
}

func (r *SnapshotRelay) Start(ctx context.Context) error {
	return r.bus.Consume(ctx, func(s pipeline.Snapshot) {
		r.forward(ctx, s)
	})
}

func (r *SnapshotRelay) forward(ctx context.Context, s pipeline.Snapshot) {
	event, err := SnapshotEvent(s)
	if err != nil {
		r.logger.Error("SnapshotRelay", "Failed to build event", map[string]interface{}{"error": err.Error()})
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, event); err != nil {
		r.logger.Warn("SnapshotRelay", "Failed to relay snapshot", map[string]interface{}{"version": s.Version, "error": err.Error()})
	}
}

// SnapshotEvent wraps a snapshot as an event whose payload is the snapshot's
// JSON object.
func SnapshotEvent(s pipeline.Snapshot) (events.BaseEvent, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return events.BaseEvent{}, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return events.BaseEvent{}, err
	}
	return events.BaseEvent{Type: SnapshotEventType, Data: data, OccurredAt: time.Now()}, nil
}

// SnapshotFromEvent is the inverse of SnapshotEvent.
func SnapshotFromEvent(event events.Event) (pipeline.Snapshot, error) {
	var s pipeline.Snapshot
	raw, err := json.Marshal(event.Payload())
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
