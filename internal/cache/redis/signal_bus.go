package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// DefaultStreamMaxLen is the approximate maximum length of a stream, enforced
// via XADD MAXLEN ~.
const DefaultStreamMaxLen int64 = 10000

// Default names for the ledger event stream and its live channel.
const (
	DefaultEventStream  = "league:events"
	DefaultEventChannel = "league:events:live"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub for ephemeral
// messaging and Redis Streams for durable, ordered delivery.
type SignalBus struct {
	c      *Client
	rdb    *redis.Client
	maxLen int64
}

// NewSignalBus creates a SignalBus backed by the given Client. A
// non-positive maxLen selects DefaultStreamMaxLen.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &SignalBus{c: c, rdb: c.Underlying(), maxLen: maxLen}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, sb.c.Key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a Redis stream, trimming it to roughly
// maxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: sb.c.Key(stream),
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead reads up to count messages from a Redis stream starting after
// lastID. Use "0" or "0-0" as lastID to read from the beginning. It returns
// an empty slice (not an error) when no messages are available.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	args := &redis.XReadArgs{
		Streams: []string{sb.c.Key(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}

	results, err := sb.rdb.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			payload, ok := msg.Values["payload"]
			if !ok {
				continue
			}

			var data []byte
			switch v := payload.(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}

			messages = append(messages, domain.StreamMessage{
				ID:      msg.ID,
				Payload: data,
			})
		}
	}

	return messages, nil
}

// EventPublisher implements domain.EventSink by appending each ledger event
// to a stream and announcing it on a Pub/Sub channel.
type EventPublisher struct {
	bus     domain.SignalBus
	stream  string
	channel string
}

// NewEventPublisher creates an EventPublisher. An empty channel disables the
// Pub/Sub announcement.
func NewEventPublisher(bus domain.SignalBus, stream, channel string) *EventPublisher {
	return &EventPublisher{bus: bus, stream: stream, channel: channel}
}

// Publish writes events in order. It stops at the first failure.
func (p *EventPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("redis: marshal event %s: %w", ev.Type, err)
		}
		if err := p.bus.StreamAppend(ctx, p.stream, payload); err != nil {
			return err
		}
		if p.channel == "" {
			continue
		}
		if err := p.bus.Publish(ctx, p.channel, payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvents decodes up to count events from the stream after lastID and
// returns the id to resume from.
func (p *EventPublisher) ReadEvents(ctx context.Context, lastID string, count int) ([]domain.Event, string, error) {
	msgs, err := p.bus.StreamRead(ctx, p.stream, lastID, count)
	if err != nil {
		return nil, lastID, err
	}
	events := make([]domain.Event, 0, len(msgs))
	next := lastID
	for _, m := range msgs {
		next = m.ID
		var ev domain.Event
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			return events, next, fmt.Errorf("redis: decode event %s: %w", m.ID, err)
		}
		events = append(events, ev)
	}
	return events, next, nil
}

// Compile-time interface checks.
var (
	_ domain.SignalBus = (*SignalBus)(nil)
	_ domain.EventSink = (*EventPublisher)(nil)
)
