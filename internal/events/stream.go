package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (p *StreamPublisher) PublishBookingCreated(ctx context.Context, ev BookingCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", TypeBookingCreated, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    TypeBookingCreated,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// StreamConsumer tails the stream with blocking reads. It remembers the last
// delivered entry so a single worker never sees an event twice; events
// published before the worker started are skipped on purpose.
type StreamConsumer struct {
	client *redis.Client
	stream string
	block  time.Duration
	lastID string
}

func NewStreamConsumer(client *redis.Client, stream string, block time.Duration) *StreamConsumer {
	return &StreamConsumer{
		client: client,
		stream: stream,
		block:  block,
		lastID: "$",
	}
}

// Read blocks up to the configured duration and returns whatever arrived.
// A timeout returns an empty batch, not an error.
func (c *StreamConsumer) Read(ctx context.Context) ([]Message, error) {
	res, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{c.stream, c.lastID},
		Count:   64,
		Block:   c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xread %s: %w", c.stream, err)
	}

	var out []Message
	for _, stream := range res {
		for _, m := range stream.Messages {
			msg := Message{ID: m.ID}
			if t, ok := m.Values["type"].(string); ok {
				msg.Type = t
			}
			if p, ok := m.Values["payload"].(string); ok {
				msg.Payload = []byte(p)
			}
			out = append(out, msg)
			c.lastID = m.ID
		}
	}
	return out, nil
}
