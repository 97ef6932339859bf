package bridge

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Sink receives encoded frames.
type Sink interface {
	Send(ctx context.Context, channel string, data []byte) error
}

// SinkFunc is an adapter to use a plain function as a Sink.
type SinkFunc func(ctx context.Context, channel string, data []byte) error

func (f SinkFunc) Send(ctx context.Context, channel string, data []byte) error {
	return f(ctx, channel, data)
}

// DefaultChannelPrefix is prepended to event names by RedisSink.
const DefaultChannelPrefix = "runner:events:"

// RedisSink publishes frames on Redis pub/sub channels
// "{prefix}{event name}". The caller owns the client lifecycle.
type RedisSink struct {
	client redis.Cmdable
	prefix string
}

// RedisSinkOption configures a RedisSink.
type RedisSinkOption func(*RedisSink)

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(prefix string) RedisSinkOption {
	return func(s *RedisSink) { s.prefix = prefix }
}

// NewRedisSink creates a sink publishing through client.
func NewRedisSink(client redis.Cmdable, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{client: client, prefix: DefaultChannelPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Channel returns the pub/sub channel used for an event name.
func (s *RedisSink) Channel(name string) string { return s.prefix + name }

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, channel string, data []byte) error {
	if err := s.client.Publish(ctx, s.Channel(channel), data).Err(); err != nil {
		return fmt.Errorf("bridge: publish %s: %w", channel, err)
	}
	return nil
}
