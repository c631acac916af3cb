package realtime

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus publishes messages on a redis channel and forwards everything received on it into
// the local hub, so each instance delivers to its own sockets.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, hub *Hub, logger zerolog.Logger) *RedisBus {
	if channel == "" {
		channel = "imports"
	}
	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		logger:  logger.With().Str("component", "redis-bus").Str("channel", channel).Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	return errors.Wrap(b.rdb.Publish(ctx, b.channel, raw).Err(), "redis publish")
}

// Start subscribes and forwards until ctx is cancelled.
func (b *RedisBus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis subscribe")
	}
	b.logger.Info().Msg("Redis bus subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Redis bus stopped")
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.forward([]byte(m.Payload))
		}
	}
}

func (b *RedisBus) forward(payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Bad payload on redis channel")
		return
	}
	b.hub.Broadcast(msg)
}
