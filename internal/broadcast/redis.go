package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisChannel is an endpoint backed by Redis PUBLISH/SUBSCRIBE, for sessions
// spread over several machines that share a Redis instance.
type RedisChannel struct {
	rdb      redis.UniversalClient
	key      string
	sender   string
	logger   zerolog.Logger
	handlers *handlerSet
	pubsub   *redis.PubSub

	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// RedisKey builds the Redis channel name for an origin
func RedisKey(origin, name string) string {
	return fmt.Sprintf("painel:%s:%s", origin, name)
}

// OpenRedis subscribes to key and returns the endpoint once the subscription is
// confirmed by the server.
func OpenRedis(ctx context.Context, rdb redis.UniversalClient, key string, zlog zerolog.Logger) (*RedisChannel, error) {
	pubsub := rdb.Subscribe(ctx, key)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	c := &RedisChannel{
		rdb:      rdb,
		key:      key,
		sender:   uuid.NewString(),
		logger:   zlog.With().Str("channel", key).Logger(),
		handlers: newHandlerSet(),
		pubsub:   pubsub,
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}

	go c.receive()

	return c, nil
}

func (c *RedisChannel) Publish(ctx context.Context, msg Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	payload, err := encodeEnvelope(c.sender, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.key, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(h Handler) (Subscription, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}
	return c.handlers.add(h), nil
}

func (c *RedisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.pubsub.Close()
		<-c.done
	})
	return err
}

func (c *RedisChannel) receive() {
	defer close(c.done)

	for m := range c.pubsub.Channel() {
		env, err := decodeEnvelope([]byte(m.Payload))
		if err != nil {
			c.logger.Debug().Err(err).Msg("Dropping malformed channel message")
			continue
		}
		if env.Sender == c.sender {
			continue
		}
		c.handlers.dispatch(env.Data)
	}
}
