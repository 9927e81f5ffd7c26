package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	errs "github.com/techagentng/collabhub/errors"
)

const redisChannelPrefix = "collabhub:"

// RedisBroker fans deltas out through Redis pub/sub so every instance behind a
// load balancer sees every commit.
type RedisBroker struct {
	client *redis.Client
	buffer int
}

// NewRedisBroker connects to redisURL and verifies the connection.
func NewRedisBroker(ctx context.Context, redisURL string, buffer int) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if buffer <= 0 {
		buffer = 128
	}
	return &RedisBroker{client: client, buffer: buffer}, nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, delta Delta) error {
	data, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+topic, data).Err(); err != nil {
		return errs.Wrap(errs.ErrUnavailable, "publish %s: %v", topic, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Feed, error) {
	ps := b.client.Subscribe(ctx, redisChannelPrefix+topic)
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errs.Wrap(errs.ErrUnavailable, "subscribe %s: %v", topic, err)
	}

	f := &redisFeed{
		ps:   ps,
		ch:   make(chan Delta, b.buffer),
		stop: make(chan struct{}),
	}
	go f.pump(topic, ps.ChannelWithSubscriptions(redis.WithChannelSize(b.buffer)))
	return f, nil
}

type redisFeed struct {
	ps   *redis.PubSub
	ch   chan Delta
	stop chan struct{}
	once sync.Once
}

func (f *redisFeed) C() <-chan Delta {
	return f.ch
}

func (f *redisFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		err = f.ps.Close()
	})
	return err
}

func (f *redisFeed) pump(topic string, in <-chan interface{}) {
	defer close(f.ch)
	for {
		select {
		case <-f.stop:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			switch m := raw.(type) {
			case *redis.Subscription:
				// go-redis resubscribes on its own after a dropped connection;
				// anything published meanwhile is lost, so end the feed.
				if m.Kind == "subscribe" {
					log.Warn().Str("topic", topic).Msg("redis subscription re-established, forcing resync")
					_ = f.Close()
					return
				}
			case *redis.Message:
				var d Delta
				if err := json.Unmarshal([]byte(m.Payload), &d); err != nil {
					log.Error().Err(err).Str("topic", topic).Msg("dropping undecodable delta")
					continue
				}
				select {
				case f.ch <- d:
				case <-f.stop:
					return
				default:
					log.Warn().Str("topic", topic).Msg("subscriber buffer full, forcing resync")
					_ = f.Close()
					return
				}
			}
		}
	}
}
