package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"folios/internal/models"
)

// ChannelPrefix namespaces the Redis pub/sub channels, one per owner.
const ChannelPrefix = "folios:feed:"

type RedisOptions struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // initial wait between attempts, doubled up to MaxWait
	MaxWait        time.Duration
}

// Connect returns a client once Redis answers PING, retrying with
// exponential backoff until ConnectTimeout elapses.
func Connect(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 10 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	wait := opts.RetryInterval
	for attempt := 1; ; attempt++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Info().Str("addr", opts.Addr).Int("attempts", attempt).Msg("Connected to Redis")
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
			log.Warn().Err(err).Str("addr", opts.Addr).Int("attempt", attempt).Dur("next_retry_in", wait).Msg("Redis connection failed, retrying")
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}

// RedisBroker publishes through Redis so that every server instance sees
// every event. Each instance relays the pattern subscription into its own
// Broadcaster, which serves the local subscribers.
type RedisBroker struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *Broadcaster
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func NewRedisBroker(ctx context.Context, client *redis.Client) (*RedisBroker, error) {
	pubsub := client.PSubscribe(ctx, ChannelPrefix+"*")
	// Wait for the subscription to be confirmed before publishing anything.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to feed channels: %w", err)
	}

	b := &RedisBroker{
		client: client,
		pubsub: pubsub,
		local:  NewBroadcaster(),
		done:   make(chan struct{}),
	}
	go b.relay()
	return b, nil
}

func (b *RedisBroker) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		ownerID, ev, err := decodeMessage(msg.Channel, msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("channel", msg.Channel).Msg("Discarding malformed feed message")
			continue
		}
		_ = b.local.Publish(context.Background(), ownerID, ev)
	}
}

func (b *RedisBroker) Publish(ctx context.Context, ownerID string, ev models.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelPrefix+ownerID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish feed event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, string) {
	return b.local.Subscribe(ctx, ownerID)
}

func (b *RedisBroker) Unsubscribe(ownerID, subID string) {
	b.local.Unsubscribe(ownerID, subID)
}

// Close stops the relay and closes all local subscriptions. The Redis
// client itself is owned by the caller. Close is safe to call repeatedly.
func (b *RedisBroker) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.pubsub.Close()
		<-b.done
		_ = b.local.Close()
	})
	return b.closeErr
}

func decodeMessage(channel, payload string) (string, models.ChangeEvent, error) {
	var ev models.ChangeEvent
	ownerID := strings.TrimPrefix(channel, ChannelPrefix)
	if ownerID == "" || ownerID == channel {
		return "", ev, fmt.Errorf("unexpected channel %q", channel)
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", ev, fmt.Errorf("failed to unmarshal feed event: %w", err)
	}
	switch ev.Kind {
	case models.ChangeInsert, models.ChangeDelete:
	default:
		return "", ev, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ownerID, ev, nil
}
