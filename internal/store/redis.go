package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

const (
	// messagesKey is the sorted set holding every message, scored by timestamp.
	messagesKey = "echochamber:messages"
	// changesChannel carries a notification after every write.
	changesChannel = "echochamber:messages:changed"
)

// RedisStore keeps messages in a Redis sorted set and announces changes over
// Redis pub/sub, so every server instance sharing the Redis sees them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Name returns "redis".
func (s *RedisStore) Name() string { return "redis" }

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Insert stores a message. The timestamp comes from the Redis server clock.
func (s *RedisStore) Insert(ctx context.Context, author, text string) (*models.Message, error) {
	defer observe(s.Name(), "insert", time.Now())

	msg, err := newRemoteMessage(author, text)
	if err != nil {
		return nil, err
	}

	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return nil, err
	}
	msg.Timestamp = now.UnixMilli()

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, messagesKey, redis.Z{
			Score:  float64(msg.Timestamp),
			Member: string(data),
		})
		pipe.Publish(ctx, changesChannel, msg.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// DeleteAll drops the whole sorted set in one transaction.
func (s *RedisStore) DeleteAll(ctx context.Context) (int64, error) {
	defer observe(s.Name(), "delete_all", time.Now())

	var count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.ZCard(ctx, messagesKey)
		pipe.Del(ctx, messagesKey)
		pipe.Publish(ctx, changesChannel, "*")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count.Val(), nil
}

// Snapshot returns all messages ordered by timestamp.
func (s *RedisStore) Snapshot(ctx context.Context) ([]models.Message, error) {
	defer observe(s.Name(), "snapshot", time.Now())

	results, err := s.client.ZRange(ctx, messagesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Count returns the number of stored messages.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, messagesKey).Result()
}

// Subscribe listens on the change channel and re-reads the sorted set after
// every notification. Receive errors are reported through onError while the
// client reconnects, and the set is re-read once the channel is subscribed
// again.
func (s *RedisStore) Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, changesChannel)

	// Wait for the subscription to be confirmed so no change is missed
	// between the first snapshot and the first notification.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	lctx, cancel := context.WithCancel(ctx)
	changes := make(chan struct{}, 1)
	failures := make(chan error)

	go func() {
		defer close(changes)
		for {
			msg, err := pubsub.Receive(lctx)
			if err != nil {
				if lctx.Err() != nil {
					return
				}
				report(lctx, failures, err)
				select {
				case <-lctx.Done():
					return
				case <-time.After(relistenDelay):
				}
				continue
			}

			switch msg.(type) {
			case *redis.Message:
				signal(changes)
			case *redis.Subscription:
				// A resubscribe after reconnecting; notifications may
				// have been missed while the connection was down.
				signal(changes)
			}
		}
	}()

	return watch(lctx, changes, failures, s.Snapshot, onSnapshot, onError, func() {
		cancel()
		_ = pubsub.Close()
	}), nil
}
