package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/farmgate/ports"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix     = "farmgate:"
	defaultMaxRetries = 8
	scanBatchSize     = 200
)

// RedisStore is a Redis implementation of the DocumentStore interface.
// Updates use WATCH/MULTI/EXEC so that concurrent writers of one key never
// both commit.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     defaultPrefix,
		maxRetries: defaultMaxRetries,
	}
}

// Connect parses redisURL, creates a client and checks the connection
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(collection, id string) string {
	return s.prefix + collection + ":" + id
}

func (s *RedisStore) collectionPrefix(collection string) string {
	return s.prefix + collection + ":"
}

func redisTTL(ttl time.Duration) time.Duration {
	if ttl == ports.KeepTTL {
		return redis.KeepTTL
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Get retrieves a document from Redis
func (s *RedisStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return data, nil
}

// Set stores a document with an optional expiration
func (s *RedisStore) Set(ctx context.Context, collection, id string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(collection, id), data, redisTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Update performs an optimistic transaction on a single key. The transaction
// is retried when another client modified the key between WATCH and EXEC.
func (s *RedisStore) Update(ctx context.Context, collection, id string, ttl time.Duration, fn ports.UpdateFunc) error {
	key := s.key(collection, id)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var fnErr error

		txf := func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				current = nil
			} else if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				fnErr = err
				return err
			}
			if next == nil {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, redisTTL(ttl))
				return nil
			})
			return err
		}

		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("failed to update document: %w", err)
		}
	}

	return fmt.Errorf("update of %s gave up after %d attempts: %w", key, s.maxRetries, ports.ErrConflict)
}

// DeleteWhere scans a collection and deletes matching documents. Each delete
// is guarded by WATCH so a document rewritten during the scan is kept.
func (s *RedisStore) DeleteWhere(ctx context.Context, collection string, match ports.MatchFunc) (int, error) {
	prefix := s.collectionPrefix(collection)
	deleted := 0
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan collection: %w", err)
		}

		for _, key := range keys {
			removed, err := s.deleteIf(ctx, key, strings.TrimPrefix(key, prefix), match)
			if err != nil {
				return deleted, err
			}
			if removed {
				deleted++
			}
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *RedisStore) deleteIf(ctx context.Context, key, id string, match ports.MatchFunc) (bool, error) {
	removed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		} else if err != nil {
			return err
		}
		if !match(id, data) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return removed, nil
}

// Client returns the Redis client.
// This is used by the main application to share the client with the Watermill publisher.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
