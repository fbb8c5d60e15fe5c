package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpsertRetries = 10

// RedisStore keeps entries as JSON values in one Redis hash, field = slug.
// Upserts use WATCH/MULTI so concurrent writers to the same slug retry
// instead of losing the original created_at.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore creates a store on the hash at key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (s *RedisStore) Upsert(ctx context.Context, e Entry) (Entry, error) {
	var merged Entry

	txf := func(tx *redis.Tx) error {
		var existing *Entry
		raw, err := tx.HGet(ctx, s.key, e.Slug).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var prev Entry
			if jsonErr := json.Unmarshal([]byte(raw), &prev); jsonErr != nil {
				return fmt.Errorf("decode entry %s: %w", e.Slug, jsonErr)
			}
			existing = &prev
		}

		merged = merge(existing, e, s.now())
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Slug, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, e.Slug, data)
			return nil
		})
		return err
	}

	for range maxUpsertRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Entry{}, fmt.Errorf("upsert registry entry %s: %w", e.Slug, err)
		}
		return merged, nil
	}
	return Entry{}, fmt.Errorf("upsert registry entry %s: %w", e.Slug, redis.TxFailedErr)
}

func (s *RedisStore) Get(ctx context.Context, slug string) (Entry, error) {
	raw, err := s.client.HGet(ctx, s.key, slug).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get registry entry %s: %w", slug, err)
	}

	var e Entry
	if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr != nil {
		return Entry{}, fmt.Errorf("decode entry %s: %w", slug, jsonErr)
	}
	return e, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	entries := make([]Entry, 0, len(all))
	for slug, raw := range all {
		var e Entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr != nil {
			return nil, fmt.Errorf("decode entry %s: %w", slug, jsonErr)
		}
		entries = append(entries, e)
	}
	sortNewestFirst(entries)
	return entries, nil
}

func (s *RedisStore) Delete(ctx context.Context, slug string) error {
	n, err := s.client.HDel(ctx, s.key, slug).Result()
	if err != nil {
		return fmt.Errorf("delete registry entry %s: %w", slug, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return nil
}

func (s *RedisStore) DeleteIfInbox(ctx context.Context, slug string, inboxID int64) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.key, slug).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		if err != nil {
			return err
		}

		var e Entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr != nil {
			return fmt.Errorf("decode entry %s: %w", slug, jsonErr)
		}
		if e.Chatwoot.InboxID != inboxID {
			return fmt.Errorf("%w: %s now uses inbox %d", ErrInboxChanged, slug, e.Chatwoot.InboxID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.key, slug)
			return nil
		})
		return err
	}

	for range maxUpsertRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInboxChanged) {
			return fmt.Errorf("delete registry entry %s: %w", slug, err)
		}
		return err
	}
	return fmt.Errorf("delete registry entry %s: %w", slug, redis.TxFailedErr)
}
