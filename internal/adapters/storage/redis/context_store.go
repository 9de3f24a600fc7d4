// Package redis implements the context store on Redis with one key per
// fact, so TTLs refresh independently.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safirlabs/safir-agent/internal/domain"
)

const keyPrefix = "context:"

// ContextStore stores each fact under context:<session>:<field> via
// SETEX. Expiry is Redis-native; Get only sees live keys.
type ContextStore struct {
	client *redis.Client
}

// NewContextStore connects using a redis URL
// (redis://[:password@]host:port/db).
func NewContextStore(url string) (*ContextStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &ContextStore{client: redis.NewClient(opts)}, nil
}

// NewContextStoreFromClient wraps an existing client (tests).
func NewContextStoreFromClient(client *redis.Client) *ContextStore {
	return &ContextStore{client: client}
}

// Ping verifies connectivity.
func (s *ContextStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *ContextStore) Close() error { return s.client.Close() }

func fieldKey(sessionID domain.SessionID, field string) string {
	return keyPrefix + string(sessionID) + ":" + field
}

// Merge writes each update with its own SETEX, refreshing only the
// written keys' TTLs.
func (s *ContextStore) Merge(ctx context.Context, sessionID domain.SessionID, updates map[string]domain.FieldValue, ttl time.Duration) error {
	if len(updates) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for field, value := range updates {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", field, err)
		}
		pipe.SetEx(ctx, fieldKey(sessionID, field), payload, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("merge context: %w", err)
	}
	return nil
}

// Get scans the session's keys and assembles the live facts.
func (s *ContextStore) Get(ctx context.Context, sessionID domain.SessionID) (map[string]domain.FieldValue, error) {
	pattern := keyPrefix + string(sessionID) + ":*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan context keys: %w", err)
	}

	out := make(map[string]domain.FieldValue, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read context keys: %w", err)
	}
	prefix := keyPrefix + string(sessionID) + ":"
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var value domain.FieldValue
		if err := json.Unmarshal([]byte(str), &value); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", keys[i], err)
		}
		out[strings.TrimPrefix(keys[i], prefix)] = value
	}
	return out, nil
}

// Delete removes every fact of the session.
func (s *ContextStore) Delete(ctx context.Context, sessionID domain.SessionID) error {
	pattern := keyPrefix + string(sessionID) + ":*"

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan context keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete context keys: %w", err)
	}
	return nil
}
