package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as one Redis hash with the fields
// refreshCredential and accessCredential.
//
// Writes run inside MULTI/EXEC together with the TTL refresh, so readers never
// observe a value without its expiry applied.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	sealer *Sealer
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
//
// A ttl of zero keeps hashes until they are cleared. A nil sealer stores plaintext.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, sealer *Sealer) *RedisStore {
	if prefix == "" {
		prefix = "gg"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		sealer: sealer,
	}
}

// Key returns the Redis key holding the session hash.
func (s *RedisStore) Key(sessionID string) string {
	return s.prefix + ":cred:" + sessionID
}

// Get describes the get operation and its observable behavior.
//
// Get returns ok=false with a nil error when the field is missing and wraps
// Redis failures in ErrStorage.
func (s *RedisStore) Get(ctx context.Context, sessionID string, kind Kind) (string, bool, error) {
	if err := checkArgs(sessionID, kind); err != nil {
		return "", false, err
	}

	raw, err := s.redis.HGet(ctx, s.Key(sessionID), kind.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if raw == "" {
		return "", false, nil
	}

	value, err := s.sealer.open(sessionID, kind, raw)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set describes the set operation and its observable behavior.
//
// An empty value clears the field.
func (s *RedisStore) Set(ctx context.Context, sessionID string, kind Kind, value string) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}
	if value == "" {
		return s.Clear(ctx, sessionID, kind)
	}

	sealed, err := s.sealer.seal(sessionID, kind, value)
	if err != nil {
		return err
	}

	key := s.Key(sessionID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, kind.String(), sealed)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// SetPair describes the setpair operation and its observable behavior.
//
// SetPair replaces the whole hash, so a field omitted by an empty argument is removed.
func (s *RedisStore) SetPair(ctx context.Context, sessionID, refresh, access string) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	fields := make(map[string]any, 2)
	if refresh != "" {
		sealed, err := s.sealer.seal(sessionID, KindRefresh, refresh)
		if err != nil {
			return err
		}
		fields[KindRefresh.String()] = sealed
	}
	if access != "" {
		sealed, err := s.sealer.seal(sessionID, KindAccess, access)
		if err != nil {
			return err
		}
		fields[KindAccess.String()] = sealed
	}

	key := s.Key(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) == 0 {
			return nil
		}
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Clear describes the clear operation and its observable behavior.
func (s *RedisStore) Clear(ctx context.Context, sessionID string, kind Kind) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}
	if err := s.redis.HDel(ctx, s.Key(sessionID), kind.String()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// ClearAll describes the clearall operation and its observable behavior.
func (s *RedisStore) ClearAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	if err := s.redis.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
