package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Clear reports whether a record existed so callers can tell a first logout
// from a repeated one.
const clearRecordScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var clearRecordLua = redis.NewScript(clearRecordScript)

// RedisStore keeps one client's record as a JSON blob at prefix:clientID.
// A zero ttl stores the blob without expiry.
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	clientID string
	ttl      time.Duration
}

// NewRedisStore creates a [RedisStore] backed by the given Redis client.
func NewRedisStore(redis redis.UniversalClient, prefix, clientID string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "dashauth:client"
	}
	return &RedisStore{
		redis:    redis,
		prefix:   prefix,
		clientID: clientID,
		ttl:      ttl,
	}
}

// ForClient returns a store sharing the connection and settings but keyed to
// another client.
func (s *RedisStore) ForClient(clientID string) *RedisStore {
	cp := *s
	cp.clientID = clientID
	return &cp
}

func (s *RedisStore) key() string {
	return s.prefix + ":" + s.clientID
}

// Load reads and decodes the record. A missing key is [ErrNoSession].
func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNoSession
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec, nil
}

// Save overwrites the record and resets its TTL.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear deletes the record. Clearing a missing record is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.ClearExisting(ctx)
	return err
}

// ClearExisting deletes the record and reports whether one was present.
func (s *RedisStore) ClearExisting(ctx context.Context) (bool, error) {
	existed, err := clearRecordLua.Run(ctx, s.redis, []string{s.key()}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return existed == 1, nil
}
