package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local record = cjson.decode(raw)
if record.code ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore shares pending codes between instances. Keys expire on their own
// once the ttl has elapsed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (s *RedisStore) Get(ctx context.Context, email string) (Record, bool, error) {
	value, err := s.client.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var record Record
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

func (s *RedisStore) Put(ctx context.Context, email string, record Record) error {
	remaining := s.ttl - s.now().Sub(record.CreatedAt)
	if remaining <= 0 {
		return s.Delete(ctx, email)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, otpKey(email), payload, remaining).Err()
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, otpKey(email)).Err()
}

func (s *RedisStore) Consume(ctx context.Context, email, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{otpKey(email)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", email)
}
