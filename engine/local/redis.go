package local

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is a durable Storage backed by a Redis database.
type RedisStorage struct {
	client    *redis.Client
	namespace string
}

// NewRedisStorage wraps client; namespace is prepended to every key and may be empty.
func NewRedisStorage(client *redis.Client, namespace string) *RedisStorage {
	return &RedisStorage{client: client, namespace: namespace}
}

func (r *RedisStorage) GetItem(key string) (string, bool, error) {
	v, err := r.client.Get(context.Background(), r.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(key, value string) error {
	return r.client.Set(context.Background(), r.namespace+key, value, 0).Err()
}

func (r *RedisStorage) RemoveItem(key string) (bool, error) {
	n, err := r.client.Del(context.Background(), r.namespace+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisStorage) Keys(prefix string) ([]string, error) {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, globEscape(r.namespace+prefix)+"*", 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	return keys, iter.Err()
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Storage = (*RedisStorage)(nil)
