package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type latestValue struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Platform  string `json:"platform"`
	Timestamp string `json:"timestamp"`
}

func latestKey(phone string) string {
	return fmt.Sprintf("code:latest:%s", phone)
}

func (c *RedisCache) GetLatest(ctx context.Context, phone string) (*model.Message, error) {
	raw, err := c.rdb.Get(ctx, latestKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var v latestValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode cached code for %s: %w", phone, err)
	}

	code := v.Code
	return &model.Message{
		ID:            v.ID,
		Phone:         phone,
		Timestamp:     v.Timestamp,
		ExtractedCode: &code,
		Platform:      model.Platform(v.Platform),
	}, nil
}

func (c *RedisCache) SetLatest(ctx context.Context, m model.Message) error {
	if !m.HasCode() {
		return errors.New("message has no code")
	}

	b, err := json.Marshal(latestValue{
		ID:        m.ID,
		Code:      *m.ExtractedCode,
		Platform:  string(m.Platform),
		Timestamp: m.Timestamp,
	})
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, latestKey(m.Phone), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, phone string) error {
	return c.rdb.Del(ctx, latestKey(phone)).Err()
}
