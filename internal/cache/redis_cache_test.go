package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisCache(rdb, ttl)
}

func codedMessage(phone, code string) model.Message {
	return model.Message{
		ID:            7,
		Phone:         phone,
		Message:       "Your code is " + code,
		Timestamp:     "2026-02-02T18:00:00Z",
		ExtractedCode: &code,
		Platform:      model.Instagram,
	}
}

func TestRedisCache_SetLatest_StoresWithTTL(t *testing.T) {
	t.Parallel()

	mr, cache := newTestCache(t, 10*time.Second)
	ctx := context.Background()

	if err := cache.SetLatest(ctx, codedMessage("+15551234567", "482913")); err != nil {
		t.Fatalf("SetLatest() error: %v", err)
	}

	key := "code:latest:+15551234567"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got latestValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.Code != "482913" || got.Platform != "instagram" || got.ID != 7 {
		t.Fatalf("unexpected cached value: %+v", got)
	}
}

func TestRedisCache_GetLatest_RoundTrip(t *testing.T) {
	t.Parallel()

	_, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.SetLatest(ctx, codedMessage("+1555", "1234")); err != nil {
		t.Fatalf("SetLatest() error: %v", err)
	}

	got, err := cache.GetLatest(ctx, "+1555")
	if err != nil {
		t.Fatalf("GetLatest() error: %v", err)
	}
	if got.Phone != "+1555" || *got.ExtractedCode != "1234" || got.Timestamp != "2026-02-02T18:00:00Z" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestRedisCache_GetLatest_Miss(t *testing.T) {
	t.Parallel()

	_, cache := newTestCache(t, time.Minute)

	_, err := cache.GetLatest(context.Background(), "+1000")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestRedisCache_Expires(t *testing.T) {
	t.Parallel()

	mr, cache := newTestCache(t, time.Second)
	ctx := context.Background()

	if err := cache.SetLatest(ctx, codedMessage("+1555", "1234")); err != nil {
		t.Fatalf("SetLatest() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := cache.GetLatest(ctx, "+1555"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestRedisCache_Invalidate(t *testing.T) {
	t.Parallel()

	mr, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.SetLatest(ctx, codedMessage("+1555", "1234")); err != nil {
		t.Fatalf("SetLatest() error: %v", err)
	}
	if err := cache.Invalidate(ctx, "+1555"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if mr.Exists("code:latest:+1555") {
		t.Fatalf("expected key to be deleted")
	}

	// deleting a missing key is fine
	if err := cache.Invalidate(ctx, "+1555"); err != nil {
		t.Fatalf("second Invalidate() error: %v", err)
	}
}

func TestRedisCache_SetLatest_RequiresCode(t *testing.T) {
	t.Parallel()

	_, cache := newTestCache(t, time.Minute)

	err := cache.SetLatest(context.Background(), model.Message{Phone: "+1555"})
	if err == nil {
		t.Fatalf("expected error for message without code")
	}
}

func TestRedisCache_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, cache := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.SetLatest(ctx, codedMessage("+1555", "1234")); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
