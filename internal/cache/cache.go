package cache

import (
	"context"
	"errors"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

var ErrMiss = errors.New("cache miss")

// CodeCache holds the newest coded message per phone. Get returns ErrMiss
// when nothing is cached.
type CodeCache interface {
	GetLatest(ctx context.Context, phone string) (*model.Message, error)
	SetLatest(ctx context.Context, m model.Message) error
	Invalidate(ctx context.Context, phone string) error
}
