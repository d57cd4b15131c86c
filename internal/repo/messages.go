package repo

import (
	"context"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

type MessageRepository interface {
	Insert(ctx context.Context, m model.Message) (int64, error)
	LatestCode(ctx context.Context, phone string) (*model.Message, error)
	ConsumeCode(ctx context.Context, phone string, platform model.Platform) (*model.Message, error)
	RecentByPhone(ctx context.Context, phone string, limit int) ([]model.Message, error)
	Recent(ctx context.Context, limit int) ([]model.Message, error)
	CountSince(ctx context.Context, cutoff string) (int64, error)
	CountTotal(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
