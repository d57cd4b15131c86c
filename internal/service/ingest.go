package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/sms-webhook/internal/cache"
	"github.com/LeventeLantos/sms-webhook/internal/extract"
	"github.com/LeventeLantos/sms-webhook/internal/metrics"
	"github.com/LeventeLantos/sms-webhook/internal/model"
	"github.com/LeventeLantos/sms-webhook/internal/repo"
)

// Receipt describes a stored webhook.
type Receipt struct {
	ID       int64
	Phone    string
	Platform model.Platform
	Code     *string
	Strategy string
}

type Health struct {
	Messages24h int64
	Total       int64
}

type Service struct {
	extractor *extract.Extractor
	repo      repo.MessageRepository
	cache     cache.CodeCache
	log       *slog.Logger
	now       func() time.Time
}

func New(ex *extract.Extractor, r repo.MessageRepository) *Service {
	return &Service{
		extractor: ex,
		repo:      r,
		log:       slog.Default(),
		now:       time.Now,
	}
}

// WithCache puts a latest code cache in front of LatestCode.
func (s *Service) WithCache(c cache.CodeCache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.log = l
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Receive parses a webhook body and stores the message. A body without a
// phone and a message returns extract.ErrNoPhoneOrMessage and stores nothing.
func (s *Service) Receive(ctx context.Context, body map[string]any) (Receipt, error) {
	in, strategy, err := s.extractor.Parse(body)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("unparsed").Inc()
		s.log.Warn("webhook payload not recognized", "error", err, "payload", body)
		return Receipt{}, err
	}

	code := extract.ExtractCode(in.Text)
	platform := extract.DetectPlatform(in.Text)

	id, err := s.repo.Insert(ctx, model.Message{
		Phone:         in.Phone,
		Message:       in.Text,
		Timestamp:     in.ReceivedAt,
		ExtractedCode: code,
		Platform:      platform,
	})
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("failed").Inc()
		s.log.Error("store sms failed",
			"error", err,
			"phone", in.Phone,
			"message", in.Text,
			"received_at", in.ReceivedAt,
		)
		return Receipt{}, fmt.Errorf("store message: %w", err)
	}

	if code != nil {
		metrics.CodesExtracted.WithLabelValues(string(platform)).Inc()
		s.invalidate(ctx, in.Phone)
	}
	metrics.WebhooksReceived.WithLabelValues("received").Inc()

	s.log.Info("stored sms",
		"id", id,
		"phone", in.Phone,
		"platform", platform,
		"code_extracted", code != nil,
		"strategy", strategy,
	)

	return Receipt{
		ID:       id,
		Phone:    in.Phone,
		Platform: platform,
		Code:     code,
		Strategy: strategy,
	}, nil
}

// LatestCode never marks anything used. Cache failures fall through to the store.
func (s *Service) LatestCode(ctx context.Context, phone string) (*model.Message, error) {
	if s.cache != nil {
		m, err := s.cache.GetLatest(ctx, phone)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("latest code cache read failed", "error", err, "phone", phone)
		}
	}

	m, err := s.repo.LatestCode(ctx, phone)
	if err != nil {
		s.log.Error("latest code lookup failed", "error", err, "phone", phone)
		return nil, err
	}

	if m != nil && s.cache != nil {
		if err := s.cache.SetLatest(ctx, *m); err != nil {
			s.log.Warn("latest code cache write failed", "error", err, "phone", phone)
		}
	}
	return m, nil
}

func (s *Service) ConsumeCode(ctx context.Context, phone string, platform model.Platform) (*model.Message, error) {
	m, err := s.repo.ConsumeCode(ctx, phone, platform)
	if err != nil {
		s.log.Error("consume code failed", "error", err, "phone", phone, "platform", platform)
		return nil, err
	}
	if m != nil {
		metrics.CodesConsumed.WithLabelValues(string(platform)).Inc()
		s.log.Info("code consumed", "id", m.ID, "phone", phone, "platform", platform)
	}
	return m, nil
}

func (s *Service) Messages(ctx context.Context, phone string, limit int) ([]model.Message, error) {
	msgs, err := s.repo.RecentByPhone(ctx, phone, limit)
	if err != nil {
		s.log.Error("list messages failed", "error", err, "phone", phone, "limit", limit)
		return nil, err
	}
	return msgs, nil
}

func (s *Service) AllMessages(ctx context.Context, limit int) ([]model.Message, error) {
	msgs, err := s.repo.Recent(ctx, limit)
	if err != nil {
		s.log.Error("list all messages failed", "error", err, "limit", limit)
		return nil, err
	}
	return msgs, nil
}

// Health counts messages newer than 24h before now, compared as stored strings.
func (s *Service) Health(ctx context.Context) (Health, error) {
	if err := s.repo.Ping(ctx); err != nil {
		return Health{}, fmt.Errorf("database unreachable: %w", err)
	}

	cutoff := extract.FormatTimestamp(s.now().Add(-24 * time.Hour))
	recent, err := s.repo.CountSince(ctx, cutoff)
	if err != nil {
		return Health{}, err
	}
	total, err := s.repo.CountTotal(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{Messages24h: recent, Total: total}, nil
}

func (s *Service) invalidate(ctx context.Context, phone string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, phone); err != nil {
		s.log.Warn("latest code cache invalidate failed", "error", err, "phone", phone)
	}
}
