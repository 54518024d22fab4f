// Package subscription реализует машину состояний подписки: выдача,
// деактивация и проверка валидности пары (пользователь, канал).
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/metrics"
	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

type Repository interface {
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	DeactivateSubscription(ctx context.Context, telegramID int64, channel string) error
	GetActiveSubscription(ctx context.Context, telegramID int64, channel string) (*models.Subscription, bool, error)
	ListUserSubscriptions(ctx context.Context, telegramID int64) ([]*models.Subscription, error)
	HasEverSubscribed(ctx context.Context, telegramID int64, channel string) (bool, error)
}

type Service struct {
	repo      Repository
	log       *slog.Logger
	trialDays int
}

func New(repo Repository, log *slog.Logger, trialDays int) *Service {
	return &Service{
		repo:      repo,
		log:       log,
		trialDays: trialDays,
	}
}

// Grant выдаёт подписку, перезаписывая существующую строку пары новыми
// датами. Первая выдача channel_2 пользователю, никогда не имевшему
// строки channel_1, дополнительно выдаёт бонусный пробный доступ к
// channel_1 — возвращаемый флаг сообщает вызывающему, что бонус выдан
// и нужно отдельное приглашение. Членство в канале здесь не трогается:
// фиксация бана/разбана — забота вызывающего после внешнего действия.
func (s *Service) Grant(ctx context.Context, telegramID int64, channel, method string, start, end time.Time) (bool, error) {
	const op = "services.subscription.Grant"

	bonus := false
	if channel == models.ChannelTwo {
		everHadFirst, err := s.repo.HasEverSubscribed(ctx, telegramID, models.ChannelOne)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		bonus = !everHadFirst
	}

	sub := models.Subscription{
		TelegramID:    telegramID,
		Channel:       channel,
		PaymentMethod: method,
		IsActive:      true,
		StartDate:     start,
		EndDate:       end,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionsGrantedTotal.WithLabelValues(channel, method).Inc()
	s.log.Info("subscription granted",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel),
		slog.String("method", method),
		slog.Time("end_date", end))

	if bonus {
		bonusSub := models.Subscription{
			TelegramID:    telegramID,
			Channel:       models.ChannelOne,
			PaymentMethod: models.MethodFreeTrial,
			IsActive:      true,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, s.trialDays),
		}
		if err := s.repo.UpsertSubscription(ctx, bonusSub); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		metrics.SubscriptionsGrantedTotal.WithLabelValues(models.ChannelOne, models.MethodFreeTrial).Inc()
		s.log.Info("companion bonus granted",
			slog.Int64("telegram_id", telegramID),
			slog.String("channel", models.ChannelOne))
	}

	return bonus, nil
}

// Expire деактивирует подписку. Повторный вызов безопасен.
func (s *Service) Expire(ctx context.Context, telegramID int64, channel string) error {
	const op = "services.subscription.Expire"

	if err := s.repo.DeactivateSubscription(ctx, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription expired",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel))
	return nil
}

// IsValid проверяет, действует ли подписка на момент now: строка активна
// и дата окончания строго позже now.
func (s *Service) IsValid(ctx context.Context, telegramID int64, channel string, now time.Time) (bool, error) {
	const op = "services.subscription.IsValid"

	sub, found, err := s.repo.GetActiveSubscription(ctx, telegramID, channel)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return false, nil
	}
	return sub.EndDate.After(now), nil
}

// List возвращает все подписки пользователя, включая неактивные.
func (s *Service) List(ctx context.Context, telegramID int64) ([]*models.Subscription, error) {
	const op = "services.subscription.List"

	subs, err := s.repo.ListUserSubscriptions(ctx, telegramID)
	if err != nil {
		s.log.Error("failed to list subscriptions", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}
