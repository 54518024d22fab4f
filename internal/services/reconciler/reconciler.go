// Package reconciler приводит фактическое членство в каналах в
// соответствие журналу подписок: периодический проход по истёкшим
// подпискам и стартовая сверка всех пар.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/metrics"
	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

type Repository interface {
	ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	ListMembershipChecks(ctx context.Context) ([]*models.MembershipCheck, error)
	IsWhitelisted(ctx context.Context, telegramID int64, channel string) (bool, error)
	SetBanned(ctx context.Context, telegramID int64, channel string, banned bool) error
	MarkVerified(ctx context.Context, telegramID int64, channel string) error
}

type SubscriptionExpirer interface {
	Expire(ctx context.Context, telegramID int64, channel string) error
}

type ChannelRemover interface {
	Remove(ctx context.Context, telegramID int64, channel string) error
	Notify(ctx context.Context, telegramID int64, text string) error
}

type Service struct {
	repo Repository
	subs SubscriptionExpirer
	tg   ChannelRemover
	log  *slog.Logger
}

func New(repo Repository, subs SubscriptionExpirer, tg ChannelRemover, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		subs: subs,
		tg:   tg,
		log:  log,
	}
}

// RunExpirySweep обрабатывает активные подписки с истёкшей датой окончания
// в порядке возрастания end_date. Ошибка на одной паре логируется и не
// прерывает проход. Возвращает число обработанных пар.
func (s *Service) RunExpirySweep(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := s.repo.ListExpiredActive(ctx, now)
	if err != nil {
		s.log.Error("failed to list expired subscriptions", sl.Err(err))
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	s.log.Info("expiry sweep started", slog.Int("count", len(expired)))

	processed := 0
	for _, sub := range expired {
		log := s.log.With(
			slog.Int64("telegram_id", sub.TelegramID),
			slog.String("channel", sub.Channel))

		if err := s.subs.Expire(ctx, sub.TelegramID, sub.Channel); err != nil {
			log.Error("failed to deactivate subscription", sl.Err(err))
			continue
		}
		metrics.SubscriptionsExpiredTotal.WithLabelValues(sub.Channel).Inc()

		whitelisted, err := s.repo.IsWhitelisted(ctx, sub.TelegramID, sub.Channel)
		if err != nil {
			log.Error("failed to check whitelist", sl.Err(err))
			continue
		}

		if whitelisted {
			// Защищённый пользователь остаётся в канале.
			if err := s.repo.SetBanned(ctx, sub.TelegramID, sub.Channel, false); err != nil {
				log.Error("failed to record membership", sl.Err(err))
			}
			processed++
			continue
		}

		if err := s.tg.Remove(ctx, sub.TelegramID, sub.Channel); err != nil {
			log.Error("failed to remove from channel", sl.Err(err))
			metrics.MembershipRemovalFailuresTotal.WithLabelValues(sub.Channel).Inc()
		}
		if err := s.repo.SetBanned(ctx, sub.TelegramID, sub.Channel, true); err != nil {
			log.Error("failed to record ban", sl.Err(err))
		}

		text := "⏳ Срок вашей подписки истёк, доступ к каналу закрыт. Продлите подписку, чтобы вернуться."
		if err := s.tg.Notify(ctx, sub.TelegramID, text); err != nil {
			log.Warn("failed to send expiry message", sl.Err(err))
		}
		processed++
	}

	s.log.Info("expiry sweep finished", slog.Int("processed", processed))
	return processed, nil
}

// RunStartupVerification сверяет зафиксированное членство каждой пары,
// когда-либо имевшей подписку, с тем, каким оно должно быть:
// право на членство даёт действующая подписка или whitelist.
// Имеющий право, но забаненный — разбанивается в хранилище, чтобы
// следующее приглашение прошло. Потерявший право, но не забаненный —
// удаляется из канала. Остальным обновляется отметка сверки.
func (s *Service) RunStartupVerification(ctx context.Context) error {
	checks, err := s.repo.ListMembershipChecks(ctx)
	if err != nil {
		s.log.Error("failed to list membership checks", sl.Err(err))
		return err
	}
	s.log.Info("startup verification started", slog.Int("count", len(checks)))

	now := time.Now()
	for _, check := range checks {
		log := s.log.With(
			slog.Int64("telegram_id", check.TelegramID),
			slog.String("channel", check.Channel))

		shouldBeMember := (check.IsActive && check.EndDate.After(now)) || check.IsWhitelisted

		switch {
		case shouldBeMember && check.IsBanned:
			if err := s.repo.SetBanned(ctx, check.TelegramID, check.Channel, false); err != nil {
				log.Error("failed to unban membership record", sl.Err(err))
				continue
			}
			log.Info("membership restored during verification")

		case !shouldBeMember && !check.IsBanned:
			if err := s.tg.Remove(ctx, check.TelegramID, check.Channel); err != nil {
				log.Error("failed to remove from channel", sl.Err(err))
				metrics.MembershipRemovalFailuresTotal.WithLabelValues(check.Channel).Inc()
			}
			if err := s.repo.SetBanned(ctx, check.TelegramID, check.Channel, true); err != nil {
				log.Error("failed to record ban", sl.Err(err))
				continue
			}
			log.Info("stale membership revoked during verification")

		default:
			if err := s.repo.MarkVerified(ctx, check.TelegramID, check.Channel); err != nil {
				log.Error("failed to refresh verification mark", sl.Err(err))
			}
		}
	}

	s.log.Info("startup verification finished")
	return nil
}

// Start запускает периодический проход по истёкшим подпискам: один раз
// сразу, затем каждые interval. Блокируется до отмены контекста.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.RunExpirySweep(ctx); err != nil {
		s.log.Error("expiry sweep failed", sl.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunExpirySweep(ctx); err != nil {
				s.log.Error("expiry sweep failed", sl.Err(err))
			}
		}
	}
}
