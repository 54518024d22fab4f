// Package reminder реализует напоминания о продлении подписки:
// планирование и периодическую доставку наступивших напоминаний.
package reminder

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
	UpsertReminder(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error
	ListDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	MarkReminderSent(ctx context.Context, telegramID int64, channel string) error
	GetActiveSubscription(ctx context.Context, telegramID int64, channel string) (*models.Subscription, bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

type Service struct {
	repo Repository
	tg   Notifier
	log  *slog.Logger
}

func New(repo Repository, tg Notifier, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		tg:   tg,
		log:  log,
	}
}

// Schedule планирует напоминание. Существующее напоминание пары
// перезаписывается, флаг отправки сбрасывается.
func (s *Service) Schedule(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error {
	const op = "services.reminder.Schedule"

	if err := s.repo.UpsertReminder(ctx, telegramID, channel, remindAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("reminder scheduled",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel),
		slog.Time("remind_at", remindAt))
	return nil
}

// RunSweep доставляет наступившие напоминания. Напоминание помечается
// отправленным только после успешной доставки: при ошибке оно остаётся
// в очереди и будет повторено на следующем проходе, без ограничения
// количества попыток. Возвращает число доставленных напоминаний.
func (s *Service) RunSweep(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueReminders(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to list due reminders", sl.Err(err))
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	s.log.Info("reminder sweep started", slog.Int("count", len(due)))

	sent := 0
	for _, item := range due {
		log := s.log.With(
			slog.Int64("telegram_id", item.TelegramID),
			slog.String("channel", item.Channel))

		text := "⏰ Срок вашей подписки скоро истекает. Продлите её, чтобы не потерять доступ к каналу."
		sub, found, err := s.repo.GetActiveSubscription(ctx, item.TelegramID, item.Channel)
		if err != nil {
			log.Error("failed to load subscription for reminder", sl.Err(err))
			continue
		}
		if found {
			text = fmt.Sprintf("⏰ Ваша подписка действует до %s. Продлите её, чтобы не потерять доступ к каналу.",
				sub.EndDate.Format("02.01.2006"))
		}

		if err := s.tg.Notify(ctx, item.TelegramID, text); err != nil {
			log.Warn("failed to deliver reminder, will retry", sl.Err(err))
			continue
		}
		if err := s.repo.MarkReminderSent(ctx, item.TelegramID, item.Channel); err != nil {
			log.Error("failed to mark reminder sent", sl.Err(err))
			continue
		}
		metrics.RemindersSentTotal.Inc()
		sent++
	}

	s.log.Info("reminder sweep finished", slog.Int("sent", sent))
	return sent, nil
}

// Start запускает периодическую доставку: один раз сразу, затем каждые
// interval. Блокируется до отмены контекста.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.RunSweep(ctx); err != nil {
		s.log.Error("reminder sweep failed", sl.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				s.log.Error("reminder sweep failed", sl.Err(err))
			}
		}
	}
}
