package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// UpsertReminder планирует напоминание для пары (пользователь, канал).
// Существующее напоминание перезаписывается, флаг sent сбрасывается:
// свежая выдача подписки вытесняет устаревшее напоминание.
func (s *Storage) UpsertReminder(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error {
	const op = "storage.UpsertReminder"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO reminders (telegram_id, channel_name, reminder_date, reminder_sent)
			  VALUES ($1, $2, $3, FALSE)
			  ON CONFLICT (telegram_id, channel_name)
			  DO UPDATE SET reminder_date = EXCLUDED.reminder_date, reminder_sent = FALSE`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel, remindAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListDueReminders возвращает неотправленные напоминания, время которых
// наступило.
func (s *Storage) ListDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	const op = "storage.ListDueReminders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, channel_name, reminder_date, reminder_sent
			  FROM reminders
			  WHERE reminder_sent = FALSE AND reminder_date <= $1`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Reminder
	for rows.Next() {
		var item models.Reminder
		if err := rows.Scan(&item.TelegramID, &item.Channel, &item.RemindAt, &item.Sent); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminderSent отмечает напоминание отправленным.
func (s *Storage) MarkReminderSent(ctx context.Context, telegramID int64, channel string) error {
	const op = "storage.MarkReminderSent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE reminders SET reminder_sent = TRUE
			  WHERE telegram_id = $1 AND channel_name = $2`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
