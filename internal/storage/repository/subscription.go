package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// UpsertSubscription создаёт подписку или перезаписывает существующую
// строку пары (пользователь, канал) новыми датами. Истории периодов нет:
// продление заменяет строку, а не добавляет новую.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (telegram_id, channel_name, is_active, payment_method, start_date, end_date)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (telegram_id, channel_name)
			  DO UPDATE SET
			      is_active = EXCLUDED.is_active,
			      payment_method = EXCLUDED.payment_method,
			      start_date = EXCLUDED.start_date,
			      end_date = EXCLUDED.end_date`
	if _, err := s.DB.ExecContext(ctx, query,
		sub.TelegramID, sub.Channel, sub.IsActive, sub.PaymentMethod,
		sub.StartDate, sub.EndDate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeactivateSubscription снимает флаг активности. Повторный вызов для уже
// неактивной строки — no-op.
func (s *Storage) DeactivateSubscription(ctx context.Context, telegramID int64, channel string) error {
	const op = "storage.DeactivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET is_active = FALSE
			  WHERE telegram_id = $1 AND channel_name = $2`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetActiveSubscription возвращает активную подписку пары, если она есть.
func (s *Storage) GetActiveSubscription(ctx context.Context, telegramID int64, channel string) (*models.Subscription, bool, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, channel_name, payment_method, is_active, start_date, end_date
			  FROM subscriptions
			  WHERE telegram_id = $1 AND channel_name = $2 AND is_active = TRUE`
	var sub models.Subscription
	row := s.DB.QueryRowContext(ctx, query, telegramID, channel)
	if err := row.Scan(&sub.TelegramID, &sub.Channel, &sub.PaymentMethod,
		&sub.IsActive, &sub.StartDate, &sub.EndDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, true, nil
}

// ListUserSubscriptions возвращает все подписки пользователя.
func (s *Storage) ListUserSubscriptions(ctx context.Context, telegramID int64) ([]*models.Subscription, error) {
	const op = "storage.ListUserSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, channel_name, payment_method, is_active, start_date, end_date
			  FROM subscriptions
			  WHERE telegram_id = $1
			  ORDER BY end_date DESC`
	rows, err := s.DB.QueryContext(ctx, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.TelegramID, &item.Channel, &item.PaymentMethod,
			&item.IsActive, &item.StartDate, &item.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// HasEverSubscribed проверяет, была ли у пользователя когда-либо подписка
// на канал, активная или истёкшая.
func (s *Storage) HasEverSubscribed(ctx context.Context, telegramID int64, channel string) (bool, error) {
	const op = "storage.HasEverSubscribed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM subscriptions
			  WHERE telegram_id = $1 AND channel_name = $2`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, telegramID, channel).Scan(&count); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// ListExpiredActive возвращает активные подписки с истёкшей датой окончания
// в порядке возрастания end_date — в этом порядке их обрабатывает свип.
func (s *Storage) ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListExpiredActive"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, channel_name, payment_method, is_active, start_date, end_date
			  FROM subscriptions
			  WHERE is_active = TRUE AND end_date <= $1
			  ORDER BY end_date ASC`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.TelegramID, &item.Channel, &item.PaymentMethod,
			&item.IsActive, &item.StartDate, &item.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListMembershipChecks возвращает строки стартовой сверки: по одной на
// каждую пару (пользователь, канал), когда-либо имевшую подписку, вместе
// с текущим состоянием whitelist и зафиксированного бана.
func (s *Storage) ListMembershipChecks(ctx context.Context) ([]*models.MembershipCheck, error) {
	const op = "storage.ListMembershipChecks"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT DISTINCT
			      s.telegram_id,
			      s.channel_name,
			      s.is_active,
			      s.end_date,
			      CASE WHEN w.telegram_id IS NOT NULL THEN TRUE ELSE FALSE END AS is_whitelisted,
			      COALESCE(cm.is_banned, FALSE) AS is_banned
			  FROM subscriptions s
			  LEFT JOIN whitelist w ON s.telegram_id = w.telegram_id AND s.channel_name = w.channel_name
			  LEFT JOIN channel_memberships cm ON s.telegram_id = cm.telegram_id AND s.channel_name = cm.channel_name
			  ORDER BY s.telegram_id, s.channel_name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.MembershipCheck
	for rows.Next() {
		var item models.MembershipCheck
		if err := rows.Scan(&item.TelegramID, &item.Channel, &item.IsActive,
			&item.EndDate, &item.IsWhitelisted, &item.IsBanned); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
