package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// SetBanned фиксирует исход внешнего действия с каналом: бан при удалении,
// снятие бана при выдаче приглашения. Флаг whitelist подтягивается из
// актуального состояния таблицы whitelist, banned_at выставляется только
// при переходе в бан.
func (s *Storage) SetBanned(ctx context.Context, telegramID int64, channel string, banned bool) error {
	const op = "storage.SetBanned"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO channel_memberships (telegram_id, channel_name, is_banned, is_whitelisted, banned_at, last_verified)
			  VALUES ($1, $2, $3,
			      EXISTS (SELECT 1 FROM whitelist w WHERE w.telegram_id = $1 AND w.channel_name = $2),
			      CASE WHEN $3 THEN NOW() ELSE NULL END,
			      NOW())
			  ON CONFLICT (telegram_id, channel_name)
			  DO UPDATE SET
			      is_banned = EXCLUDED.is_banned,
			      is_whitelisted = EXCLUDED.is_whitelisted,
			      banned_at = CASE WHEN EXCLUDED.is_banned THEN NOW() ELSE NULL END,
			      last_verified = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel, banned); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetMembership возвращает зафиксированное состояние членства пары.
func (s *Storage) GetMembership(ctx context.Context, telegramID int64, channel string) (*models.ChannelMembership, bool, error) {
	const op = "storage.GetMembership"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, channel_name, is_banned, is_whitelisted, banned_at, last_verified
			  FROM channel_memberships
			  WHERE telegram_id = $1 AND channel_name = $2`
	var m models.ChannelMembership
	row := s.DB.QueryRowContext(ctx, query, telegramID, channel)
	if err := row.Scan(&m.TelegramID, &m.Channel, &m.IsBanned,
		&m.IsWhitelisted, &m.BannedAt, &m.LastVerified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &m, true, nil
}

// MarkVerified обновляет отметку времени последней сверки без изменения
// состояния бана.
func (s *Storage) MarkVerified(ctx context.Context, telegramID int64, channel string) error {
	const op = "storage.MarkVerified"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE channel_memberships SET last_verified = NOW()
			  WHERE telegram_id = $1 AND channel_name = $2`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
