package repository

import (
	"context"
	"fmt"
)

// AddWhitelist добавляет пару (пользователь, канал) в whitelist. Запись
// пользователя создаётся при отсутствии, а зеркало членства сбрасывает
// флаг бана: защищённый пользователь не считается удалённым.
func (s *Storage) AddWhitelist(ctx context.Context, telegramID int64, channel string) error {
	const op = "storage.AddWhitelist"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	queryUser := `INSERT INTO users (telegram_id)
				  VALUES ($1)
				  ON CONFLICT (telegram_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, queryUser, telegramID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO whitelist (telegram_id, channel_name)
			  VALUES ($1, $2)
			  ON CONFLICT (telegram_id, channel_name) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	queryMirror := `INSERT INTO channel_memberships (telegram_id, channel_name, is_banned, is_whitelisted, banned_at)
				    VALUES ($1, $2, FALSE, TRUE, NULL)
				    ON CONFLICT (telegram_id, channel_name)
				    DO UPDATE SET is_banned = FALSE, is_whitelisted = TRUE, banned_at = NULL`
	if _, err := s.DB.ExecContext(ctx, queryMirror, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveWhitelist убирает пару из whitelist и снимает флаг защиты в зеркале
// членства. Отсутствующая запись — no-op.
func (s *Storage) RemoveWhitelist(ctx context.Context, telegramID int64, channel string) error {
	const op = "storage.RemoveWhitelist"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM whitelist
			  WHERE telegram_id = $1 AND channel_name = $2`
	if _, err := s.DB.ExecContext(ctx, query, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	queryMirror := `UPDATE channel_memberships SET is_whitelisted = FALSE
				    WHERE telegram_id = $1 AND channel_name = $2`
	if _, err := s.DB.ExecContext(ctx, queryMirror, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsWhitelisted проверяет наличие пары (пользователь, канал) в whitelist.
func (s *Storage) IsWhitelisted(ctx context.Context, telegramID int64, channel string) (bool, error) {
	const op = "storage.IsWhitelisted"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM whitelist
			  WHERE telegram_id = $1 AND channel_name = $2`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, telegramID, channel).Scan(&count); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}
