package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// UpsertUser сохраняет пользователя или обновляет его отображаемые атрибуты.
// Флаг gift_received при обновлении не трогается.
func (s *Storage) UpsertUser(ctx context.Context, user models.User) error {
	const op = "storage.UpsertUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (telegram_id, username, first_name, last_name)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (telegram_id)
			  DO UPDATE SET
			      username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name`
	if _, err := s.DB.ExecContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureUser создаёт строку пользователя, если её ещё нет. Существующая
// строка не меняется.
func (s *Storage) EnsureUser(ctx context.Context, telegramID int64) error {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (telegram_id)
			  VALUES ($1)
			  ON CONFLICT (telegram_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по telegram_id.
// Второе значение false означает, что пользователь не найден.
func (s *Storage) GetUser(ctx context.Context, telegramID int64) (*models.User, bool, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id, username, first_name, last_name, gift_received, created_at
			  FROM users
			  WHERE telegram_id = $1`
	var u models.User
	row := s.DB.QueryRowContext(ctx, query, telegramID)
	if err := row.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.GiftReceived, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &u, true, nil
}

// FindUserIDByUsername разрешает @username в telegram_id по таблице
// пользователей. Работает только для тех, кто уже взаимодействовал с ботом.
func (s *Storage) FindUserIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	const op = "storage.FindUserIDByUsername"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT telegram_id FROM users WHERE username = $1`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return id, true, nil
}

// MarkGiftReceived выставляет одноразовый флаг полученного подарка.
func (s *Storage) MarkGiftReceived(ctx context.Context, telegramID int64) error {
	const op = "storage.MarkGiftReceived"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET gift_received = TRUE WHERE telegram_id = $1`
	if _, err := s.DB.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
