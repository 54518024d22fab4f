package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// CreatePayment создаёт запись о выставленном счёте в статусе pending
// и возвращает её ID.
func (s *Storage) CreatePayment(ctx context.Context, payment models.Payment) (int, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (telegram_id, channel_name, amount, invoice_id, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		payment.TelegramID, payment.Channel, payment.Amount,
		payment.InvoiceID, payment.Status).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPaymentByInvoiceID возвращает платёж по номеру счёта шлюза.
func (s *Storage) GetPaymentByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, bool, error) {
	const op = "storage.GetPaymentByInvoiceID"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, channel_name, amount, invoice_id, status, created_at
			  FROM payments
			  WHERE invoice_id = $1`
	var p models.Payment
	row := s.DB.QueryRowContext(ctx, query, invoiceID)
	if err := row.Scan(&p.ID, &p.TelegramID, &p.Channel, &p.Amount,
		&p.InvoiceID, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &p, true, nil
}

// MarkPaymentSucceeded переводит платёж в статус success. Условие в WHERE
// гарантирует, что переход происходит не более одного раза: повторный
// вызов возвращает 0 затронутых строк, статус назад не откатывается.
func (s *Storage) MarkPaymentSucceeded(ctx context.Context, invoiceID string) (int, error) {
	const op = "storage.MarkPaymentSucceeded"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $1
			  WHERE invoice_id = $2 AND status <> $1`
	result, err := s.DB.ExecContext(ctx, query, models.PaymentSuccess, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
