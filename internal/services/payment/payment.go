// Package payment реализует платёжный шлюз: выставление счетов Robokassa
// и обработку серверных уведомлений об оплате.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/config"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/robokassa"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/metrics"
	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// ConfirmResult исход обработки уведомления шлюза.
type ConfirmResult string

const (
	ResultOK               ConfirmResult = "ok"
	ResultAmountMismatch   ConfirmResult = "amount_mismatch"
	ResultBadSignature     ConfirmResult = "bad_signature"
	ResultUnknownInvoice   ConfirmResult = "unknown_invoice"
	ResultAlreadyConfirmed ConfirmResult = "already_confirmed"
	ResultProcessingFailed ConfirmResult = "processing_failed"
)

// Confirmed истинен для исходов, которые шлюз должен считать принятыми.
func (r ConfirmResult) Confirmed() bool {
	return r == ResultOK || r == ResultAlreadyConfirmed
}

// Допустимое расхождение суммы уведомления с суммой счёта.
const amountTolerance = 0.01

var ErrUnknownChannel = errors.New("unknown channel")

type Repository interface {
	EnsureUser(ctx context.Context, telegramID int64) error
	CreatePayment(ctx context.Context, payment models.Payment) (int, error)
	GetPaymentByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, bool, error)
	MarkPaymentSucceeded(ctx context.Context, invoiceID string) (int, error)
}

type SubscriptionGranter interface {
	Grant(ctx context.Context, telegramID int64, channel, method string, start, end time.Time) (bool, error)
}

type ChannelNotifier interface {
	Invite(ctx context.Context, telegramID int64, channel string) error
	Notify(ctx context.Context, telegramID int64, text string) error
}

type MembershipRecorder interface {
	SetBanned(ctx context.Context, telegramID int64, channel string, banned bool) error
}

type ReminderScheduler interface {
	Schedule(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error
}

type Service struct {
	repo        Repository
	subs        SubscriptionGranter
	tg          ChannelNotifier
	memberships MembershipRecorder
	reminders   ReminderScheduler
	log         *slog.Logger

	robokassaCfg config.Robokassa
	channels     map[string]config.ChannelConfig
	periods      config.Periods
}

func New(repo Repository, subs SubscriptionGranter, tg ChannelNotifier,
	memberships MembershipRecorder, reminders ReminderScheduler,
	log *slog.Logger, robokassaCfg config.Robokassa,
	channels map[string]config.ChannelConfig, periods config.Periods) *Service {
	return &Service{
		repo:         repo,
		subs:         subs,
		tg:           tg,
		memberships:  memberships,
		reminders:    reminders,
		log:          log,
		robokassaCfg: robokassaCfg,
		channels:     channels,
		periods:      periods,
	}
}

// IssueLink выставляет счёт: генерирует номер, строит подписанную ссылку
// шлюза и записывает платёж в статусе pending. Канал и цена определяются
// конфигурацией, клиентской сумме доверия нет.
func (s *Service) IssueLink(ctx context.Context, telegramID int64, channel string) (string, string, error) {
	const op = "services.payment.IssueLink"

	chCfg, ok := s.channels[channel]
	if !ok {
		return "", "", fmt.Errorf("%s: %w: %s", op, ErrUnknownChannel, channel)
	}

	if err := s.repo.EnsureUser(ctx, telegramID); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	invoiceID := robokassa.NewInvoiceID()
	creds := robokassa.Credentials{
		MerchantLogin: chCfg.MerchantLogin,
		Password1:     chCfg.Password1,
		Password2:     chCfg.Password2,
	}
	// Shp_user_id возвращается шлюзом в уведомлении и входит в обе подписи.
	shp := map[string]string{"Shp_user_id": strconv.FormatInt(telegramID, 10)}
	link := robokassa.PaymentURL(s.robokassaCfg.BaseURL, creds,
		chCfg.Price, chCfg.Description, invoiceID, shp, s.robokassaCfg.TestMode)

	invoice := strconv.FormatInt(invoiceID, 10)
	_, err := s.repo.CreatePayment(ctx, models.Payment{
		TelegramID: telegramID,
		Channel:    channel,
		Amount:     chCfg.Price,
		InvoiceID:  invoice,
		Status:     models.PaymentPending,
	})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment link issued",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel),
		slog.String("invoice_id", invoice))
	return link, invoice, nil
}

// Confirm обрабатывает серверное уведомление шлюза об оплате счёта.
//
// Порядок проверок: неизвестный счёт, подпись, сумма, повторное
// уведомление. Затем выполняются все эффекты — выдача подписки,
// приглашение в канал, бонус, уведомление, напоминание, фиксация
// членства — и только после них статус платежа переводится в success.
// Любая ошибка эффекта оставляет платёж в pending, шлюз повторит
// уведомление, и обработка начнётся заново.
func (s *Service) Confirm(ctx context.Context, invoiceID, outSum, signature string, shp map[string]string) ConfirmResult {
	result := s.confirm(ctx, invoiceID, outSum, signature, shp)
	metrics.PaymentConfirmationsTotal.WithLabelValues(string(result)).Inc()
	return result
}

func (s *Service) confirm(ctx context.Context, invoiceID, outSum, signature string, shp map[string]string) ConfirmResult {
	log := s.log.With(slog.String("invoice_id", invoiceID))

	paymentRow, found, err := s.repo.GetPaymentByInvoiceID(ctx, invoiceID)
	if err != nil {
		log.Error("failed to load payment", sl.Err(err))
		return ResultProcessingFailed
	}
	if !found {
		log.Warn("notification for unknown invoice")
		return ResultUnknownInvoice
	}

	chCfg, ok := s.channels[paymentRow.Channel]
	if !ok {
		log.Error("payment references unconfigured channel",
			slog.String("channel", paymentRow.Channel))
		return ResultProcessingFailed
	}

	if !robokassa.VerifyResultSignature(outSum, invoiceID, signature, chCfg.Password2, shp) {
		log.Warn("bad notification signature")
		return ResultBadSignature
	}

	amount, err := strconv.ParseFloat(outSum, 64)
	if err != nil || math.Abs(amount-paymentRow.Amount) > amountTolerance {
		log.Warn("notification amount mismatch",
			slog.String("out_sum", outSum),
			slog.Float64("expected", paymentRow.Amount))
		return ResultAmountMismatch
	}

	if paymentRow.Status == models.PaymentSuccess {
		log.Info("duplicate notification for confirmed invoice")
		return ResultAlreadyConfirmed
	}

	now := time.Now()
	end := now.AddDate(0, 0, s.periods.PaidDays)
	bonus, err := s.subs.Grant(ctx, paymentRow.TelegramID, paymentRow.Channel, models.MethodPaid, now, end)
	if err != nil {
		log.Error("failed to grant subscription", sl.Err(err))
		return ResultProcessingFailed
	}

	if err := s.tg.Invite(ctx, paymentRow.TelegramID, paymentRow.Channel); err != nil {
		log.Error("failed to invite to channel", sl.Err(err))
		return ResultProcessingFailed
	}
	if bonus {
		if err := s.tg.Invite(ctx, paymentRow.TelegramID, models.ChannelOne); err != nil {
			log.Error("failed to invite to bonus channel", sl.Err(err))
			return ResultProcessingFailed
		}
	}

	text := fmt.Sprintf("✅ Оплата получена! Подписка на %s действует до %s.",
		chCfg.Description, end.Format("02.01.2006"))
	if err := s.tg.Notify(ctx, paymentRow.TelegramID, text); err != nil {
		log.Error("failed to send confirmation message", sl.Err(err))
		return ResultProcessingFailed
	}

	remindAt := end.AddDate(0, 0, -s.periods.ReminderLeadDays)
	if err := s.reminders.Schedule(ctx, paymentRow.TelegramID, paymentRow.Channel, remindAt); err != nil {
		log.Error("failed to schedule renewal reminder", sl.Err(err))
		return ResultProcessingFailed
	}

	if err := s.memberships.SetBanned(ctx, paymentRow.TelegramID, paymentRow.Channel, false); err != nil {
		log.Error("failed to record membership", sl.Err(err))
		return ResultProcessingFailed
	}
	if bonus {
		if err := s.memberships.SetBanned(ctx, paymentRow.TelegramID, models.ChannelOne, false); err != nil {
			log.Error("failed to record bonus membership", sl.Err(err))
			return ResultProcessingFailed
		}
	}

	flipped, err := s.repo.MarkPaymentSucceeded(ctx, invoiceID)
	if err != nil {
		log.Error("failed to mark payment succeeded", sl.Err(err))
		return ResultProcessingFailed
	}
	if flipped == 0 {
		// Конкурирующее уведомление успело перевести статус первым.
		return ResultAlreadyConfirmed
	}

	log.Info("payment confirmed",
		slog.Int64("telegram_id", paymentRow.TelegramID),
		slog.String("channel", paymentRow.Channel),
		slog.Bool("bonus_granted", bonus))
	return ResultOK
}
