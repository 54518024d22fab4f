// Package metrics объявляет счётчики Prometheus для ключевых событий
// движка: подтверждения платежей, проходы по истёкшим подпискам,
// отправка напоминаний.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentConfirmationsTotal считает подтверждения платежей по исходу
	// (ok, amount_mismatch, bad_signature, unknown_invoice,
	// already_confirmed, processing_failed).
	PaymentConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Total number of gateway payment confirmations by result",
		},
		[]string{"result"},
	)

	// SubscriptionsGrantedTotal считает выдачи подписок по каналу и способу
	// оплаты.
	SubscriptionsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_granted_total",
			Help: "Total number of subscriptions granted by channel and payment method",
		},
		[]string{"channel", "payment_method"},
	)

	// SubscriptionsExpiredTotal считает подписки, деактивированные свипом.
	SubscriptionsExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions deactivated by the expiry sweep",
		},
		[]string{"channel"},
	)

	// MembershipRemovalFailuresTotal считает неудачные удаления из канала.
	// Такие пары остаются активными до следующего прохода.
	MembershipRemovalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_removal_failures_total",
			Help: "Total number of failed channel removals during sweeps",
		},
		[]string{"channel"},
	)

	// RemindersSentTotal считает успешно доставленные напоминания.
	RemindersSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of renewal reminders delivered",
		},
	)
)
