// Package models содержит доменные структуры движка доступа к каналам.
package models

import "time"

// Ключи платных каналов. channel_2 — старший: его покупка даёт
// бонусный пробный доступ к channel_1 при первой подписке.
const (
	ChannelOne = "channel_1"
	ChannelTwo = "channel_2"
)

// Способы оплаты подписки.
const (
	MethodFreeTrial = "free_trial"
	MethodPaid      = "paid"
	MethodGift      = "gift"
)

// Статусы платежа.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
)

// User пользователь Telegram, когда-либо взаимодействовавший с ботом.
type User struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	GiftReceived bool
	CreatedAt    time.Time
}

// Subscription подписка пары (пользователь, канал). На пару хранится
// одна строка: продление перезаписывает даты.
type Subscription struct {
	TelegramID    int64
	Channel       string
	PaymentMethod string
	IsActive      bool
	StartDate     time.Time
	EndDate       time.Time
}

// Payment счёт платёжного шлюза.
type Payment struct {
	ID         int
	TelegramID int64
	Channel    string
	Amount     float64
	InvoiceID  string
	Status     string
	CreatedAt  time.Time
}

// Reminder запланированное напоминание о продлении.
type Reminder struct {
	TelegramID int64
	Channel    string
	RemindAt   time.Time
	Sent       bool
}

// WhitelistEntry запись о защите пары от удаления по истечении.
type WhitelistEntry struct {
	TelegramID int64
	Channel    string
	AddedAt    time.Time
}

// ChannelMembership зафиксированный исход последнего внешнего действия
// с каналом для пары (пользователь, канал).
type ChannelMembership struct {
	TelegramID    int64
	Channel       string
	IsBanned      bool
	IsWhitelisted bool
	BannedAt      *time.Time
	LastVerified  time.Time
}

// MembershipCheck строка стартовой сверки: состояние подписки вместе
// с whitelist и зафиксированным баном.
type MembershipCheck struct {
	TelegramID    int64
	Channel       string
	IsActive      bool
	EndDate       time.Time
	IsWhitelisted bool
	IsBanned      bool
}
