// Package admin реализует административные операции: массовый импорт
// пользователей с подарочным доступом, управление whitelist и ручной
// запуск фоновых проходов.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

// TTL кеша разрешения username: имена меняются редко, сутки достаточно.
const resolutionCacheTTL = 24 * time.Hour

type Repository interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, bool, error)
	UpsertUser(ctx context.Context, user models.User) error
	EnsureUser(ctx context.Context, telegramID int64) error
	FindUserIDByUsername(ctx context.Context, username string) (int64, bool, error)
	MarkGiftReceived(ctx context.Context, telegramID int64) error
	AddWhitelist(ctx context.Context, telegramID int64, channel string) error
	RemoveWhitelist(ctx context.Context, telegramID int64, channel string) error
}

type SubscriptionGranter interface {
	Grant(ctx context.Context, telegramID int64, channel, method string, start, end time.Time) (bool, error)
}

type ChannelInviter interface {
	Invite(ctx context.Context, telegramID int64, channel string) error
	Notify(ctx context.Context, telegramID int64, text string) error
	ResolveUsername(ctx context.Context, username string) (int64, error)
}

type MembershipRecorder interface {
	SetBanned(ctx context.Context, telegramID int64, channel string, banned bool) error
}

type ReminderScheduler interface {
	Schedule(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error
}

type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

type ExpirySweeper interface {
	RunExpirySweep(ctx context.Context) (int, error)
}

type ReminderSweeper interface {
	RunSweep(ctx context.Context) (int, error)
}

// ImportReport итог массового импорта.
type ImportReport struct {
	Total      int      `json:"total"`
	Gifted     int      `json:"gifted"`
	Unresolved []string `json:"unresolved,omitempty"`
}

type Service struct {
	repo        Repository
	subs        SubscriptionGranter
	tg          ChannelInviter
	memberships MembershipRecorder
	reminders   ReminderScheduler
	cache       Cache
	expiry      ExpirySweeper
	remSweeper  ReminderSweeper
	log         *slog.Logger

	trialDays        int
	reminderLeadDays int
}

func New(repo Repository, subs SubscriptionGranter, tg ChannelInviter,
	memberships MembershipRecorder, reminders ReminderScheduler, cache Cache,
	expiry ExpirySweeper, remSweeper ReminderSweeper,
	log *slog.Logger, trialDays, reminderLeadDays int) *Service {
	return &Service{
		repo:             repo,
		subs:             subs,
		tg:               tg,
		memberships:      memberships,
		reminders:        reminders,
		cache:            cache,
		expiry:           expiry,
		remSweeper:       remSweeper,
		log:              log,
		trialDays:        trialDays,
		reminderLeadDays: reminderLeadDays,
	}
}

// ImportUsers выдаёт подарочный пробный доступ к channel_1 списку
// идентификаторов: числовые токены трактуются как telegram_id, остальные
// как @username. Имена разрешаются сначала по таблице пользователей,
// затем через Bot API с кешем в Redis. Уже получавшие подарок
// пропускаются. Неразрешённые идентификаторы возвращаются в отчёте.
func (s *Service) ImportUsers(ctx context.Context, identifiers []string) (*ImportReport, error) {
	report := &ImportReport{Total: len(identifiers)}

	for _, raw := range identifiers {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		telegramID, username, err := s.resolve(ctx, token)
		if err != nil {
			s.log.Warn("failed to resolve identifier",
				slog.String("identifier", token), sl.Err(err))
			report.Unresolved = append(report.Unresolved, token)
			continue
		}

		gifted, err := s.giftUser(ctx, telegramID, username)
		if err != nil {
			s.log.Error("failed to import user",
				slog.Int64("telegram_id", telegramID), sl.Err(err))
			report.Unresolved = append(report.Unresolved, token)
			continue
		}
		if gifted {
			report.Gifted++
		}
	}

	s.log.Info("user import finished",
		slog.Int("total", report.Total),
		slog.Int("gifted", report.Gifted),
		slog.Int("unresolved", len(report.Unresolved)))
	return report, nil
}

// resolve превращает токен импорта в telegram_id.
func (s *Service) resolve(ctx context.Context, token string) (int64, string, error) {
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		return id, "", nil
	}

	username := strings.TrimPrefix(token, "@")
	if username == "" {
		return 0, "", fmt.Errorf("empty username")
	}

	if id, found, err := s.repo.FindUserIDByUsername(ctx, username); err == nil && found {
		return id, username, nil
	}

	cacheKey := "username:" + username
	var cached int64
	if found, err := s.cache.Get(cacheKey, &cached); err == nil && found {
		return cached, username, nil
	}

	id, err := s.tg.ResolveUsername(ctx, username)
	if err != nil {
		return 0, "", err
	}
	if err := s.cache.Set(cacheKey, id, resolutionCacheTTL); err != nil {
		s.log.Warn("failed to cache username resolution",
			slog.String("username", username), sl.Err(err))
	}
	return id, username, nil
}

// giftUser выдаёт одному пользователю подарочный доступ. Возвращает false
// без ошибки, если подарок уже был получен.
func (s *Service) giftUser(ctx context.Context, telegramID int64, username string) (bool, error) {
	user, found, err := s.repo.GetUser(ctx, telegramID)
	if err != nil {
		return false, err
	}
	if found && user.GiftReceived {
		return false, nil
	}

	if username != "" {
		existing := models.User{TelegramID: telegramID, Username: username}
		if found {
			existing.FirstName = user.FirstName
			existing.LastName = user.LastName
		}
		if err := s.repo.UpsertUser(ctx, existing); err != nil {
			return false, err
		}
	} else if err := s.repo.EnsureUser(ctx, telegramID); err != nil {
		return false, err
	}

	now := time.Now()
	end := now.AddDate(0, 0, s.trialDays)
	if _, err := s.subs.Grant(ctx, telegramID, models.ChannelOne, models.MethodGift, now, end); err != nil {
		return false, err
	}
	if err := s.repo.MarkGiftReceived(ctx, telegramID); err != nil {
		return false, err
	}

	remindAt := end.AddDate(0, 0, -s.reminderLeadDays)
	if err := s.reminders.Schedule(ctx, telegramID, models.ChannelOne, remindAt); err != nil {
		return false, err
	}

	// Внешние действия не срывают импорт: при неудаче пользователь
	// получит доступ на следующей стартовой сверке или по запросу.
	if err := s.tg.Invite(ctx, telegramID, models.ChannelOne); err != nil {
		s.log.Warn("failed to invite gifted user",
			slog.Int64("telegram_id", telegramID), sl.Err(err))
		return true, nil
	}
	if err := s.memberships.SetBanned(ctx, telegramID, models.ChannelOne, false); err != nil {
		s.log.Error("failed to record gifted membership",
			slog.Int64("telegram_id", telegramID), sl.Err(err))
	}

	text := fmt.Sprintf("🎁 Вам открыт бесплатный доступ к каналу на %d дней!", s.trialDays)
	if err := s.tg.Notify(ctx, telegramID, text); err != nil {
		s.log.Warn("failed to send welcome message",
			slog.Int64("telegram_id", telegramID), sl.Err(err))
	}

	return true, nil
}

// AddToWhitelist защищает пару (пользователь, канал) от удаления при
// истечении подписки.
func (s *Service) AddToWhitelist(ctx context.Context, telegramID int64, channel string) error {
	const op = "services.admin.AddToWhitelist"

	if err := s.repo.AddWhitelist(ctx, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user whitelisted",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel))
	return nil
}

// RemoveFromWhitelist снимает защиту. Пользователь остаётся в канале до
// ближайшего прохода, который обнаружит истёкшую подписку.
func (s *Service) RemoveFromWhitelist(ctx context.Context, telegramID int64, channel string) error {
	const op = "services.admin.RemoveFromWhitelist"

	if err := s.repo.RemoveWhitelist(ctx, telegramID, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user removed from whitelist",
		slog.Int64("telegram_id", telegramID),
		slog.String("channel", channel))
	return nil
}

// RunSweeps вручную запускает оба фоновых прохода и возвращает количество
// обработанных подписок и доставленных напоминаний.
func (s *Service) RunSweeps(ctx context.Context) (expired, reminded int, err error) {
	expired, err = s.expiry.RunExpirySweep(ctx)
	if err != nil {
		return 0, 0, err
	}
	reminded, err = s.remSweeper.RunSweep(ctx)
	if err != nil {
		return expired, 0, err
	}
	return expired, reminded, nil
}
