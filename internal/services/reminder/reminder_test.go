package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) UpsertReminder(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error {
	return m.Called(ctx, telegramID, channel, remindAt).Error(0)
}

func (m *RepoMock) ListDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	args := m.Called(ctx, now)
	var due []*models.Reminder
	if args.Get(0) != nil {
		due = args.Get(0).([]*models.Reminder)
	}
	return due, args.Error(1)
}

func (m *RepoMock) MarkReminderSent(ctx context.Context, telegramID int64, channel string) error {
	return m.Called(ctx, telegramID, channel).Error(0)
}

func (m *RepoMock) GetActiveSubscription(ctx context.Context, telegramID int64, channel string) (*models.Subscription, bool, error) {
	args := m.Called(ctx, telegramID, channel)
	var sub *models.Subscription
	if args.Get(0) != nil {
		sub = args.Get(0).(*models.Subscription)
	}
	return sub, args.Bool(1), args.Error(2)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, telegramID int64, text string) error {
	return m.Called(ctx, telegramID, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSchedule(t *testing.T) {
	remindAt := time.Date(2026, 3, 27, 12, 0, 0, 0, time.UTC)

	repo := new(RepoMock)
	repo.On("UpsertReminder", mock.Anything, int64(42), models.ChannelOne, remindAt).
		Return(nil).Once()

	svc := New(repo, new(NotifierMock), newNoopLogger())
	require.NoError(t, svc.Schedule(context.Background(), 42, models.ChannelOne, remindAt))
	repo.AssertExpectations(t)
}

func TestRunSweepIncludesEndDate(t *testing.T) {
	endDate := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)

	repo := new(RepoMock)
	tg := new(NotifierMock)

	repo.On("ListDueReminders", mock.Anything, mock.Anything).
		Return([]*models.Reminder{
			{TelegramID: 42, Channel: models.ChannelOne},
		}, nil).Once()
	repo.On("GetActiveSubscription", mock.Anything, int64(42), models.ChannelOne).
		Return(&models.Subscription{EndDate: endDate}, true, nil).Once()
	// Дата окончания попадает в текст напоминания.
	tg.On("Notify", mock.Anything, int64(42), mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "30.03.2026")
	})).Return(nil).Once()
	repo.On("MarkReminderSent", mock.Anything, int64(42), models.ChannelOne).
		Return(nil).Once()

	svc := New(repo, tg, newNoopLogger())
	sent, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	repo.AssertExpectations(t)
	tg.AssertExpectations(t)
}

func TestRunSweepLapsedSubscriptionStillDelivered(t *testing.T) {
	repo := new(RepoMock)
	tg := new(NotifierMock)

	repo.On("ListDueReminders", mock.Anything, mock.Anything).
		Return([]*models.Reminder{
			{TelegramID: 42, Channel: models.ChannelOne},
		}, nil).Once()
	// Подписка уже деактивирована, напоминание всё равно уходит.
	repo.On("GetActiveSubscription", mock.Anything, int64(42), models.ChannelOne).
		Return(nil, false, nil).Once()
	tg.On("Notify", mock.Anything, int64(42), mock.Anything).Return(nil).Once()
	repo.On("MarkReminderSent", mock.Anything, int64(42), models.ChannelOne).
		Return(nil).Once()

	svc := New(repo, tg, newNoopLogger())
	sent, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestRunSweepDeliveryFailureKeepsReminderQueued(t *testing.T) {
	repo := new(RepoMock)
	tg := new(NotifierMock)

	repo.On("ListDueReminders", mock.Anything, mock.Anything).
		Return([]*models.Reminder{
			{TelegramID: 1, Channel: models.ChannelOne},
			{TelegramID: 2, Channel: models.ChannelOne},
		}, nil).Once()

	repo.On("GetActiveSubscription", mock.Anything, int64(1), models.ChannelOne).
		Return(nil, false, nil).Once()
	tg.On("Notify", mock.Anything, int64(1), mock.Anything).
		Return(errors.New("bot was blocked")).Once()

	repo.On("GetActiveSubscription", mock.Anything, int64(2), models.ChannelOne).
		Return(nil, false, nil).Once()
	tg.On("Notify", mock.Anything, int64(2), mock.Anything).Return(nil).Once()
	repo.On("MarkReminderSent", mock.Anything, int64(2), models.ChannelOne).
		Return(nil).Once()

	svc := New(repo, tg, newNoopLogger())
	sent, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Неотправленное напоминание не помечается отправленным.
	repo.AssertNotCalled(t, "MarkReminderSent", mock.Anything, int64(1), models.ChannelOne)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ListDueReminders", mock.Anything, mock.Anything).
		Return([]*models.Reminder{}, nil)

	svc := New(repo, new(NotifierMock), newNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}
}
