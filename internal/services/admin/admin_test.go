package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-access-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, telegramID int64) (*models.User, bool, error) {
	args := m.Called(ctx, telegramID)
	var u *models.User
	if args.Get(0) != nil {
		u = args.Get(0).(*models.User)
	}
	return u, args.Bool(1), args.Error(2)
}

func (m *RepoMock) UpsertUser(ctx context.Context, user models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *RepoMock) EnsureUser(ctx context.Context, telegramID int64) error {
	return m.Called(ctx, telegramID).Error(0)
}

func (m *RepoMock) FindUserIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *RepoMock) MarkGiftReceived(ctx context.Context, telegramID int64) error {
	return m.Called(ctx, telegramID).Error(0)
}

func (m *RepoMock) AddWhitelist(ctx context.Context, telegramID int64, channel string) error {
	return m.Called(ctx, telegramID, channel).Error(0)
}

func (m *RepoMock) RemoveWhitelist(ctx context.Context, telegramID int64, channel string) error {
	return m.Called(ctx, telegramID, channel).Error(0)
}

type GranterMock struct{ mock.Mock }

func (m *GranterMock) Grant(ctx context.Context, telegramID int64, channel, method string, start, end time.Time) (bool, error) {
	args := m.Called(ctx, telegramID, channel, method, start, end)
	return args.Bool(0), args.Error(1)
}

type TelegramMock struct{ mock.Mock }

func (m *TelegramMock) Invite(ctx context.Context, telegramID int64, channel string) error {
	return m.Called(ctx, telegramID, channel).Error(0)
}

func (m *TelegramMock) Notify(ctx context.Context, telegramID int64, text string) error {
	return m.Called(ctx, telegramID, text).Error(0)
}

func (m *TelegramMock) ResolveUsername(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

type MembershipMock struct{ mock.Mock }

func (m *MembershipMock) SetBanned(ctx context.Context, telegramID int64, channel string, banned bool) error {
	return m.Called(ctx, telegramID, channel, banned).Error(0)
}

type ReminderMock struct{ mock.Mock }

func (m *ReminderMock) Schedule(ctx context.Context, telegramID int64, channel string, remindAt time.Time) error {
	return m.Called(ctx, telegramID, channel, remindAt).Error(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	if args.Bool(0) {
		if ptr, ok := result.(*int64); ok {
			*ptr = args.Get(2).(int64)
		}
	}
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

type ExpirySweeperMock struct{ mock.Mock }

func (m *ExpirySweeperMock) RunExpirySweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type ReminderSweeperMock struct{ mock.Mock }

func (m *ReminderSweeperMock) RunSweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type mocks struct {
	repo        *RepoMock
	subs        *GranterMock
	tg          *TelegramMock
	memberships *MembershipMock
	reminders   *ReminderMock
	cache       *CacheMock
	expiry      *ExpirySweeperMock
	remSweeper  *ReminderSweeperMock
}

func newMocks() *mocks {
	return &mocks{
		repo:        new(RepoMock),
		subs:        new(GranterMock),
		tg:          new(TelegramMock),
		memberships: new(MembershipMock),
		reminders:   new(ReminderMock),
		cache:       new(CacheMock),
		expiry:      new(ExpirySweeperMock),
		remSweeper:  new(ReminderSweeperMock),
	}
}

func (m *mocks) service() *Service {
	return New(m.repo, m.subs, m.tg, m.memberships, m.reminders, m.cache,
		m.expiry, m.remSweeper, newNoopLogger(), 14, 3)
}

func (m *mocks) expectGift(id int64) {
	m.subs.On("Grant", mock.Anything, id, models.ChannelOne, models.MethodGift, mock.Anything, mock.Anything).
		Return(false, nil).Once()
	m.repo.On("MarkGiftReceived", mock.Anything, id).Return(nil).Once()
	m.reminders.On("Schedule", mock.Anything, id, models.ChannelOne, mock.Anything).Return(nil).Once()
	m.tg.On("Invite", mock.Anything, id, models.ChannelOne).Return(nil).Once()
	m.memberships.On("SetBanned", mock.Anything, id, models.ChannelOne, false).Return(nil).Once()
	m.tg.On("Notify", mock.Anything, id, mock.Anything).Return(nil).Once()
}

func TestImportUsersNumericID(t *testing.T) {
	m := newMocks()
	m.repo.On("GetUser", mock.Anything, int64(42)).Return(nil, false, nil).Once()
	m.repo.On("EnsureUser", mock.Anything, int64(42)).Return(nil).Once()
	m.expectGift(42)

	report, err := m.service().ImportUsers(context.Background(), []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Gifted)
	assert.Empty(t, report.Unresolved)
	m.repo.AssertExpectations(t)
}

func TestImportUsersUsernameFromStorage(t *testing.T) {
	m := newMocks()
	m.repo.On("FindUserIDByUsername", mock.Anything, "durov").
		Return(int64(77), true, nil).Once()
	m.repo.On("GetUser", mock.Anything, int64(77)).Return(nil, false, nil).Once()
	m.repo.On("UpsertUser", mock.Anything, models.User{TelegramID: 77, Username: "durov"}).
		Return(nil).Once()
	m.expectGift(77)

	report, err := m.service().ImportUsers(context.Background(), []string{"@durov"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Gifted)
	// Bot API не дёргается, когда имя известно хранилищу.
	m.tg.AssertNotCalled(t, "ResolveUsername", mock.Anything, mock.Anything)
}

func TestImportUsersUsernameViaAPIAndCache(t *testing.T) {
	m := newMocks()
	m.repo.On("FindUserIDByUsername", mock.Anything, "durov").
		Return(int64(0), false, nil).Once()
	m.cache.On("Get", "username:durov", mock.Anything).
		Return(false, nil, int64(0)).Once()
	m.tg.On("ResolveUsername", mock.Anything, "durov").Return(int64(77), nil).Once()
	m.cache.On("Set", "username:durov", int64(77), mock.Anything).Return(nil).Once()
	m.repo.On("GetUser", mock.Anything, int64(77)).Return(nil, false, nil).Once()
	m.repo.On("UpsertUser", mock.Anything, models.User{TelegramID: 77, Username: "durov"}).
		Return(nil).Once()
	m.expectGift(77)

	report, err := m.service().ImportUsers(context.Background(), []string{"@durov"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Gifted)
	m.cache.AssertExpectations(t)
}

func TestImportUsersCachedResolution(t *testing.T) {
	m := newMocks()
	m.repo.On("FindUserIDByUsername", mock.Anything, "durov").
		Return(int64(0), false, nil).Once()
	m.cache.On("Get", "username:durov", mock.Anything).
		Return(true, nil, int64(77)).Once()
	m.repo.On("GetUser", mock.Anything, int64(77)).Return(nil, false, nil).Once()
	m.repo.On("UpsertUser", mock.Anything, mock.Anything).Return(nil).Once()
	m.expectGift(77)

	report, err := m.service().ImportUsers(context.Background(), []string{"@durov"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Gifted)
	m.tg.AssertNotCalled(t, "ResolveUsername", mock.Anything, mock.Anything)
}

func TestImportUsersUnresolved(t *testing.T) {
	m := newMocks()
	m.repo.On("FindUserIDByUsername", mock.Anything, "nobody").
		Return(int64(0), false, nil).Once()
	m.cache.On("Get", "username:nobody", mock.Anything).
		Return(false, nil, int64(0)).Once()
	m.tg.On("ResolveUsername", mock.Anything, "nobody").
		Return(int64(0), errors.New("chat not found")).Once()

	report, err := m.service().ImportUsers(context.Background(), []string{"@nobody"})
	require.NoError(t, err)
	assert.Zero(t, report.Gifted)
	assert.Equal(t, []string{"@nobody"}, report.Unresolved)
}

func TestImportUsersSkipsAlreadyGifted(t *testing.T) {
	m := newMocks()
	m.repo.On("GetUser", mock.Anything, int64(42)).
		Return(&models.User{TelegramID: 42, GiftReceived: true}, true, nil).Once()

	report, err := m.service().ImportUsers(context.Background(), []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Zero(t, report.Gifted)
	assert.Empty(t, report.Unresolved)
	m.subs.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestImportUsersInviteFailureStillGifts(t *testing.T) {
	m := newMocks()
	m.repo.On("GetUser", mock.Anything, int64(42)).Return(nil, false, nil).Once()
	m.repo.On("EnsureUser", mock.Anything, int64(42)).Return(nil).Once()
	m.subs.On("Grant", mock.Anything, int64(42), models.ChannelOne, models.MethodGift, mock.Anything, mock.Anything).
		Return(false, nil).Once()
	m.repo.On("MarkGiftReceived", mock.Anything, int64(42)).Return(nil).Once()
	m.reminders.On("Schedule", mock.Anything, int64(42), models.ChannelOne, mock.Anything).Return(nil).Once()
	m.tg.On("Invite", mock.Anything, int64(42), models.ChannelOne).
		Return(errors.New("telegram is down")).Once()

	report, err := m.service().ImportUsers(context.Background(), []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Gifted)
}

func TestWhitelistOps(t *testing.T) {
	m := newMocks()
	m.repo.On("AddWhitelist", mock.Anything, int64(42), models.ChannelOne).Return(nil).Once()
	m.repo.On("RemoveWhitelist", mock.Anything, int64(42), models.ChannelOne).Return(nil).Once()

	svc := m.service()
	require.NoError(t, svc.AddToWhitelist(context.Background(), 42, models.ChannelOne))
	require.NoError(t, svc.RemoveFromWhitelist(context.Background(), 42, models.ChannelOne))
	m.repo.AssertExpectations(t)
}

func TestRunSweeps(t *testing.T) {
	m := newMocks()
	m.expiry.On("RunExpirySweep", mock.Anything).Return(3, nil).Once()
	m.remSweeper.On("RunSweep", mock.Anything).Return(2, nil).Once()

	expired, reminded, err := m.service().RunSweeps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	assert.Equal(t, 2, reminded)
}
