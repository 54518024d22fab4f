// Package bot собирает приложение: хранилище, миграции, кеш, клиент
// Telegram, сервисы и HTTP-сервер с фоновыми проходами.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/channel-access-bot/internal/cache"
	"github.com/magabrotheeeer/channel-access-bot/internal/config"
	jwtlib "github.com/magabrotheeeer/channel-access-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/migrations"
	adminservice "github.com/magabrotheeeer/channel-access-bot/internal/services/admin"
	paymentservice "github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
	reconcilerservice "github.com/magabrotheeeer/channel-access-bot/internal/services/reconciler"
	reminderservice "github.com/magabrotheeeer/channel-access-bot/internal/services/reminder"
	subservice "github.com/magabrotheeeer/channel-access-bot/internal/services/subscription"
	"github.com/magabrotheeeer/channel-access-bot/internal/storage/repository"
	"github.com/magabrotheeeer/channel-access-bot/internal/telegram"
)

type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	reconciler *reconcilerservice.Service
	reminder   *reminderservice.Service

	sweepInterval time.Duration
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	tgClient := telegram.NewClient(cfg.Telegram, cfg.Channels)

	subscriptionService := subservice.New(db, logger, cfg.Periods.TrialDays)
	reminderService := reminderservice.New(db, tgClient, logger)
	paymentService := paymentservice.New(db, subscriptionService, tgClient, db,
		reminderService, logger, cfg.Robokassa, cfg.Channels, cfg.Periods)
	reconcilerService := reconcilerservice.New(db, subscriptionService, tgClient, logger)
	adminService := adminservice.New(db, subscriptionService, tgClient, db,
		reminderService, cacheRedis, reconcilerService, reminderService, logger,
		cfg.Periods.TrialDays, cfg.Periods.ReminderLeadDays)

	jwtMaker := jwtlib.NewJWTMaker(cfg.AdminToken.SecretKey, cfg.AdminToken.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, paymentService, subscriptionService, adminService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:        srv,
		logger:        logger,
		db:            db,
		reconciler:    reconcilerService,
		reminder:      reminderService,
		sweepInterval: cfg.Periods.SweepInterval,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	// Стартовая сверка выравнивает членство после простоя: за время
	// остановки подписки могли истечь, а удаления — не состояться.
	if err := a.reconciler.RunStartupVerification(ctx); err != nil {
		a.logger.Error("startup verification failed", sl.Err(err))
	}

	go a.reconciler.Start(ctx, a.sweepInterval)
	go a.reminder.Start(ctx, a.sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
