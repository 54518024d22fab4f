// Package bot предоставляет маршруты для основного приложения.
package bot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/admin/importusers"
	adminsweep "github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/admin/sweep"
	adminwhitelist "github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/admin/whitelist"
	"github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/payment/link"
	"github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/payment/redirect"
	"github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/payment/result"
	"github.com/magabrotheeeer/channel-access-bot/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/channel-access-bot/internal/http/middlewarectx"
	adminservice "github.com/magabrotheeeer/channel-access-bot/internal/services/admin"
	paymentservice "github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
	subservice "github.com/magabrotheeeer/channel-access-bot/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker middlewarectx.TokenParser,
	paymentService *paymentservice.Service, subscriptionService *subservice.Service,
	adminService *adminservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	// Конечные точки платёжного шлюза: уведомление приходит и POST, и GET.
	resultHandler := result.New(logger, paymentService)
	r.Post("/robokassa/result", resultHandler.ServeHTTP)
	r.Get("/robokassa/result", resultHandler.ServeHTTP)
	r.Get("/robokassa/success", redirect.Success(logger))
	r.Get("/robokassa/fail", redirect.Fail(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/{telegramID}/subscriptions", list.New(logger, subscriptionService).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/payments/link", link.New(logger, paymentService).ServeHTTP)
		})

		// Админская группа: JWT с ролью admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.AdminOnlyMiddleware(logger))
			r.Post("/sweep", adminsweep.New(logger, adminService).ServeHTTP)
			r.Post("/import", importusers.New(logger, adminService).ServeHTTP)

			whitelistHandler := adminwhitelist.New(logger, adminService)
			r.Post("/whitelist", whitelistHandler.Add)
			r.Delete("/whitelist", whitelistHandler.Remove)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
