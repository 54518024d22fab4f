// Package sweep реализует HTTP-обработчик ручного запуска фоновых
// проходов: деактивация истёкших подписок и доставка напоминаний.
package sweep

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/channel-access-bot/internal/http/response"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
)

// Handler управляет ручным запуском проходов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс запуска проходов.
type Service interface {
	RunSweeps(ctx context.Context) (expired, reminded int, err error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить фоновые проходы вручную
// @Description Запускает проход по истёкшим подпискам и доставку наступивших напоминаний. Возвращает количество обработанных записей.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Итоги проходов"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/admin/sweep [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.sweep"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	expired, reminded, err := h.service.RunSweeps(r.Context())
	if err != nil {
		log.Error("sweep failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("sweep failed"))
		return
	}

	log.Info("manual sweep finished",
		slog.Int("expired", expired),
		slog.Int("reminded", reminded))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"expired":  expired,
		"reminded": reminded,
	}))
}
