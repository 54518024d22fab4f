// Package whitelist реализует HTTP-обработчики управления whitelist:
// защита пары (пользователь, канал) от удаления при истечении подписки
// и снятие этой защиты.
package whitelist

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/channel-access-bot/internal/http/response"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
)

// Request тело запроса на изменение whitelist.
type Request struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=channel_1 channel_2"`
}

// Handler управляет HTTP-запросами на изменение whitelist.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс управления whitelist.
type Service interface {
	AddToWhitelist(ctx context.Context, telegramID int64, channel string) error
	RemoveFromWhitelist(ctx context.Context, telegramID int64, channel string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Add godoc
// @Summary Добавить пару в whitelist
// @Description Защищает пару (пользователь, канал) от удаления из канала при истечении подписки.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Пользователь и канал"
// @Success 200 {object} response.Response "Успех"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/admin/whitelist [post]
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "handlers.admin.whitelist.add", h.service.AddToWhitelist)
}

// Remove godoc
// @Summary Убрать пару из whitelist
// @Description Снимает защиту: пользователь будет удалён из канала ближайшим проходом, если подписка истекла.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Пользователь и канал"
// @Success 200 {object} response.Response "Успех"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/admin/whitelist [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "handlers.admin.whitelist.remove", h.service.RemoveFromWhitelist)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, op string,
	action func(ctx context.Context, telegramID int64, channel string) error) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := action(r.Context(), req.TelegramID, req.Channel); err != nil {
		log.Error("whitelist update failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("whitelist update failed"))
		return
	}

	log.Info("whitelist updated",
		slog.Int64("telegram_id", req.TelegramID),
		slog.String("channel", req.Channel))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
