// Package link реализует HTTP-обработчик выставления платёжной ссылки.
//
// Handler принимает JSON с telegram_id и каналом, валидирует их и
// возвращает подписанную ссылку шлюза вместе с номером счёта. Цена
// берётся из конфигурации канала, клиентской сумме доверия нет.
package link

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/channel-access-bot/internal/http/response"
	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
)

// Request тело запроса на выставление счёта.
type Request struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=channel_1 channel_2"`
}

// Handler управляет HTTP-запросами на выставление платёжных ссылок.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс выставления счёта.
type Service interface {
	IssueLink(ctx context.Context, telegramID int64, channel string) (string, string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выставить платёжную ссылку
// @Description Генерирует счёт Robokassa для указанного пользователя и канала. Возвращает ссылку на оплату и номер счёта.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь и канал"
// @Success 200 {object} map[string]any "Ссылка и номер счёта"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный канал"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/payments/link [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.link"
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

	link, invoiceID, err := h.service.IssueLink(r.Context(), req.TelegramID, req.Channel)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownChannel) {
			log.Warn("unknown channel requested", slog.String("channel", req.Channel))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown channel"))
			return
		}
		log.Error("failed to issue payment link", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not issue payment link"))
		return
	}

	log.Info("payment link issued",
		slog.Int64("telegram_id", req.TelegramID),
		slog.String("invoice_id", invoiceID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"link":       link,
		"invoice_id": invoiceID,
	}))
}
