// Package importusers реализует HTTP-обработчик массового импорта
// пользователей с подарочным доступом к channel_1.
package importusers

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
	"github.com/magabrotheeeer/channel-access-bot/internal/services/admin"
)

// Request тело запроса на импорт: список telegram_id или @username.
type Request struct {
	Identifiers []string `json:"identifiers" validate:"required,min=1"`
}

// Handler управляет HTTP-запросами на импорт пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс импорта пользователей.
type Service interface {
	ImportUsers(ctx context.Context, identifiers []string) (*admin.ImportReport, error)
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
// @Summary Импортировать пользователей с подарочным доступом
// @Description Выдаёт подарочный пробный доступ к channel_1 списку идентификаторов (telegram_id или @username). Возвращает итог импорта и список неразрешённых идентификаторов.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Список идентификаторов"
// @Success 200 {object} map[string]any "Итог импорта"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/admin/import [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.importusers"
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

	report, err := h.service.ImportUsers(r.Context(), req.Identifiers)
	if err != nil {
		log.Error("import failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("import failed"))
		return
	}

	log.Info("import finished",
		slog.Int("total", report.Total),
		slog.Int("gifted", report.Gifted),
		slog.Int("unresolved", len(report.Unresolved)))
	render.JSON(w, r, response.StatusOKWithData(report))
}
