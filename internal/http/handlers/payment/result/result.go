// Package result реализует HTTP-обработчик серверного уведомления
// Robokassa (ResultURL) об оплате счёта.
//
// Шлюз шлёт параметры формой или строкой запроса и ожидает ответ
// text/plain. Принятое уведомление подтверждается телом `OK<InvId>` —
// байт в байт одинаковым для первого и повторного уведомления, иначе
// шлюз продолжит повторять доставку.
package result

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/channel-access-bot/internal/lib/sl"
	"github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
)

// Handler обрабатывает уведомления платёжного шлюза.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс подтверждения платежа.
type Service interface {
	Confirm(ctx context.Context, invoiceID, outSum, signature string, shp map[string]string) payment.ConfirmResult
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Уведомление Robokassa об оплате (ResultURL)
// @Description Принимает серверное уведомление шлюза, проверяет подпись и сумму, выдаёт доступ и отвечает text/plain подтверждением OK<InvId>.
// @Tags Payments
// @Accept x-www-form-urlencoded
// @Produce plain
// @Param OutSum formData string true "Сумма платежа"
// @Param InvId formData string true "Номер счёта"
// @Param SignatureValue formData string true "Подпись уведомления"
// @Success 200 {string} string "OK<InvId>"
// @Failure 400 {string} string "ERROR: описание причины"
// @Router /robokassa/result [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.result"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := r.ParseForm(); err != nil {
		log.Error("failed to parse form", sl.Err(err))
		writePlain(w, http.StatusBadRequest, "ERROR: bad request")
		return
	}

	invoiceID := r.Form.Get("InvId")
	outSum := r.Form.Get("OutSum")
	signature := r.Form.Get("SignatureValue")
	if invoiceID == "" || outSum == "" || signature == "" {
		log.Warn("notification with missing parameters")
		writePlain(w, http.StatusBadRequest, "ERROR: missing parameters")
		return
	}

	shp := make(map[string]string)
	for key := range r.Form {
		if strings.HasPrefix(key, "Shp_") {
			shp[key] = r.Form.Get(key)
		}
	}

	result := h.service.Confirm(r.Context(), invoiceID, outSum, signature, shp)
	if result.Confirmed() {
		log.Info("notification accepted", slog.String("invoice_id", invoiceID))
		writePlain(w, http.StatusOK, "OK"+invoiceID)
		return
	}

	log.Warn("notification rejected",
		slog.String("invoice_id", invoiceID),
		slog.String("result", string(result)))
	writePlain(w, http.StatusBadRequest, fmt.Sprintf("ERROR: %s", result))
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
