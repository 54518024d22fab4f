// Package redirect реализует страницы, на которые шлюз возвращает
// пользователя после оплаты (SuccessURL и FailURL). Выдача доступа
// здесь не происходит: единственный источник истины — серверное
// уведомление ResultURL.
package redirect

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
)

const successPage = `<!DOCTYPE html>
<html lang="ru">
<head><meta charset="utf-8"><title>Оплата получена</title></head>
<body>
<h1>✅ Оплата получена</h1>
<p>Спасибо! Ссылка на канал придёт вам в личные сообщения от бота в течение минуты.</p>
</body>
</html>`

const failPage = `<!DOCTYPE html>
<html lang="ru">
<head><meta charset="utf-8"><title>Оплата не завершена</title></head>
<body>
<h1>❌ Оплата не завершена</h1>
<p>Платёж был отменён или не прошёл. Вернитесь к боту и запросите новую ссылку на оплату.</p>
</body>
</html>`

// Success возвращает обработчик страницы успешной оплаты.
func Success(log *slog.Logger) http.HandlerFunc {
	return page(log, "handlers.payment.redirect.success", successPage)
}

// Fail возвращает обработчик страницы неуспешной оплаты.
func Fail(log *slog.Logger) http.HandlerFunc {
	return page(log, "handlers.payment.redirect.fail", failPage)
}

func page(log *slog.Logger, op, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("payment redirect page served",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
