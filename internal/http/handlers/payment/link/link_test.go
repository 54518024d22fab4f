package link

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) IssueLink(ctx context.Context, telegramID int64, channel string) (string, string, error) {
	args := m.Called(ctx, telegramID, channel)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func postJSON(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/link",
		bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIssueLink(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("IssueLink", mock.Anything, int64(42), "channel_2").
		Return("https://auth.robokassa.ru/Merchant/Index.aspx?InvId=1755900000000123",
			"1755900000000123", nil).Once()

	handler := New(newNoopLogger(), svc)
	rec := postJSON(handler, `{"telegram_id": 42, "channel": "channel_2"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Link      string `json:"link"`
			InvoiceID string `json:"invoice_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "1755900000000123", resp.Data.InvoiceID)
	assert.Contains(t, resp.Data.Link, "InvId=1755900000000123")
	svc.AssertExpectations(t)
}

func TestIssueLinkValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "invalid json",
			body:     `{"telegram_id": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing telegram_id",
			body:     `{"channel": "channel_1"}`,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "channel outside the known set",
			body:     `{"telegram_id": 42, "channel": "channel_3"}`,
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			handler := New(newNoopLogger(), svc)

			rec := postJSON(handler, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			svc.AssertNotCalled(t, "IssueLink")
		})
	}
}

func TestIssueLinkUnknownChannel(t *testing.T) {
	// Канал проходит валидацию формата, но не сконфигурирован на сервере.
	svc := new(ServiceMock)
	svc.On("IssueLink", mock.Anything, int64(42), "channel_1").
		Return("", "", payment.ErrUnknownChannel).Once()

	handler := New(newNoopLogger(), svc)
	rec := postJSON(handler, `{"telegram_id": 42, "channel": "channel_1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown channel")
	svc.AssertExpectations(t)
}
