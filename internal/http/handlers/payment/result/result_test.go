package result

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-access-bot/internal/services/payment"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Confirm(ctx context.Context, invoiceID, outSum, signature string, shp map[string]string) payment.ConfirmResult {
	args := m.Called(ctx, invoiceID, outSum, signature, shp)
	return args.Get(0).(payment.ConfirmResult)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func postForm(handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/robokassa/result",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestResultOK(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Confirm", mock.Anything, "1755900000000123", "2490.00", "abc123",
		map[string]string{}).Return(payment.ResultOK).Once()

	handler := New(newNoopLogger(), svc)
	rec := postForm(handler, url.Values{
		"InvId":          {"1755900000000123"},
		"OutSum":         {"2490.00"},
		"SignatureValue": {"abc123"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK1755900000000123", rec.Body.String())
	svc.AssertExpectations(t)
}

func TestResultDuplicateAckIsByteIdentical(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Confirm", mock.Anything, "1755900000000123", "2490.00", "abc123",
		map[string]string{}).Return(payment.ResultOK).Once()
	svc.On("Confirm", mock.Anything, "1755900000000123", "2490.00", "abc123",
		map[string]string{}).Return(payment.ResultAlreadyConfirmed).Once()

	handler := New(newNoopLogger(), svc)
	form := url.Values{
		"InvId":          {"1755900000000123"},
		"OutSum":         {"2490.00"},
		"SignatureValue": {"abc123"},
	}

	first := postForm(handler, form)
	second := postForm(handler, form)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestResultRejected(t *testing.T) {
	tests := []struct {
		name   string
		result payment.ConfirmResult
	}{
		{"bad signature", payment.ResultBadSignature},
		{"amount mismatch", payment.ResultAmountMismatch},
		{"unknown invoice", payment.ResultUnknownInvoice},
		{"processing failed", payment.ResultProcessingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(tt.result).Once()

			handler := New(newNoopLogger(), svc)
			rec := postForm(handler, url.Values{
				"InvId":          {"1"},
				"OutSum":         {"1.00"},
				"SignatureValue": {"x"},
			})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Body.String(), "ERROR:"))
		})
	}
}

func TestResultMissingParameters(t *testing.T) {
	svc := new(ServiceMock)
	handler := New(newNoopLogger(), svc)

	rec := postForm(handler, url.Values{"InvId": {"1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResultShpParamsExtracted(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Confirm", mock.Anything, "1", "1.00", "x",
		map[string]string{"Shp_channel": "channel_2", "Shp_uid": "42"}).
		Return(payment.ResultOK).Once()

	handler := New(newNoopLogger(), svc)
	rec := postForm(handler, url.Values{
		"InvId":          {"1"},
		"OutSum":         {"1.00"},
		"SignatureValue": {"x"},
		"Shp_channel":    {"channel_2"},
		"Shp_uid":        {"42"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestResultAcceptsQueryString(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Confirm", mock.Anything, "1", "1.00", "x", map[string]string{}).
		Return(payment.ResultOK).Once()

	handler := New(newNoopLogger(), svc)
	req := httptest.NewRequest(http.MethodGet,
		"/robokassa/result?InvId=1&OutSum=1.00&SignatureValue=x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK1", rec.Body.String())
}
