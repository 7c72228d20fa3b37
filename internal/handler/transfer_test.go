package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mivanov-dev/bank-cards/internal/auth"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/service/transfer"
)

type mockTransferService struct {
	got    transfer.Request
	result *domain.Transfer
	err    error
}

func (m *mockTransferService) Transfer(_ context.Context, req transfer.Request) (*domain.Transfer, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func authedRequest(t *testing.T, userID uuid.UUID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	ctx := auth.ContextWithUser(req.Context(), userID, domain.RoleUser)
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestTransferHandler_Create(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mockTransferService{
			result: &domain.Transfer{
				ID:               uuid.New(),
				FromCardID:       uuid.New(),
				ToCardID:         uuid.New(),
				Amount:           decimal.RequireFromString("200.00"),
				FromBalanceAfter: decimal.RequireFromString("800.00"),
				ToBalanceAfter:   decimal.RequireFromString("300.00"),
				CreatedAt:        time.Now().UTC(),
			},
		}
		h := NewTransferHandler(svc)

		rec := httptest.NewRecorder()
		h.Create(rec, authedRequest(t, userID,
			`{"from_card_number":"2202200000000017","to_card_number":"2202200000000025","amount":"200.00"}`))

		assert.Equal(t, http.StatusCreated, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, userID, svc.got.RequesterID)
		assert.True(t, svc.got.Amount.Equal(decimal.RequireFromString("200.00")))
	})

	t.Run("missing token", func(t *testing.T) {
		h := NewTransferHandler(&mockTransferService{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{}`))
		h.Create(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"malformed json", `{`},
			{"missing numbers", `{"amount":"10.00"}`},
			{"zero amount", `{"from_card_number":"1","to_card_number":"2","amount":"0"}`},
			{"negative amount", `{"from_card_number":"1","to_card_number":"2","amount":"-5.00"}`},
			{"non-decimal amount", `{"from_card_number":"1","to_card_number":"2","amount":"ten"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &mockTransferService{}
				h := NewTransferHandler(svc)

				rec := httptest.NewRecorder()
				h.Create(rec, authedRequest(t, userID, tt.body))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, uuid.Nil, svc.got.RequesterID, "service must not be called")
			})
		}
	})

	t.Run("domain errors map to stable codes", func(t *testing.T) {
		tests := []struct {
			err        error
			wantStatus int
			wantCode   string
		}{
			{domain.ErrNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
			{domain.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
			{domain.ErrSameCard, http.StatusUnprocessableEntity, "SAME_CARD"},
			{domain.ErrCardInactive, http.StatusUnprocessableEntity, "CARD_INACTIVE"},
			{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
			{domain.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "CURRENCY_MISMATCH"},
		}
		for _, tt := range tests {
			t.Run(tt.wantCode, func(t *testing.T) {
				h := NewTransferHandler(&mockTransferService{err: tt.err})

				rec := httptest.NewRecorder()
				h.Create(rec, authedRequest(t, userID,
					`{"from_card_number":"2202200000000017","to_card_number":"2202200000000025","amount":"10.00"}`))

				assert.Equal(t, tt.wantStatus, rec.Code)
				resp := decodeResponse(t, rec)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			})
		}
	})
}
