package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mivanov-dev/bank-cards/internal/auth"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
	"github.com/mivanov-dev/bank-cards/internal/service/transfer"
)

type transferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*domain.Transfer, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type createTransferRequest struct {
	FromCardNumber string  `json:"from_card_number"`
	ToCardNumber   string  `json:"to_card_number"`
	Amount         string  `json:"amount"`
	Comment        *string `json:"comment"`
}

func (r createTransferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.FromCardNumber == "" {
		errs = append(errs, FieldError{Field: "from_card_number", Message: "required"})
	}
	if r.ToCardNumber == "" {
		errs = append(errs, FieldError{Field: "to_card_number", Message: "required"})
	}
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Amount); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal"})
	}
	return errs
}

type transferDTO struct {
	ID               uuid.UUID `json:"id"`
	FromCardID       uuid.UUID `json:"from_card_id"`
	ToCardID         uuid.UUID `json:"to_card_id"`
	Amount           string    `json:"amount"`
	Comment          *string   `json:"comment,omitempty"`
	FromBalanceAfter string    `json:"from_balance_after"`
	ToBalanceAfter   string    `json:"to_balance_after"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:               t.ID,
		FromCardID:       t.FromCardID,
		ToCardID:         t.ToCardID,
		Amount:           t.Amount.StringFixed(2),
		Comment:          t.Comment,
		FromBalanceAfter: t.FromBalanceAfter.StringFixed(2),
		ToBalanceAfter:   t.ToBalanceAfter.StringFixed(2),
		CreatedAt:        t.CreatedAt,
	}
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondAppError(w, ErrInvalidAmount, nil)
		return
	}

	tr, err := h.transfers.Transfer(r.Context(), transfer.Request{
		RequesterID: userID,
		FromNumber:  req.FromCardNumber,
		ToNumber:    req.ToCardNumber,
		Amount:      amount,
		Comment:     req.Comment,
	})
	if err != nil {
		log.Warn("transfer failed", "user_id", userID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransferDTO(tr))
}
