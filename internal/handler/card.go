package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mivanov-dev/bank-cards/internal/auth"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
	"github.com/mivanov-dev/bank-cards/internal/service/cards"
)

type cardService interface {
	ListCards(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Card, int, error)
	CheckBalance(ctx context.Context, requesterID, cardID uuid.UUID) (*cards.BalanceInfo, error)
	RequestBlock(ctx context.Context, requesterID, cardID uuid.UUID) error
}

type CardHandler struct {
	cards cardService
}

func NewCardHandler(cards cardService) *CardHandler {
	return &CardHandler{cards: cards}
}

type cardDTO struct {
	ID        uuid.UUID `json:"id"`
	CardMask  string    `json:"card_mask"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toCardDTO(c *domain.Card) cardDTO {
	return cardDTO{
		ID:        c.ID,
		CardMask:  c.Masked(),
		Status:    string(c.Status),
		ExpiresAt: c.ExpiresAt,
		CreatedAt: c.CreatedAt,
	}
}

type cardListResponse struct {
	Cards []cardDTO `json:"cards"`
	Total int       `json:"total"`
}

type balanceDTO struct {
	CardMask string `json:"card_mask"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// pagination reads page/limit query params, clamped to sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	return limit, (page - 1) * limit
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit, offset := pagination(r)
	list, total, err := h.cards.ListCards(r.Context(), userID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]cardDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toCardDTO(&list[i]))
	}
	RespondSuccess(w, http.StatusOK, cardListResponse{Cards: dtos, Total: total})
}

func (h *CardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	cardID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	info, err := h.cards.CheckBalance(r.Context(), userID, cardID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("balance check failed", "card_id", cardID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{
		CardMask: info.CardMask,
		Balance:  info.Balance.StringFixed(2),
		Currency: string(info.Currency),
	})
}

func (h *CardHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	cardID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.cards.RequestBlock(r.Context(), userID, cardID); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"status": string(domain.StatusBlocked)})
}
