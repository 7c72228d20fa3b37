package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
)

type adminCardService interface {
	Provision(ctx context.Context, ownerID uuid.UUID, pin []byte) (*domain.Card, error)
	UpdateStatus(ctx context.Context, ownerID, cardID uuid.UUID, status domain.Status) (*domain.Card, error)
	Remove(ctx context.Context, ownerID, cardID uuid.UUID) error
	ListCards(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Card, int, error)
	ListAllCards(ctx context.Context, limit, offset int) ([]domain.Card, int, error)
}

type userLister interface {
	List(ctx context.Context) ([]domain.User, error)
}

type AdminHandler struct {
	cards adminCardService
	users userLister
}

func NewAdminHandler(cards adminCardService, users userLister) *AdminHandler {
	return &AdminHandler{cards: cards, users: users}
}

type provisionRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

func (r provisionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.UserID == "" {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	} else if _, err := uuid.Parse(r.UserID); err != nil {
		errs = append(errs, FieldError{Field: "user_id", Message: "must be a uuid"})
	}
	if r.PIN == "" {
		errs = append(errs, FieldError{Field: "pin", Message: "required"})
	}
	return errs
}

func (h *AdminHandler) ProvisionCard(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	ownerID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	c, err := h.cards.Provision(r.Context(), ownerID, []byte(req.PIN))
	if err != nil {
		logging.FromContext(r.Context()).Warn("card provisioning failed", "owner_id", ownerID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toCardDTO(c))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// ownerAndCardIDs parses the {userID}/{cardID} pair shared by the
// owner-scoped admin routes.
func ownerAndCardIDs(r *http.Request) (ownerID, cardID uuid.UUID, err error) {
	ownerID, err = uuid.Parse(r.PathValue("userID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	cardID, err = uuid.Parse(r.PathValue("cardID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return ownerID, cardID, nil
}

func (h *AdminHandler) UpdateCardStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, cardID, err := ownerAndCardIDs(r)
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	status := domain.Status(req.Status)
	switch status {
	case domain.StatusActive, domain.StatusBlocked, domain.StatusSuspended:
	default:
		RespondValidationError(w, []FieldError{
			{Field: "status", Message: "must be ACTIVE, BLOCKED, or SUSPENDED"},
		})
		return
	}

	c, err := h.cards.UpdateStatus(r.Context(), ownerID, cardID, status)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCardDTO(c))
}

func (h *AdminHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	ownerID, cardID, err := ownerAndCardIDs(r)
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.cards.Remove(r.Context(), ownerID, cardID); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) ListAllCards(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, total, err := h.cards.ListAllCards(r.Context(), limit, offset)
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

type adminUserDTO struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]adminUserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, adminUserDTO{
			ID:        u.ID,
			Username:  u.Username,
			Role:      string(u.Role),
			Status:    string(u.Status),
			CreatedAt: u.CreatedAt,
		})
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"users": dtos})
}

func (h *AdminHandler) ListUserCards(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
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
