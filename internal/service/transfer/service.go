package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/domain"
)

type cardRepo interface {
	GetByNumberHash(ctx context.Context, hash string) (*domain.Card, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Card, error)
}

type accountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalanceTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, newVersion int64) error
}

type transferRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
}

type Service struct {
	cards     cardRepo
	accounts  accountRepo
	transfers transferRepo
	vault     *card.Vault
	db        *sql.DB
}

func NewService(cards cardRepo, accounts accountRepo, transfers transferRepo, vault *card.Vault, db *sql.DB) *Service {
	return &Service{
		cards:     cards,
		accounts:  accounts,
		transfers: transfers,
		vault:     vault,
		db:        db,
	}
}

// Request carries a transfer order between two of the requester's cards,
// addressed by raw card number.
type Request struct {
	RequesterID uuid.UUID
	FromNumber  string
	ToNumber    string
	Amount      decimal.Decimal
	Comment     *string
}

// normalize strips whitespace from both numbers and rejects blank or
// identical ones. Returned values are the canonical numbers.
func (r Request) normalize() (string, string, error) {
	from := card.Normalize(r.FromNumber)
	to := card.Normalize(r.ToNumber)

	if from == "" || to == "" {
		return "", "", fmt.Errorf("normalize: %w", domain.ErrInvalidCardNumber)
	}
	if from == to {
		return "", "", fmt.Errorf("normalize: %w", domain.ErrSameCard)
	}
	return from, to, nil
}

// verifyTransferable holds the card-level rules: both cards must belong to
// the requester (transfers run only between one user's own cards) and both
// must be ACTIVE.
func verifyTransferable(from, to *domain.Card, requesterID uuid.UUID) error {
	if !from.OwnedBy(requesterID) || !to.OwnedBy(requesterID) {
		return fmt.Errorf("verifyTransferable: %w", domain.ErrAccessDenied)
	}
	if from.Status != domain.StatusActive {
		return fmt.Errorf("verifyTransferable: source: %w", domain.ErrCardInactive)
	}
	if to.Status != domain.StatusActive {
		return fmt.Errorf("verifyTransferable: destination: %w", domain.ErrCardInactive)
	}
	return nil
}

func (s *Service) resolveCard(ctx context.Context, number string) (*domain.Card, error) {
	hash, err := s.vault.LookupHash(number)
	if err != nil {
		return nil, fmt.Errorf("resolveCard: %w", err)
	}
	c, err := s.cards.GetByNumberHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("resolveCard: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("resolveCard: %w", err)
	}
	return c, nil
}
