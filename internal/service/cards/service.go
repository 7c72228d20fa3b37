package cards

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/config"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
)

type cardRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, c *domain.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	GetByNumberHash(ctx context.Context, hash string) (*domain.Card, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Card, int, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Card, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type accountRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, a *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Service struct {
	cards    cardRepo
	accounts accountRepo
	users    userRepo
	vault    *card.Vault
	gen      *card.NumberGenerator
	db       *sql.DB
	cfg      *config.Config
}

func NewService(
	cards cardRepo,
	accounts accountRepo,
	users userRepo,
	vault *card.Vault,
	gen *card.NumberGenerator,
	db *sql.DB,
	cfg *config.Config,
) *Service {
	return &Service{
		cards:    cards,
		accounts: accounts,
		users:    users,
		vault:    vault,
		gen:      gen,
		db:       db,
		cfg:      cfg,
	}
}

func assertOwner(c *domain.Card, requesterID uuid.UUID) error {
	if !c.OwnedBy(requesterID) {
		return fmt.Errorf("assertOwner: card %s: %w", c.ID, domain.ErrAccessDenied)
	}
	return nil
}

func (s *Service) ListCards(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Card, int, error) {
	cards, total, err := s.cards.ListByUserID(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListCards: %w", err)
	}
	return cards, total, nil
}

// ListAllCards is the administrative listing across every user.
func (s *Service) ListAllCards(ctx context.Context, limit, offset int) ([]domain.Card, int, error) {
	cards, total, err := s.cards.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAllCards: %w", err)
	}
	return cards, total, nil
}

type BalanceInfo struct {
	CardMask string
	Balance  decimal.Decimal
	Currency domain.Currency
}

func (s *Service) CheckBalance(ctx context.Context, requesterID, cardID uuid.UUID) (*BalanceInfo, error) {
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("CheckBalance: %w", err)
	}
	if err := assertOwner(c, requesterID); err != nil {
		return nil, fmt.Errorf("CheckBalance: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, c.AccountID)
	if err != nil {
		return nil, fmt.Errorf("CheckBalance: %w", err)
	}

	return &BalanceInfo{
		CardMask: c.Masked(),
		Balance:  account.Balance,
		Currency: account.Currency,
	}, nil
}

// RequestBlock lets a card owner block their own card.
func (s *Service) RequestBlock(ctx context.Context, requesterID, cardID uuid.UUID) error {
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return fmt.Errorf("RequestBlock: %w", err)
	}
	if err := assertOwner(c, requesterID); err != nil {
		return fmt.Errorf("RequestBlock: %w", err)
	}

	if err := s.cards.UpdateStatus(ctx, cardID, domain.StatusBlocked); err != nil {
		return fmt.Errorf("RequestBlock: %w", err)
	}

	logging.FromContext(ctx).Info("card blocked by owner", "card_id", cardID, "user_id", requesterID)
	return nil
}

// UpdateStatus is the administrative transition, scoped to the card's owner:
// a cardID under the wrong owner reads as AccessDenied. Any transition
// between the known statuses is allowed.
func (s *Service) UpdateStatus(ctx context.Context, ownerID, cardID uuid.UUID, status domain.Status) (*domain.Card, error) {
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	if err := assertOwner(c, ownerID); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	if err := s.cards.UpdateStatus(ctx, cardID, status); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	c.Status = status

	logging.FromContext(ctx).Info("card status changed", "card_id", cardID, "status", status)
	return c, nil
}

// Remove deletes a card and its account as one unit of work, scoped to the
// card's owner. The account balance is checked under a row lock so a
// concurrent credit cannot slip in between the check and the delete.
func (s *Service) Remove(ctx context.Context, ownerID, cardID uuid.UUID) error {
	c, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	if err := assertOwner(c, ownerID); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Remove: begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, c.AccountID)
	if err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	if account.Balance.IsPositive() {
		return fmt.Errorf("Remove: %w", domain.ErrCardHasBalance)
	}

	if err := s.cards.DeleteTx(ctx, tx, cardID); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	if err := s.accounts.DeleteTx(ctx, tx, account.ID); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Remove: commit: %w", err)
	}

	logging.FromContext(ctx).Info("card removed", "card_id", cardID, "account_id", account.ID)
	return nil
}
