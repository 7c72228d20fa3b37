package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
)

// Transfer moves funds between two of the requester's cards. Validation is
// ordered, first failing rule wins; the balance mutations and the history
// row commit as one transaction or not at all.
func (s *Service) Transfer(ctx context.Context, req Request) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	fromNumber, toNumber, err := req.normalize()
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	from, err := s.resolveCard(ctx, fromNumber)
	if err != nil {
		return nil, fmt.Errorf("Transfer: source: %w", err)
	}
	to, err := s.resolveCard(ctx, toNumber)
	if err != nil {
		return nil, fmt.Errorf("Transfer: destination: %w", err)
	}

	if err := verifyTransferable(from, to, req.RequesterID); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrInvalidAmount)
	}

	t, err := s.execute(ctx, req, from, to)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	log.Info("transfer completed",
		"transfer_id", t.ID,
		"from_card", from.ID,
		"to_card", to.ID,
		"amount", req.Amount,
	)
	return t, nil
}

func (s *Service) execute(ctx context.Context, req Request, from, to *domain.Card) (*domain.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("execute: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.lockAccountsInOrder(ctx, tx, from.AccountID, to.AccountID)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	source, dest := locked[from.AccountID], locked[to.AccountID]

	// Re-checked under the row locks: pre-validation reads may be stale. A
	// card blocked after the first read must not move money.
	for _, id := range []uuid.UUID{from.ID, to.ID} {
		c, err := s.cards.GetByIDTx(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		if c.Status != domain.StatusActive {
			return nil, fmt.Errorf("execute: card %s: %w", c.ID, domain.ErrCardInactive)
		}
	}
	if source.Currency != dest.Currency {
		return nil, fmt.Errorf("execute: %w", domain.ErrCurrencyMismatch)
	}
	if source.Balance.LessThan(req.Amount) {
		return nil, fmt.Errorf("execute: %w", domain.ErrInsufficientFunds)
	}

	newSource := source.Balance.Sub(req.Amount)
	newDest := dest.Balance.Add(req.Amount)

	if err := s.accounts.UpdateBalanceTx(ctx, tx, source.ID, newSource, source.Version+1); err != nil {
		return nil, fmt.Errorf("execute: debit: %w", err)
	}
	if err := s.accounts.UpdateBalanceTx(ctx, tx, dest.ID, newDest, dest.Version+1); err != nil {
		return nil, fmt.Errorf("execute: credit: %w", err)
	}

	t := &domain.Transfer{
		ID:               uuid.New(),
		FromCardID:       from.ID,
		ToCardID:         to.ID,
		Amount:           req.Amount,
		Comment:          req.Comment,
		FromBalanceAfter: newSource,
		ToBalanceAfter:   newDest,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.transfers.CreateTx(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("execute: history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("execute: commit: %w", err)
	}
	return t, nil
}

// lockAccountsInOrder acquires FOR UPDATE locks in ascending account-id
// order so two opposite transfers over the same pair cannot deadlock.
func (s *Service) lockAccountsInOrder(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range sorted {
		account, err := s.accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		result[id] = account
	}
	return result, nil
}
