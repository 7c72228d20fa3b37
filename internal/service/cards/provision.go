package cards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/logging"
)

// Provision creates a zero-balance account and a card for it as one unit of
// work. A collision on the number lookup hash rolls the whole attempt back
// and retries with the next account sequence, which deterministically yields
// a different number. The raw PIN buffer is scrubbed on every path.
func (s *Service) Provision(ctx context.Context, ownerID uuid.UUID, pin []byte) (*domain.Card, error) {
	log := logging.FromContext(ctx)

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		card.Scrub(pin)
		return nil, fmt.Errorf("Provision: owner: %w", err)
	}

	pinHash, err := s.vault.HashPIN(pin)
	if err != nil {
		return nil, fmt.Errorf("Provision: %w", err)
	}

	var created *domain.Card
	attempt := 0

	operation := func() error {
		attempt++
		c, err := s.provisionOnce(ctx, owner.ID, pinHash)
		if err != nil {
			if errors.Is(err, domain.ErrCardExists) {
				log.Warn("card number collision, retrying", "owner_id", ownerID, "attempt", attempt)
				return err
			}
			return backoff.Permanent(err)
		}
		created = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(s.cfg.ProvisionRetryDelayMs) * time.Millisecond
	retries := uint64(0)
	if s.cfg.ProvisionMaxAttempts > 1 {
		retries = uint64(s.cfg.ProvisionMaxAttempts - 1)
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)); err != nil {
		if errors.Is(err, domain.ErrCardExists) {
			log.Error("card provisioning exhausted retries", "owner_id", ownerID, "attempts", attempt)
			return nil, fmt.Errorf("Provision: %w", domain.ErrProvisioningFailed)
		}
		return nil, fmt.Errorf("Provision: %w", err)
	}

	log.Info("card provisioned",
		"card_id", created.ID,
		"owner_id", ownerID,
		"last_four", created.LastFour,
		"attempts", attempt,
	)
	return created, nil
}

func (s *Service) provisionOnce(ctx context.Context, ownerID uuid.UUID, pinHash string) (*domain.Card, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("provisionOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		UserID:    ownerID,
		Balance:   decimal.Zero,
		Currency:  domain.Currency(s.cfg.DefaultCurrency),
		Status:    domain.StatusActive,
		Version:   1,
		CreatedAt: now,
	}
	if err := s.accounts.CreateTx(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("provisionOnce: account: %w", err)
	}

	number, err := s.gen.Generate(account.Seq)
	if err != nil {
		return nil, fmt.Errorf("provisionOnce: %w", err)
	}

	hash, err := s.vault.LookupHash(number)
	if err != nil {
		return nil, fmt.Errorf("provisionOnce: %w", err)
	}
	encrypted, err := s.vault.Encrypt(number)
	if err != nil {
		return nil, fmt.Errorf("provisionOnce: %w", err)
	}

	c := &domain.Card{
		ID:              uuid.New(),
		NumberHash:      hash,
		NumberEncrypted: encrypted,
		LastFour:        card.Last4(number),
		PINHash:         pinHash,
		Status:          domain.StatusActive,
		AccountID:       account.ID,
		UserID:          ownerID,
		CreatedAt:       now,
		ExpiresAt:       now.AddDate(4, 0, 0),
	}
	if err := s.cards.CreateTx(ctx, tx, c); err != nil {
		// Rollback discards the account too, so a hash collision leaves
		// nothing behind.
		return nil, fmt.Errorf("provisionOnce: card: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("provisionOnce: commit: %w", err)
	}
	return c, nil
}
