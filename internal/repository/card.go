package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mivanov-dev/bank-cards/internal/domain"
)

const cardColumns = `id, number_hash, number_encrypted, last_four, pin_hash,
	status, account_id, user_id, created_at, expires_at`

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) CreateTx(ctx context.Context, tx *sql.Tx, card *domain.Card) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cards (
			id, number_hash, number_encrypted, last_four, pin_hash,
			status, account_id, user_id, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		card.ID, card.NumberHash, card.NumberEncrypted, card.LastFour, card.PINHash,
		card.Status, card.AccountID, card.UserID, card.CreatedAt, card.ExpiresAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("CreateTx: %w", domain.ErrCardExists)
		}
		return fmt.Errorf("CreateTx: %w", err)
	}
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

func (r *CardRepository) GetByNumberHash(ctx context.Context, hash string) (*domain.Card, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE number_hash = $1`, hash,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByNumberHash: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByNumberHash: %w", err)
	}
	return c, nil
}

// GetByIDTx reads the card inside the given transaction, so callers holding
// row locks see the committed state as of lock acquisition.
func (r *CardRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Card, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIDTx: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIDTx: %w", err)
	}
	return c, nil
}

// ListByUserID returns one page of the owner's cards plus the total count.
func (r *CardRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Card, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUserID: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUserID: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUserID: scan: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByUserID: rows: %w", err)
	}
	return cards, total, nil
}

// ListAll returns one page across every user's cards, newest first.
func (r *CardRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Card, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAll: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAll: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListAll: scan: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListAll: rows: %w", err)
	}
	return cards, total, nil
}

func (r *CardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = $1 WHERE id = $2`, status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *CardRepository) DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteTx: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteTx: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("DeleteTx: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCard(s scanner) (*domain.Card, error) {
	var c domain.Card
	err := s.Scan(
		&c.ID, &c.NumberHash, &c.NumberEncrypted, &c.LastFour, &c.PINHash,
		&c.Status, &c.AccountID, &c.UserID, &c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
