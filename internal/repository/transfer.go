package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mivanov-dev/bank-cards/internal/domain"
)

const transferColumns = `id, from_card_id, to_card_id, amount, comment,
	from_balance_after, to_balance_after, created_at`

// TransferRepository only ever inserts and reads: transfer rows are an
// append-only ledger.
type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) CreateTx(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfers (
			id, from_card_id, to_card_id, amount, comment,
			from_balance_after, to_balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.FromCardID, t.ToCardID, t.Amount, t.Comment,
		t.FromBalanceAfter, t.ToBalanceAfter, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateTx: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// ListByCardID returns transfers where the card is either side, newest first.
func (r *TransferRepository) ListByCardID(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]domain.Transfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		 WHERE from_card_id = $1 OR to_card_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		cardID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCardID: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByCardID: scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByCardID: rows: %w", err)
	}
	return transfers, nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var t domain.Transfer
	err := s.Scan(
		&t.ID, &t.FromCardID, &t.ToCardID, &t.Amount, &t.Comment,
		&t.FromBalanceAfter, &t.ToBalanceAfter, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
