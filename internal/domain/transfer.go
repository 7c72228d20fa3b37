package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is an append-only history entry. Post-transfer balances are
// captured at creation time for audit and never updated afterwards.
type Transfer struct {
	ID               uuid.UUID
	FromCardID       uuid.UUID
	ToCardID         uuid.UUID
	Amount           decimal.Decimal
	Comment          *string
	FromBalanceAfter decimal.Decimal
	ToBalanceAfter   decimal.Decimal
	CreatedAt        time.Time
}
