package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyRUB, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

// Status is shared by accounts and cards.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusBlocked   Status = "BLOCKED"
	StatusSuspended Status = "SUSPENDED"
)

// Account holds the money behind exactly one card. Seq is assigned by a
// postgres sequence and feeds the card number generator; it is never reused.
type Account struct {
	ID        uuid.UUID
	Seq       int64
	UserID    uuid.UUID
	Balance   decimal.Decimal
	Currency  Currency
	Status    Status
	Version   int64
	CreatedAt time.Time
}
