package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card is the externally addressable payment instrument. The raw number is
// never stored: NumberHash is the unique lookup key, NumberEncrypted the
// reversible form for authorized retrieval.
type Card struct {
	ID              uuid.UUID
	NumberHash      string
	NumberEncrypted string
	LastFour        string
	PINHash         string
	Status          Status
	AccountID       uuid.UUID
	UserID          uuid.UUID
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

func (c *Card) Masked() string {
	return "**** **** **** " + c.LastFour
}

// OwnedBy reports whether the card belongs to the given user. Callers that
// already resolved a card must answer a foreign one with ErrAccessDenied,
// never ErrNotFound.
func (c *Card) OwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}
