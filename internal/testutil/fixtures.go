package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/domain"
)

// TestBIN matches the default CARD_BIN so numbers generated in tests look
// like production ones.
const TestBIN = "220220"

var TestEncKey = []byte("0123456789abcdef0123456789abcdef")

func NewTestVault(t *testing.T) *card.Vault {
	t.Helper()
	v, err := card.NewVault(TestEncKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func NewTestGenerator(t *testing.T) *card.NumberGenerator {
	t.Helper()
	g, err := card.NewNumberGenerator(TestBIN)
	if err != nil {
		t.Fatalf("new number generator: %v", err)
	}
	return g
}

func SeedUser(t *testing.T, db *sql.DB, username string, role domain.Role) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, username, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func SeedAccount(t *testing.T, db *sql.DB, userID uuid.UUID, balance string) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.RequireFromString(balance),
		Currency:  domain.CurrencyRUB,
		Status:    domain.StatusActive,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}

	err := db.QueryRow(
		`INSERT INTO accounts (id, user_id, balance, currency, status, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		a.ID, a.UserID, a.Balance, a.Currency, a.Status, a.Version, a.CreatedAt,
	).Scan(&a.Seq)
	if err != nil {
		t.Fatalf("seed account for %s: %v", userID, err)
	}
	return a
}

// SeedCard stores a card for an already-seeded account. The number goes
// through the vault exactly as in provisioning.
func SeedCard(t *testing.T, db *sql.DB, v *card.Vault, userID, accountID uuid.UUID, number string, status domain.Status) *domain.Card {
	t.Helper()

	hash, err := v.LookupHash(number)
	if err != nil {
		t.Fatalf("lookup hash: %v", err)
	}
	encrypted, err := v.Encrypt(number)
	if err != nil {
		t.Fatalf("encrypt number: %v", err)
	}
	pinHash, err := v.HashPIN([]byte("4321"))
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}

	now := time.Now().UTC()
	c := &domain.Card{
		ID:              uuid.New(),
		NumberHash:      hash,
		NumberEncrypted: encrypted,
		LastFour:        card.Last4(number),
		PINHash:         pinHash,
		Status:          status,
		AccountID:       accountID,
		UserID:          userID,
		CreatedAt:       now,
		ExpiresAt:       now.AddDate(4, 0, 0),
	}

	_, err = db.Exec(
		`INSERT INTO cards (
			id, number_hash, number_encrypted, last_four, pin_hash,
			status, account_id, user_id, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.NumberHash, c.NumberEncrypted, c.LastFour, c.PINHash,
		c.Status, c.AccountID, c.UserID, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		t.Fatalf("seed card %s: %v", number, err)
	}
	return c
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func CountTransfers(t *testing.T, db *sql.DB, cardID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transfers WHERE from_card_id = $1 OR to_card_id = $1`, cardID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for card %s: %v", cardID, err)
	}
	return count
}

func CountCards(t *testing.T, db *sql.DB, userID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM cards WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("count cards for user %s: %v", userID, err)
	}
	return count
}
