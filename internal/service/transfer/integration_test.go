package transfer_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mivanov-dev/bank-cards/internal/card"
	"github.com/mivanov-dev/bank-cards/internal/domain"
	"github.com/mivanov-dev/bank-cards/internal/repository"
	"github.com/mivanov-dev/bank-cards/internal/service/transfer"
	"github.com/mivanov-dev/bank-cards/internal/testutil"
)

type fixture struct {
	db    *sql.DB
	vault *card.Vault
	svc   *transfer.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	vault := testutil.NewTestVault(t)
	svc := transfer.NewService(
		repository.NewCardRepository(db),
		repository.NewAccountRepository(db),
		repository.NewTransferRepository(db),
		vault,
		db,
	)
	return &fixture{db: db, vault: vault, svc: svc}
}

// seedPair gives the user two active cards with the given balances and
// returns them together with their raw numbers.
func (f *fixture) seedPair(t *testing.T, username, fromBalance, toBalance string) (owner *domain.User, from, to *domain.Card, fromNum, toNum string) {
	t.Helper()
	gen := testutil.NewTestGenerator(t)

	owner = testutil.SeedUser(t, f.db, username, domain.RoleUser)
	fromAcct := testutil.SeedAccount(t, f.db, owner.ID, fromBalance)
	toAcct := testutil.SeedAccount(t, f.db, owner.ID, toBalance)

	var err error
	fromNum, err = gen.Generate(fromAcct.Seq)
	require.NoError(t, err)
	toNum, err = gen.Generate(toAcct.Seq)
	require.NoError(t, err)

	from = testutil.SeedCard(t, f.db, f.vault, owner.ID, fromAcct.ID, fromNum, domain.StatusActive)
	to = testutil.SeedCard(t, f.db, f.vault, owner.ID, toAcct.ID, toNum, domain.StatusActive)
	return owner, from, to, fromNum, toNum
}

func TestTransfer_HappyPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, to, fromNum, toNum := f.seedPair(t, "alina", "1000.00", "100.00")

	comment := "rent"
	tr, err := f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("200.00"),
		Comment:     &comment,
	})

	require.NoError(t, err)
	assert.Equal(t, from.ID, tr.FromCardID)
	assert.Equal(t, to.ID, tr.ToCardID)
	assert.True(t, tr.FromBalanceAfter.Equal(decimal.RequireFromString("800.00")),
		"from balance after = %s", tr.FromBalanceAfter)
	assert.True(t, tr.ToBalanceAfter.Equal(decimal.RequireFromString("300.00")),
		"to balance after = %s", tr.ToBalanceAfter)
	require.NotNil(t, tr.Comment)
	assert.Equal(t, "rent", *tr.Comment)

	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("800.00")))
	assert.True(t, testutil.GetAccountBalance(t, f.db, to.AccountID).Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, 1, testutil.CountTransfers(t, f.db, from.ID))

	stored, err := repository.NewTransferRepository(f.db).GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("200.00")))
}

func TestTransfer_WhitespaceInNumbers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, _, fromNum, toNum := f.seedPair(t, "boris", "500.00", "0.00")

	spaced := fromNum[:4] + " " + fromNum[4:8] + " " + fromNum[8:]
	_, err := f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  spaced,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("100.00"),
	})

	require.NoError(t, err)
	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("400.00")))
}

func TestTransfer_SameCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, _, fromNum, _ := f.seedPair(t, "vera", "1000.00", "0.00")

	_, err := f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    fromNum[:4] + " " + fromNum[4:],
		Amount:      decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrSameCard)
	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, 0, testutil.CountTransfers(t, f.db, from.ID))
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, to, fromNum, toNum := f.seedPair(t, "gleb", "1000.00", "0.00")

	_, err := f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("2000.00"),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, testutil.GetAccountBalance(t, f.db, to.AccountID).Equal(decimal.Zero))
	assert.Equal(t, 0, testutil.CountTransfers(t, f.db, from.ID))
}

func TestTransfer_UnknownNumber(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, _, _, fromNum, _ := f.seedPair(t, "dina", "1000.00", "0.00")

	gen := testutil.NewTestGenerator(t)
	unregistered, err := gen.Generate(999999)
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    unregistered,
		Amount:      decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransfer_ForeignCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, _, _, fromNum, toNum := f.seedPair(t, "egor", "1000.00", "0.00")
	stranger := testutil.SeedUser(t, f.db, "stranger", domain.RoleUser)

	_, err := f.svc.Transfer(ctx, transfer.Request{
		RequesterID: stranger.ID,
		FromNumber:  fromNum,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestTransfer_BlockedCard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, _, fromNum, toNum := f.seedPair(t, "fedor", "1000.00", "0.00")

	_, err := f.db.Exec(`UPDATE cards SET status = 'BLOCKED' WHERE id = $1`, from.ID)
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrCardInactive)
}

func TestTransfer_CurrencyMismatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, _, to, fromNum, toNum := f.seedPair(t, "karina", "1000.00", "0.00")

	_, err := f.db.Exec(`UPDATE accounts SET currency = 'USD' WHERE id = $1`, to.AccountID)
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, transfer.Request{
		RequesterID: owner.ID,
		FromNumber:  fromNum,
		ToNumber:    toNum,
		Amount:      decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

// Drains the source with N concurrent transfers: every one must land, the
// source must end at exactly zero, and no update may be lost.
func TestTransfer_ConcurrentDrain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 10
	amount := decimal.RequireFromString("100.00")

	owner, from, to, fromNum, toNum := f.seedPair(t, "roman", "1000.00", "0.00")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(ctx, transfer.Request{
				RequesterID: owner.ID,
				FromNumber:  fromNum,
				ToNumber:    toNum,
				Amount:      amount,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.Zero),
		"source must be drained to exactly zero")
	assert.True(t, testutil.GetAccountBalance(t, f.db, to.AccountID).Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, n, testutil.CountTransfers(t, f.db, from.ID))
}

// Two concurrent overdraft attempts over the same pair: exactly one wins.
func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, _, fromNum, toNum := f.seedPair(t, "sonya", "1000.00", "0.00")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(ctx, transfer.Request{
				RequesterID: owner.ID,
				FromNumber:  fromNum,
				ToNumber:    toNum,
				Amount:      decimal.RequireFromString("700.00"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, failures int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failures++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("300.00")))
}

// A card blocked while the transfer waits for its row locks must not be
// debited: status is re-read inside the transaction, not trusted from the
// pre-lock read.
func TestTransfer_CardBlockedUnderLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, to, fromNum, toNum := f.seedPair(t, "kirill", "1000.00", "0.00")

	// Hold both account rows so the transfer parks on GetForUpdate after its
	// pre-lock validation already saw an active card.
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	for _, id := range []uuid.UUID{from.AccountID, to.AccountID} {
		_, err := tx.ExecContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id)
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Transfer(ctx, transfer.Request{
			RequesterID: owner.ID,
			FromNumber:  fromNum,
			ToNumber:    toNum,
			Amount:      decimal.RequireFromString("100.00"),
		})
		done <- err
	}()

	// Let the transfer reach the lock wait, then block the source card on a
	// separate connection and release the locks.
	time.Sleep(200 * time.Millisecond)
	_, err = f.db.ExecContext(ctx, `UPDATE cards SET status = 'BLOCKED' WHERE id = $1`, from.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.ErrorIs(t, <-done, domain.ErrCardInactive)
	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, testutil.GetAccountBalance(t, f.db, to.AccountID).Equal(decimal.Zero))
	assert.Equal(t, 0, testutil.CountTransfers(t, f.db, from.ID))
}

// Opposite directions over the same pair must not deadlock thanks to the
// fixed lock order.
func TestTransfer_OpposingDirections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner, from, to, fromNum, toNum := f.seedPair(t, "tamara", "500.00", "500.00")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	run := func(src, dst string) {
		defer wg.Done()
		_, err := f.svc.Transfer(ctx, transfer.Request{
			RequesterID: owner.ID,
			FromNumber:  src,
			ToNumber:    dst,
			Amount:      decimal.RequireFromString("100.00"),
		})
		errs <- err
	}
	wg.Add(2)
	go run(fromNum, toNum)
	go run(toNum, fromNum)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, testutil.GetAccountBalance(t, f.db, from.AccountID).Equal(decimal.RequireFromString("500.00")))
	assert.True(t, testutil.GetAccountBalance(t, f.db, to.AccountID).Equal(decimal.RequireFromString("500.00")))
}
