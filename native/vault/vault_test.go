package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"helixchain/crypto"
	"helixchain/native/assets"
)

const testAsset assets.AssetID = 7

func newTestBook(t *testing.T) (*Book, *assets.Ledger) {
	t.Helper()
	ledger := assets.NewLedger()
	return NewBook(ledger), ledger
}

func TestReserveRatioSplitsCapital(t *testing.T) {
	book, ledger := newTestBook(t)
	depositor := crypto.DeriveModuleAddress("depositor")
	strategy := crypto.DeriveModuleAddress("market")

	id, err := book.Create(testAsset, big.NewRat(1, 4))
	require.NoError(t, err)
	require.NoError(t, book.RegisterStrategy(id, strategy))

	require.NoError(t, ledger.MintInto(testAsset, depositor, big.NewInt(1_000)))
	require.NoError(t, book.Deposit(id, depositor, big.NewInt(1_000)))

	availability, amount, err := book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.Equal(t, FundsWithdrawable, availability)
	require.Equal(t, big.NewInt(750), amount)

	require.NoError(t, book.WithdrawTo(id, strategy, amount))
	require.Equal(t, big.NewInt(250), ledger.Balance(testAsset, Account(id)))
	require.Equal(t, big.NewInt(750), ledger.Balance(testAsset, strategy))

	// At target, nothing further to move.
	availability, amount, err = book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.Equal(t, FundsWithdrawable, availability)
	require.Equal(t, big.NewInt(0), amount)
}

func TestWithdrawalsShrinkTargetAllocation(t *testing.T) {
	book, ledger := newTestBook(t)
	depositor := crypto.DeriveModuleAddress("depositor")
	strategy := crypto.DeriveModuleAddress("market")

	id, err := book.Create(testAsset, big.NewRat(1, 4))
	require.NoError(t, err)
	require.NoError(t, book.RegisterStrategy(id, strategy))
	require.NoError(t, ledger.MintInto(testAsset, depositor, big.NewInt(1_000)))
	require.NoError(t, book.Deposit(id, depositor, big.NewInt(1_000)))

	_, amount, err := book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.NoError(t, book.WithdrawTo(id, strategy, amount))

	// Drain the liquid reserve entirely: total capital falls to 750, the
	// target allocation to floor(0.75 * 750) = 562, so the strategy now
	// holds a surplus of 188 it must hand back.
	require.NoError(t, ledger.Transfer(testAsset, Account(id), depositor, big.NewInt(250), false))

	availability, amount, err := book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.Equal(t, FundsDepositable, availability)
	require.Equal(t, big.NewInt(188), amount)

	require.NoError(t, book.DepositFrom(id, strategy, amount))
	require.Equal(t, big.NewInt(188), ledger.Balance(testAsset, Account(id)))
}

func TestLiquidationRecallsEverything(t *testing.T) {
	book, ledger := newTestBook(t)
	depositor := crypto.DeriveModuleAddress("depositor")
	strategy := crypto.DeriveModuleAddress("market")

	id, err := book.Create(testAsset, big.NewRat(1, 10))
	require.NoError(t, err)
	require.NoError(t, book.RegisterStrategy(id, strategy))
	require.NoError(t, ledger.MintInto(testAsset, depositor, big.NewInt(500)))
	require.NoError(t, book.Deposit(id, depositor, big.NewInt(500)))

	_, amount, err := book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.NoError(t, book.WithdrawTo(id, strategy, amount))

	require.NoError(t, book.StartLiquidation(id))

	availability, owed, err := book.AvailableFunds(id, strategy)
	require.NoError(t, err)
	require.Equal(t, FundsMustLiquidate, availability)
	require.Equal(t, amount, owed)
}

func TestUnknownStrategyRejected(t *testing.T) {
	book, _ := newTestBook(t)
	stranger := crypto.DeriveModuleAddress("stranger")

	id, err := book.Create(testAsset, big.NewRat(1, 4))
	require.NoError(t, err)

	_, _, err = book.AvailableFunds(id, stranger)
	require.Error(t, err)
	require.Error(t, book.WithdrawTo(id, stranger, big.NewInt(1)))
}
