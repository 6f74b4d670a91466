package assets

import (
	"math/big"
	"testing"

	"helixchain/crypto"

	"github.com/stretchr/testify/require"
)

const testAsset AssetID = 7

func testAddr(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.HelixPrefix, raw)
}

func TestTransferRespectsLocks(t *testing.T) {
	ledger := NewLedger()
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	require.NoError(t, ledger.MintInto(testAsset, alice, big.NewInt(1000)))
	require.NoError(t, ledger.SetLock("stake", testAsset, alice, big.NewInt(800)))

	require.Equal(t, WithdrawFrozen, ledger.CanWithdraw(testAsset, alice, big.NewInt(300)))
	require.ErrorIs(t, ledger.Transfer(testAsset, alice, bob, big.NewInt(300), false), ErrFrozenBalance)

	require.NoError(t, ledger.Transfer(testAsset, alice, bob, big.NewInt(200), false))
	require.Equal(t, int64(800), ledger.Balance(testAsset, alice).Int64())
	require.Equal(t, int64(200), ledger.Balance(testAsset, bob).Int64())
}

func TestLocksOverlapRatherThanStack(t *testing.T) {
	ledger := NewLedger()
	alice := testAddr(0x01)
	require.NoError(t, ledger.MintInto(testAsset, alice, big.NewInt(1000)))
	require.NoError(t, ledger.SetLock("a", testAsset, alice, big.NewInt(600)))
	require.NoError(t, ledger.SetLock("b", testAsset, alice, big.NewInt(400)))

	// Only the largest lock freezes funds: 400 remain spendable.
	require.Equal(t, WithdrawSuccess, ledger.CanWithdraw(testAsset, alice, big.NewInt(400)))
	require.Equal(t, WithdrawFrozen, ledger.CanWithdraw(testAsset, alice, big.NewInt(401)))

	require.NoError(t, ledger.RemoveLock("a", testAsset, alice))
	require.Equal(t, WithdrawSuccess, ledger.CanWithdraw(testAsset, alice, big.NewInt(600)))
}

func TestHoldAndRelease(t *testing.T) {
	ledger := NewLedger()
	pot := testAddr(0x03)
	require.NoError(t, ledger.MintInto(testAsset, pot, big.NewInt(500)))

	require.NoError(t, ledger.Hold(testAsset, pot, big.NewInt(500)))
	require.Equal(t, int64(0), ledger.Balance(testAsset, pot).Int64())
	require.Equal(t, int64(500), ledger.BalanceOnHold(testAsset, pot).Int64())

	require.ErrorIs(t, ledger.Release(testAsset, pot, big.NewInt(501)), errInsufficientHold)
	require.NoError(t, ledger.Release(testAsset, pot, big.NewInt(200)))
	require.Equal(t, int64(200), ledger.Balance(testAsset, pot).Int64())
	require.Equal(t, int64(300), ledger.BalanceOnHold(testAsset, pot).Int64())

	// Issuance is unchanged by hold/release.
	require.Equal(t, int64(500), ledger.TotalIssuance(testAsset).Int64())
}

func TestKeepAliveTransfer(t *testing.T) {
	ledger := NewLedger()
	alice := testAddr(0x01)
	bob := testAddr(0x02)
	ledger.SetExistentialDeposit(testAsset, big.NewInt(10))
	require.NoError(t, ledger.MintInto(testAsset, alice, big.NewInt(100)))

	require.ErrorIs(t, ledger.Transfer(testAsset, alice, bob, big.NewInt(95), true), ErrKeepAlive)
	require.NoError(t, ledger.Transfer(testAsset, alice, bob, big.NewInt(90), true))
	require.NoError(t, ledger.Transfer(testAsset, alice, bob, big.NewInt(10), false))
	require.Equal(t, int64(0), ledger.Balance(testAsset, alice).Int64())
}

func TestBurnAdjustsIssuance(t *testing.T) {
	ledger := NewLedger()
	alice := testAddr(0x01)
	require.NoError(t, ledger.MintInto(testAsset, alice, big.NewInt(300)))
	require.NoError(t, ledger.BurnFrom(testAsset, alice, big.NewInt(120)))
	require.Equal(t, int64(180), ledger.TotalIssuance(testAsset).Int64())
	require.ErrorIs(t, ledger.BurnFrom(testAsset, alice, big.NewInt(200)), ErrInsufficientBalance)
}

func TestReserveAssetIDMonotonic(t *testing.T) {
	ledger := NewLedger()
	first := ledger.ReserveAssetID()
	second := ledger.ReserveAssetID()
	require.Greater(t, uint64(second), uint64(first))
}

func TestCloneIsIndependent(t *testing.T) {
	ledger := NewLedger()
	alice := testAddr(0x01)
	require.NoError(t, ledger.MintInto(testAsset, alice, big.NewInt(100)))

	clone := ledger.Clone()
	require.NoError(t, clone.MintInto(testAsset, alice, big.NewInt(50)))

	require.Equal(t, int64(100), ledger.Balance(testAsset, alice).Int64())
	require.Equal(t, int64(150), clone.Balance(testAsset, alice).Int64())
}
