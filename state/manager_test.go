package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	"helixchain/native/staking"
)

func TestSnapshotRevertRestoresBooks(t *testing.T) {
	m := NewManager()
	who := crypto.DeriveModuleAddress("alice")
	ledger := m.Ledger()

	require.NoError(t, ledger.MintInto(assets.AssetID(1), who, big.NewInt(100)))
	m.AppendEvent(&types.Event{Type: "before"})
	require.NoError(t, m.PutRewardPool(assets.AssetID(1), &staking.RewardPool{
		ClaimedShares:        big.NewInt(0),
		MinimumStakingAmount: big.NewInt(1),
	}))

	m.Snapshot()

	require.NoError(t, ledger.MintInto(assets.AssetID(1), who, big.NewInt(900)))
	m.AppendEvent(&types.Event{Type: "during"})
	require.NoError(t, m.PutRewardPool(assets.AssetID(2), &staking.RewardPool{
		ClaimedShares:        big.NewInt(0),
		MinimumStakingAmount: big.NewInt(1),
	}))
	m.MarkPotEmpty(assets.AssetID(1), assets.AssetID(4))

	require.NoError(t, m.RevertToSnapshot())

	// The ledger object engines hold is the one that got restored.
	require.Same(t, ledger, m.Ledger())
	require.Equal(t, big.NewInt(100), ledger.Balance(assets.AssetID(1), who))
	require.Len(t, m.Events(), 1)

	pool, err := m.GetRewardPool(assets.AssetID(2))
	require.NoError(t, err)
	require.Nil(t, pool)
	require.False(t, m.PotIsEmpty(assets.AssetID(1), assets.AssetID(4)))
}

func TestDiscardSnapshotCommits(t *testing.T) {
	m := NewManager()
	who := crypto.DeriveModuleAddress("alice")

	m.Snapshot()
	require.NoError(t, m.Ledger().MintInto(assets.AssetID(1), who, big.NewInt(50)))
	m.DiscardSnapshot()

	require.ErrorIs(t, m.RevertToSnapshot(), errNoSnapshot)
	require.Equal(t, big.NewInt(50), m.Ledger().Balance(assets.AssetID(1), who))
}

func TestSnapshotIsolatesDeepState(t *testing.T) {
	m := NewManager()
	pool := &staking.RewardPool{
		ClaimedShares:        big.NewInt(7),
		MinimumStakingAmount: big.NewInt(1),
	}
	require.NoError(t, m.PutRewardPool(assets.AssetID(1), pool))

	m.Snapshot()
	pool.ClaimedShares.SetInt64(999)
	require.NoError(t, m.RevertToSnapshot())

	restored, err := m.GetRewardPool(assets.AssetID(1))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(7), restored.ClaimedShares)
}

func TestPauseFlags(t *testing.T) {
	m := NewManager()
	require.False(t, m.IsPaused("staking"))
	m.SetPaused("staking", true)
	require.True(t, m.IsPaused("staking"))
	m.SetPaused("staking", false)
	require.False(t, m.IsPaused("staking"))
}
