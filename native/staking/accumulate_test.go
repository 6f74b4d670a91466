package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"helixchain/crypto"
)

func TestAccumulateZeroRateIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	reward := newReward(RewardRate{Amount: big.NewInt(0), PeriodSeconds: 60}, 1_000)

	outcome := env.engine.accumulateReward(testPoolAsset, testRewardAsset, reward, 5_000)
	require.Equal(t, accumulationSuccess, outcome)
	require.Equal(t, uint64(1_000), reward.LastUpdatedTimestamp)
	require.Equal(t, big.NewInt(0), reward.TotalRewards)
}

func TestAccumulateClockRegression(t *testing.T) {
	env := newTestEnv(t)
	reward := newReward(RewardRate{Amount: big.NewInt(100), PeriodSeconds: 60}, 1_000)

	outcome := env.engine.accumulateReward(testPoolAsset, testRewardAsset, reward, 999)
	require.Equal(t, accumulationBackToTheFuture, outcome)
	require.Equal(t, big.NewInt(0), reward.TotalRewards)
}

func TestAccumulatePartialPeriodEmitsNothing(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)
	fundPot(t, env, funder, 1_000)

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	outcome := env.engine.accumulateReward(testPoolAsset, testRewardAsset, reward, 1_059)
	require.Equal(t, accumulationSuccess, outcome)
	require.Equal(t, big.NewInt(0), reward.TotalRewards)
	require.Equal(t, uint64(1_000), reward.LastUpdatedTimestamp)
}

func TestAccumulateDrainsPotExactlyThenPauses(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)
	fundPot(t, env, funder, 1_000)

	// Ten periods elapse and the pot covers exactly ten.
	env.clock.now += 600
	require.NoError(t, env.engine.AccumulateHook(2))

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	require.Equal(t, big.NewInt(1_000), reward.TotalRewards)
	require.Equal(t, uint64(1_600), reward.LastUpdatedTimestamp)
	require.False(t, env.state.PotIsEmpty(testPoolAsset, testRewardAsset))
	require.Empty(t, env.state.eventsOfType(EventTypePoolPaused))

	poolAccount := env.engine.PoolAccountID(testPoolAsset)
	require.Equal(t, big.NewInt(0), env.ledger.BalanceOnHold(testRewardAsset, poolAccount))
	require.Equal(t, big.NewInt(1_000), env.ledger.Balance(testRewardAsset, poolAccount))

	// The next elapsed period finds nothing to release and pauses the pool.
	env.clock.now += 60
	require.NoError(t, env.engine.AccumulateHook(3))
	require.True(t, env.state.PotIsEmpty(testPoolAsset, testRewardAsset))
	require.Len(t, env.state.eventsOfType(EventTypePoolPaused), 1)

	// Further hooks skip the paused asset without repeating the event.
	env.clock.now += 600
	require.NoError(t, env.engine.AccumulateHook(4))
	require.Len(t, env.state.eventsOfType(EventTypePoolPaused), 1)
	require.Equal(t, big.NewInt(1_000), reward.TotalRewards)
}

func TestAccumulateUnderfundedPotReleasesWholePeriodsOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)
	fundPot(t, env, funder, 250)

	// Ten periods elapsed but the pot only covers two. The clock advances by
	// the two released periods so the remaining time is not forfeited.
	env.clock.now += 600
	require.NoError(t, env.engine.AccumulateHook(2))

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	require.Equal(t, big.NewInt(200), reward.TotalRewards)
	require.Equal(t, uint64(1_120), reward.LastUpdatedTimestamp)

	poolAccount := env.engine.PoolAccountID(testPoolAsset)
	require.Equal(t, big.NewInt(50), env.ledger.BalanceOnHold(testRewardAsset, poolAccount))
}

func TestAddToRewardsPotResumesPausedPool(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)

	// Pause by accumulating against an empty pot.
	env.clock.now += 60
	require.NoError(t, env.engine.AccumulateHook(2))
	require.True(t, env.state.PotIsEmpty(testPoolAsset, testRewardAsset))

	// A top-up below one period keeps the pool paused.
	require.NoError(t, env.ledger.MintInto(testRewardAsset, funder, big.NewInt(1_000)))
	require.NoError(t, env.engine.AddToRewardsPot(funder, testPoolAsset, testRewardAsset, big.NewInt(50), false))
	require.True(t, env.state.PotIsEmpty(testPoolAsset, testRewardAsset))

	// Crossing one period's emission resumes and resets the reward clock so
	// the paused gap never emits.
	env.clock.now += 600
	require.NoError(t, env.engine.AddToRewardsPot(funder, testPoolAsset, testRewardAsset, big.NewInt(50), false))
	require.False(t, env.state.PotIsEmpty(testPoolAsset, testRewardAsset))
	require.Len(t, env.state.eventsOfType(EventTypePoolResumed), 1)

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	require.Equal(t, env.clock.now, reward.LastUpdatedTimestamp)
}

func TestAddToRewardsPotUnknownAsset(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)

	require.NoError(t, env.ledger.MintInto(testShareAsset, funder, big.NewInt(100)))
	err := env.engine.AddToRewardsPot(funder, testPoolAsset, testShareAsset, big.NewInt(100), false)
	require.ErrorIs(t, err, errRewardAssetNotFound)
}

func TestAccumulateOverflowIsReportedNotApplied(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")
	funder := crypto.DeriveModuleAddress("funder")
	createStartedPool(t, env, owner)
	fundPot(t, env, funder, 1_000)

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	reward.TotalRewards = new(big.Int).Set(maxBalance)

	env.clock.now += 60
	require.NoError(t, env.engine.AccumulateHook(2))

	require.Equal(t, maxBalance, reward.TotalRewards)
	require.Equal(t, uint64(1_000), reward.LastUpdatedTimestamp)
	require.Len(t, env.state.eventsOfType(EventTypeAccumulationError), 1)
}

func TestAccumulateHookStartBlockGating(t *testing.T) {
	env := newTestEnv(t)
	owner := crypto.DeriveModuleAddress("owner")

	cfg := defaultPoolConfig(owner)
	cfg.StartBlock = 10
	_, err := env.engine.CreateRewardPool(cfg)
	require.NoError(t, err)

	reward := env.state.pools[testPoolAsset].Rewards[testRewardAsset]
	createdAt := reward.LastUpdatedTimestamp

	// Before the start block nothing happens.
	env.clock.now += 600
	require.NoError(t, env.engine.AccumulateHook(5))
	require.Equal(t, createdAt, reward.LastUpdatedTimestamp)
	require.Empty(t, env.state.eventsOfType(EventTypePoolStarted))

	// At the start block the reward clocks reset to now so the pre-start
	// span emits nothing.
	require.NoError(t, env.engine.AccumulateHook(10))
	require.Equal(t, env.clock.now, reward.LastUpdatedTimestamp)
	require.Len(t, env.state.eventsOfType(EventTypePoolStarted), 1)
	require.Equal(t, big.NewInt(0), reward.TotalRewards)
}
