package staking

import (
	"math/big"

	"helixchain/native/assets"
)

// accumulationOutcome classifies one accumulation step for a single reward.
type accumulationOutcome int

const (
	accumulationSuccess accumulationOutcome = iota
	accumulationBackToTheFuture
	accumulationPotEmpty
	accumulationOverflow
)

func (o accumulationOutcome) String() string {
	switch o {
	case accumulationSuccess:
		return "success"
	case accumulationBackToTheFuture:
		return "back_to_the_future"
	case accumulationPotEmpty:
		return "rewards_pot_empty"
	case accumulationOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// accumulateReward releases whole elapsed periods of emission from the pool
// account's hold into its claimable balance. Zero-rate rewards are a no-op.
// Release is capped at the held balance; a cap of zero whole periods means
// the pot is exhausted. The reward clock only ever advances by the periods
// actually released, so an underfunded pot does not silently skip emission.
func (e *Engine) accumulateReward(poolID, asset assets.AssetID, reward *Reward, now uint64) accumulationOutcome {
	if reward.Rate.Amount == nil || reward.Rate.Amount.Sign() == 0 {
		return accumulationSuccess
	}
	if now < reward.LastUpdatedTimestamp {
		return accumulationBackToTheFuture
	}
	elapsed := now - reward.LastUpdatedTimestamp
	periodsElapsed := elapsed / reward.Rate.PeriodSeconds
	if periodsElapsed == 0 {
		return accumulationSuccess
	}

	poolAccount := e.PoolAccountID(poolID)
	held := e.ledger.BalanceOnHold(asset, poolAccount)
	maxReleasable := new(big.Int).Quo(held, reward.Rate.Amount)
	if maxReleasable.Sign() == 0 {
		return accumulationPotEmpty
	}

	periods := minBig(new(big.Int).SetUint64(periodsElapsed), maxReleasable)
	released := new(big.Int).Mul(periods, reward.Rate.Amount)

	newTotal := new(big.Int).Add(reward.TotalRewards, released)
	advance := new(big.Int).Mul(periods, new(big.Int).SetUint64(reward.Rate.PeriodSeconds))
	newTimestamp := new(big.Int).Add(new(big.Int).SetUint64(reward.LastUpdatedTimestamp), advance)
	if newTotal.Cmp(maxBalance) > 0 || !newTimestamp.IsUint64() {
		return accumulationOverflow
	}

	if err := e.ledger.Release(asset, poolAccount, released); err != nil {
		// The hold was just measured, so a failed release indicates ledger
		// corruption. Leave the reward untouched.
		e.logger.Error("reward release failed",
			"pool", formatAsset(poolID), "asset", formatAsset(asset), "err", err)
		return accumulationSuccess
	}

	reward.TotalRewards = newTotal
	reward.LastUpdatedTimestamp = newTimestamp.Uint64()
	return accumulationSuccess
}

// accumulateAndHandle runs one accumulation step and turns non-success
// outcomes into state markers and events. The pot-empty pause event fires at
// most once per asset until the pot is refilled.
func (e *Engine) accumulateAndHandle(poolID, asset assets.AssetID, reward *Reward, now uint64) {
	if e.state.PotIsEmpty(poolID, asset) {
		return
	}
	switch outcome := e.accumulateReward(poolID, asset, reward, now); outcome {
	case accumulationSuccess:
	case accumulationPotEmpty:
		e.state.MarkPotEmpty(poolID, asset)
		e.state.AppendEvent(newPoolPausedEvent(poolID, asset))
	case accumulationBackToTheFuture, accumulationOverflow:
		e.logger.Error("reward accumulation failed",
			"pool", formatAsset(poolID), "asset", formatAsset(asset), "outcome", outcome.String())
		e.state.AppendEvent(newAccumulationErrorEvent(poolID, asset, outcome.String()))
	}
}

// AccumulateHook advances reward accumulation for every pool. It is invoked
// once per block. Pools whose start block is still in the future are
// skipped; a pool reaching its start block has all reward clocks reset to
// now so the pre-start span emits nothing.
func (e *Engine) AccumulateHook(blockHeight uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.blockHeight = blockHeight
	now := e.clock.Now()

	poolIDs := e.state.RewardPoolIDs()
	sortAssetIDs(poolIDs)

	for _, poolID := range poolIDs {
		pool, err := e.state.GetRewardPool(poolID)
		if err != nil {
			return err
		}
		if pool == nil || pool.StartBlock > blockHeight {
			continue
		}
		if pool.StartBlock == blockHeight {
			for _, asset := range pool.rewardAssetIDs() {
				pool.Rewards[asset].LastUpdatedTimestamp = now
			}
			e.state.AppendEvent(newPoolStartedEvent(poolID))
		} else {
			for _, asset := range pool.rewardAssetIDs() {
				e.accumulateAndHandle(poolID, asset, pool.Rewards[asset], now)
			}
		}
		if err := e.state.PutRewardPool(poolID, pool); err != nil {
			return err
		}
	}
	return nil
}
