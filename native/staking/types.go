package staking

import (
	"math/big"
	"sort"

	"helixchain/crypto"
	"helixchain/native/assets"
)

// RewardRate describes the emission schedule for a single reward asset:
// Amount units are releasable from the pot every PeriodSeconds.
type RewardRate struct {
	Amount        *big.Int
	PeriodSeconds uint64
}

// Reward is the per-pool, per-reward-asset ledger entry.
//
// TotalRewards >= ClaimedRewards holds at all times.
type Reward struct {
	TotalRewards            *big.Int
	ClaimedRewards          *big.Int
	TotalDilutionAdjustment *big.Int
	Rate                    RewardRate
	LastUpdatedTimestamp    uint64
}

func newReward(rate RewardRate, nowSeconds uint64) *Reward {
	amount := big.NewInt(0)
	if rate.Amount != nil {
		amount = new(big.Int).Set(rate.Amount)
	}
	return &Reward{
		TotalRewards:            big.NewInt(0),
		ClaimedRewards:          big.NewInt(0),
		TotalDilutionAdjustment: big.NewInt(0),
		Rate:                    RewardRate{Amount: amount, PeriodSeconds: rate.PeriodSeconds},
		LastUpdatedTimestamp:    nowSeconds,
	}
}

func (r *Reward) clone() *Reward {
	if r == nil {
		return nil
	}
	return &Reward{
		TotalRewards:            new(big.Int).Set(r.TotalRewards),
		ClaimedRewards:          new(big.Int).Set(r.ClaimedRewards),
		TotalDilutionAdjustment: new(big.Int).Set(r.TotalDilutionAdjustment),
		Rate: RewardRate{
			Amount:        new(big.Int).Set(r.Rate.Amount),
			PeriodSeconds: r.Rate.PeriodSeconds,
		},
		LastUpdatedTimestamp: r.LastUpdatedTimestamp,
	}
}

// LockConfig is a pool's lock policy: the staking durations on offer with
// their share multipliers, and the penalty applied to principal and rewards
// on early unlock.
type LockConfig struct {
	// DurationPresets maps a lock duration in seconds to a share multiplier.
	// Multipliers are >= 1.
	DurationPresets map[uint64]*big.Rat
	// UnlockPenalty is the fraction in [0, 1] forfeited to the treasury when
	// unstaking before the lock duration has elapsed.
	UnlockPenalty *big.Rat
}

func (c LockConfig) clone() LockConfig {
	presets := make(map[uint64]*big.Rat, len(c.DurationPresets))
	for duration, multiplier := range c.DurationPresets {
		presets[duration] = new(big.Rat).Set(multiplier)
	}
	penalty := big.NewRat(0, 1)
	if c.UnlockPenalty != nil {
		penalty = new(big.Rat).Set(c.UnlockPenalty)
	}
	return LockConfig{DurationPresets: presets, UnlockPenalty: penalty}
}

// RewardPool is the top-level pool record, keyed by the staked asset id
// (pools are 1:1 with the staked asset).
type RewardPool struct {
	Owner                crypto.Address
	Rewards              map[assets.AssetID]*Reward
	ClaimedShares        *big.Int
	StartBlock           uint64
	EndBlock             uint64
	Lock                 LockConfig
	ShareAssetID         assets.AssetID
	FinancialNFTAssetID  assets.AssetID
	MinimumStakingAmount *big.Int
}

// Clone produces a deep copy used by the state snapshot machinery.
func (p *RewardPool) Clone() *RewardPool {
	if p == nil {
		return nil
	}
	rewards := make(map[assets.AssetID]*Reward, len(p.Rewards))
	for asset, reward := range p.Rewards {
		rewards[asset] = reward.clone()
	}
	return &RewardPool{
		Owner:                p.Owner,
		Rewards:              rewards,
		ClaimedShares:        new(big.Int).Set(p.ClaimedShares),
		StartBlock:           p.StartBlock,
		EndBlock:             p.EndBlock,
		Lock:                 p.Lock.clone(),
		ShareAssetID:         p.ShareAssetID,
		FinancialNFTAssetID:  p.FinancialNFTAssetID,
		MinimumStakingAmount: new(big.Int).Set(p.MinimumStakingAmount),
	}
}

// rewardAssetIDs returns the pool's reward asset ids in ascending order so
// iteration is deterministic.
func (p *RewardPool) rewardAssetIDs() []assets.AssetID {
	ids := make([]assets.AssetID, 0, len(p.Rewards))
	for id := range p.Rewards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lock captures a position's lock terms. The penalty is frozen at stake time
// so later pool policy changes never affect existing stakers.
type Lock struct {
	StartedAt     uint64
	Duration      uint64
	UnlockPenalty *big.Rat
}

// Stake is one staking position, identified by its financial NFT instance.
type Stake struct {
	RewardPoolID assets.AssetID
	Amount       *big.Int
	Share        *big.Int
	// Reductions is the per-reward-asset dilution offset subtracted from the
	// claim computation, preventing a staker from claiming rewards accrued
	// before they joined.
	Reductions map[assets.AssetID]*big.Int
	Lock       Lock
}

// Clone produces a deep copy used by the state snapshot machinery.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	reductions := make(map[assets.AssetID]*big.Int, len(s.Reductions))
	for asset, reduction := range s.Reductions {
		reductions[asset] = new(big.Int).Set(reduction)
	}
	return &Stake{
		RewardPoolID: s.RewardPoolID,
		Amount:       new(big.Int).Set(s.Amount),
		Share:        new(big.Int).Set(s.Share),
		Reductions:   reductions,
		Lock: Lock{
			StartedAt:     s.Lock.StartedAt,
			Duration:      s.Lock.Duration,
			UnlockPenalty: new(big.Rat).Set(s.Lock.UnlockPenalty),
		},
	}
}

// PoolConfig is the creation input for a reward-rate based incentive pool.
type PoolConfig struct {
	Owner                crypto.Address
	PoolAssetID          assets.AssetID
	ShareAssetID         assets.AssetID
	FinancialNFTAssetID  assets.AssetID
	RewardConfigs        map[assets.AssetID]RewardRate
	StartBlock           uint64
	EndBlock             uint64
	Lock                 LockConfig
	MinimumStakingAmount *big.Int
}
