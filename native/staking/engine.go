package staking

import (
	"encoding/binary"
	"log/slog"
	"math/big"
	"sort"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	nativecommon "helixchain/native/common"
	"helixchain/native/fnft"
)

const moduleName = "staking"

// lockID names the ledger lock placed on position escrow accounts.
const lockID = "staking/position"

// engineState is the persistence surface the staking engine requires.
type engineState interface {
	GetRewardPool(poolID assets.AssetID) (*RewardPool, error)
	PutRewardPool(poolID assets.AssetID, pool *RewardPool) error
	RewardPoolIDs() []assets.AssetID
	GetStake(collection assets.AssetID, instance fnft.InstanceID) (*Stake, error)
	PutStake(collection assets.AssetID, instance fnft.InstanceID, stake *Stake) error
	RemoveStake(collection assets.AssetID, instance fnft.InstanceID) error
	PotIsEmpty(poolID, asset assets.AssetID) bool
	MarkPotEmpty(poolID, asset assets.AssetID)
	ClearPotEmpty(poolID, asset assets.AssetID)
	AppendEvent(evt *types.Event)
}

// AssetLedger is the fungible-asset collaborator.
type AssetLedger interface {
	Transfer(asset assets.AssetID, from, to crypto.Address, amount *big.Int, keepAlive bool) error
	MintInto(asset assets.AssetID, to crypto.Address, amount *big.Int) error
	BurnFrom(asset assets.AssetID, from crypto.Address, amount *big.Int) error
	TotalIssuance(asset assets.AssetID) *big.Int
	Balance(asset assets.AssetID, who crypto.Address) *big.Int
	CanWithdraw(asset assets.AssetID, who crypto.Address, amount *big.Int) assets.WithdrawConsequence
	Hold(asset assets.AssetID, who crypto.Address, amount *big.Int) error
	Release(asset assets.AssetID, who crypto.Address, amount *big.Int) error
	BalanceOnHold(asset assets.AssetID, who crypto.Address) *big.Int
	SetLock(lockID string, asset assets.AssetID, who crypto.Address, amount *big.Int) error
	RemoveLock(lockID string, asset assets.AssetID, who crypto.Address) error
	ExistentialDeposit(asset assets.AssetID) *big.Int
}

// NFTRegistry is the financial-NFT collaborator.
type NFTRegistry interface {
	CreateCollection(id assets.AssetID, owner crypto.Address) error
	NextInstanceID(id assets.AssetID) (fnft.InstanceID, error)
	MintInto(id assets.AssetID, instance fnft.InstanceID, owner crypto.Address) error
	Burn(id assets.AssetID, instance fnft.InstanceID) error
	Owner(id assets.AssetID, instance fnft.InstanceID) (crypto.Address, bool)
	AssetAccount(id assets.AssetID, instance fnft.InstanceID) crypto.Address
}

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() uint64
}

// Engine orchestrates reward pools, stake positions and reward accumulation.
type Engine struct {
	state       engineState
	ledger      AssetLedger
	nfts        NFTRegistry
	clock       Clock
	treasury    crypto.Address
	blockHeight uint64
	pauses      nativecommon.PauseView
	logger      *slog.Logger
}

// NewEngine constructs a staking engine wired to its collaborators. The
// treasury receives slashed principal and rewards.
func NewEngine(ledger AssetLedger, nfts NFTRegistry, clock Clock, treasury crypto.Address) *Engine {
	return &Engine{
		ledger:   ledger,
		nfts:     nfts,
		clock:    clock,
		treasury: treasury,
		logger:   slog.Default(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetBlockHeight records the current block, used by pool-start gating.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// PoolAccount returns the deterministic account funding a pool's rewards.
func PoolAccount(poolID assets.AssetID) crypto.Address {
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, uint64(poolID))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress(moduleName), seed)
}

func (e *Engine) PoolAccountID(poolID assets.AssetID) crypto.Address {
	return PoolAccount(poolID)
}

// CreateRewardPool validates the config and instantiates a reward pool plus
// its financial NFT collection. The pool is keyed by the staked asset id.
func (e *Engine) CreateRewardPool(cfg PoolConfig) (assets.AssetID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if cfg.PoolAssetID == 0 || cfg.ShareAssetID == 0 || cfg.FinancialNFTAssetID == 0 {
		return 0, errInvalidAssetID
	}
	if cfg.StartBlock <= e.blockHeight {
		return 0, errStartBlockNotInFuture
	}
	if cfg.EndBlock <= cfg.StartBlock {
		return 0, errEndBeforeStart
	}
	existing, err := e.state.GetRewardPool(cfg.PoolAssetID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, errPoolAlreadyExists
	}
	if len(cfg.Lock.DurationPresets) == 0 {
		return 0, errNoDurationPresets
	}
	for _, multiplier := range cfg.Lock.DurationPresets {
		if multiplier == nil || multiplier.Cmp(big.NewRat(1, 1)) < 0 {
			return 0, errInvalidMultiplier
		}
	}
	if !isFraction(cfg.Lock.UnlockPenalty) {
		return 0, errInvalidPenalty
	}
	if cfg.MinimumStakingAmount == nil {
		cfg.MinimumStakingAmount = big.NewInt(0)
	}

	remainder := leftFromOne(cfg.Lock.UnlockPenalty)

	// A slashed minimum stake must never dust-lock the staker below the
	// existential deposit of the staked asset.
	if ratMulFloor(remainder, cfg.MinimumStakingAmount).Cmp(e.ledger.ExistentialDeposit(cfg.PoolAssetID)) < 0 {
		return 0, errSlashedMinimumStakeTooLow
	}
	for rewardAsset, rate := range cfg.RewardConfigs {
		if rate.Amount != nil && rate.Amount.Sign() > 0 {
			if rate.PeriodSeconds == 0 {
				return 0, errInvalidRewardRate
			}
			if ratMulFloor(remainder, rate.Amount).Cmp(e.ledger.ExistentialDeposit(rewardAsset)) < 0 {
				return 0, errSlashedRewardTooLow
			}
		}
	}

	now := e.clock.Now()
	rewards := make(map[assets.AssetID]*Reward, len(cfg.RewardConfigs))
	for rewardAsset, rate := range cfg.RewardConfigs {
		rewards[rewardAsset] = newReward(rate, now)
	}

	pool := &RewardPool{
		Owner:                cfg.Owner,
		Rewards:              rewards,
		ClaimedShares:        big.NewInt(0),
		StartBlock:           cfg.StartBlock,
		EndBlock:             cfg.EndBlock,
		Lock:                 cfg.Lock.clone(),
		ShareAssetID:         cfg.ShareAssetID,
		FinancialNFTAssetID:  cfg.FinancialNFTAssetID,
		MinimumStakingAmount: new(big.Int).Set(cfg.MinimumStakingAmount),
	}
	if err := e.state.PutRewardPool(cfg.PoolAssetID, pool); err != nil {
		return 0, err
	}
	if err := e.nfts.CreateCollection(cfg.FinancialNFTAssetID, cfg.Owner); err != nil {
		return 0, err
	}

	e.state.AppendEvent(newPoolCreatedEvent(cfg.PoolAssetID, cfg.Owner, cfg.EndBlock))
	return cfg.PoolAssetID, nil
}

// Stake locks `amount` of the pool's staked asset for `duration` seconds,
// mints boosted shares into the position escrow account and mints the
// position NFT to `who`.
func (e *Engine) Stake(who crypto.Address, poolID assets.AssetID, amount *big.Int, duration uint64, keepAlive bool) (fnft.InstanceID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	pool, err := e.state.GetRewardPool(poolID)
	if err != nil {
		return 0, err
	}
	if pool == nil {
		return 0, errPoolNotFound
	}
	if amount == nil || amount.Cmp(pool.MinimumStakingAmount) < 0 {
		return 0, errStakedAmountTooLow
	}
	if pool.StartBlock > e.blockHeight {
		return 0, errPoolNotStarted
	}
	multiplier, ok := pool.Lock.DurationPresets[duration]
	if !ok {
		return 0, errDurationPresetNotFound
	}
	if e.ledger.CanWithdraw(poolID, who, amount) != assets.WithdrawSuccess {
		return 0, errNotEnoughAssets
	}

	shares := boostedAmount(multiplier, amount)
	reductions, err := e.applyDilution(pool, shares)
	if err != nil {
		return 0, err
	}

	collection := pool.FinancialNFTAssetID
	instance, err := e.nfts.NextInstanceID(collection)
	if err != nil {
		return 0, err
	}
	escrow := e.nfts.AssetAccount(collection, instance)

	position := &Stake{
		RewardPoolID: poolID,
		Amount:       new(big.Int).Set(amount),
		Share:        shares,
		Reductions:   reductions,
		Lock: Lock{
			StartedAt: e.clock.Now(),
			Duration:  duration,
			// The penalty is duplicated from the pool so later pool updates
			// never change the terms of an existing stake.
			UnlockPenalty: new(big.Rat).Set(pool.Lock.UnlockPenalty),
		},
	}

	if err := e.transferStake(who, amount, poolID, escrow, keepAlive); err != nil {
		return 0, err
	}
	if err := e.mintShares(pool.ShareAssetID, shares, escrow); err != nil {
		return 0, err
	}
	if err := e.nfts.MintInto(collection, instance, who); err != nil {
		return 0, err
	}

	if err := e.state.PutRewardPool(poolID, pool); err != nil {
		return 0, err
	}
	if err := e.state.PutStake(collection, instance, position); err != nil {
		return 0, err
	}

	e.state.AppendEvent(newStakedEvent(poolID, who, amount, duration, collection, instance))
	return instance, nil
}

// Extend adds `amount` to an existing position. New shares use the
// position's original duration multiplier and the lock clock restarts.
func (e *Engine) Extend(who crypto.Address, collection assets.AssetID, instance fnft.InstanceID, amount *big.Int, keepAlive bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ensureStakeOwner(who, collection, instance); err != nil {
		return err
	}
	stake, err := e.state.GetStake(collection, instance)
	if err != nil {
		return err
	}
	if stake == nil {
		return errStakeNotFound
	}
	pool, err := e.state.GetRewardPool(stake.RewardPoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}
	if e.ledger.CanWithdraw(stake.RewardPoolID, who, amount) != assets.WithdrawSuccess {
		return errNotEnoughAssets
	}

	// The stake's preset is expected to exist in the pool since presets are
	// immutable after creation; fall back to 1x if it ever goes missing.
	multiplier, ok := pool.Lock.DurationPresets[stake.Lock.Duration]
	if !ok {
		e.logger.Error("stake duration preset missing from pool",
			"pool", formatAsset(stake.RewardPoolID), "duration", stake.Lock.Duration)
		multiplier = big.NewRat(1, 1)
	}
	newShares := boostedAmount(multiplier, amount)

	totalShares := e.ledger.TotalIssuance(pool.ShareAssetID)
	for _, rewardAsset := range pool.rewardAssetIDs() {
		reward := pool.Rewards[rewardAsset]
		inflation := big.NewInt(0)
		if totalShares.Sign() != 0 {
			inflation = new(big.Int).Mul(reward.TotalRewards, newShares)
			inflation.Quo(inflation, totalShares)
		}
		reward.TotalRewards = new(big.Int).Add(reward.TotalRewards, inflation)
		reward.TotalDilutionAdjustment = new(big.Int).Add(reward.TotalDilutionAdjustment, inflation)

		if previous, ok := stake.Reductions[rewardAsset]; ok {
			stake.Reductions[rewardAsset] = new(big.Int).Add(previous, inflation)
		} else {
			// Reward assets added to a pool after a position exists are not
			// seeded into that position's reductions. Skipping here keeps the
			// position claimable; the missing offset is accounted a logic
			// error upstream.
			e.logger.Error("stake reductions missing reward asset",
				"pool", formatAsset(stake.RewardPoolID), "asset", formatAsset(rewardAsset))
		}
	}

	escrow := e.nfts.AssetAccount(collection, instance)
	if err := e.transferStake(who, amount, stake.RewardPoolID, escrow, keepAlive); err != nil {
		return err
	}
	if err := e.mintShares(pool.ShareAssetID, newShares, escrow); err != nil {
		return err
	}

	stake.Amount = new(big.Int).Add(stake.Amount, amount)
	stake.Share = new(big.Int).Add(stake.Share, newShares)
	stake.Lock.StartedAt = e.clock.Now()

	if err := e.state.PutRewardPool(stake.RewardPoolID, pool); err != nil {
		return err
	}
	if err := e.state.PutStake(collection, instance, stake); err != nil {
		return err
	}

	e.state.AppendEvent(newStakeExtendedEvent(collection, instance, amount))
	return nil
}

// Unstake collects rewards (penalized when the lock has not elapsed),
// returns the principal minus any slash, burns shares and the NFT, and
// deletes the position.
func (e *Engine) Unstake(who crypto.Address, collection assets.AssetID, instance fnft.InstanceID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ensureStakeOwner(who, collection, instance); err != nil {
		return err
	}
	stake, err := e.state.GetStake(collection, instance)
	if err != nil {
		return err
	}
	if stake == nil {
		return errStakeNotFound
	}
	pool, err := e.state.GetRewardPool(stake.RewardPoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}

	isEarly := stake.Lock.StartedAt+stake.Lock.Duration >= e.clock.Now()

	if err := e.collectRewards(stake.RewardPoolID, pool, instance, stake, who, isEarly); err != nil {
		return err
	}

	returned := new(big.Int).Set(stake.Amount)
	if isEarly {
		returned = ratMulCeil(leftFromOne(stake.Lock.UnlockPenalty), stake.Amount)
	}
	slashed := new(big.Int).Sub(stake.Amount, returned)

	escrow := e.nfts.AssetAccount(collection, instance)
	if err := e.ledger.RemoveLock(lockID, stake.RewardPoolID, escrow); err != nil {
		return err
	}
	if err := e.ledger.RemoveLock(lockID, pool.ShareAssetID, escrow); err != nil {
		return err
	}
	if err := e.ledger.Transfer(stake.RewardPoolID, escrow, who, returned, false); err != nil {
		return err
	}
	if slashed.Sign() > 0 {
		if err := e.ledger.Transfer(stake.RewardPoolID, escrow, e.treasury, slashed, false); err != nil {
			return err
		}
	}
	if err := e.ledger.BurnFrom(pool.ShareAssetID, escrow, stake.Share); err != nil {
		return err
	}
	if err := e.nfts.Burn(collection, instance); err != nil {
		return err
	}

	pool.ClaimedShares = new(big.Int).Add(pool.ClaimedShares, stake.Share)
	if err := e.state.PutRewardPool(stake.RewardPoolID, pool); err != nil {
		return err
	}
	if err := e.state.RemoveStake(collection, instance); err != nil {
		return err
	}

	var eventSlash *big.Int
	if isEarly {
		eventSlash = slashed
	}
	e.state.AppendEvent(newUnstakedEvent(stake.RewardPoolID, who, collection, instance, eventSlash))
	return nil
}

// Split partitions a position by `ratio`: the existing position keeps the
// floor of ratio*amounts and a new position receives the ceil of the
// remainder, so rounding never creates value.
func (e *Engine) Split(who crypto.Address, collection assets.AssetID, instance fnft.InstanceID, ratio *big.Rat) (fnft.InstanceID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if ratio == nil || ratio.Sign() <= 0 || ratio.Cmp(big.NewRat(1, 1)) >= 0 {
		return 0, errInvalidSplitRatio
	}
	if err := e.ensureStakeOwner(who, collection, instance); err != nil {
		return 0, err
	}
	existing, err := e.state.GetStake(collection, instance)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, errStakeNotFound
	}
	pool, err := e.state.GetRewardPool(existing.RewardPoolID)
	if err != nil {
		return 0, err
	}
	if pool == nil {
		return 0, errPoolNotFound
	}

	remainder := leftFromOne(ratio)

	newAmount := ratMulCeil(remainder, existing.Amount)
	newShare := ratMulCeil(remainder, existing.Share)
	keptAmount := ratMulFloor(ratio, existing.Amount)
	keptShare := ratMulFloor(ratio, existing.Share)

	if keptAmount.Cmp(pool.MinimumStakingAmount) < 0 || newAmount.Cmp(pool.MinimumStakingAmount) < 0 {
		return 0, errSplitAmountTooLow
	}

	newReductions := make(map[assets.AssetID]*big.Int, len(existing.Reductions))
	for asset, reduction := range existing.Reductions {
		newReductions[asset] = ratMulCeil(remainder, reduction)
		existing.Reductions[asset] = ratMulFloor(ratio, reduction)
	}

	newPosition := &Stake{
		RewardPoolID: existing.RewardPoolID,
		Amount:       newAmount,
		Share:        newShare,
		Reductions:   newReductions,
		Lock: Lock{
			StartedAt:     existing.Lock.StartedAt,
			Duration:      existing.Lock.Duration,
			UnlockPenalty: new(big.Rat).Set(existing.Lock.UnlockPenalty),
		},
	}
	existing.Amount = keptAmount
	existing.Share = keptShare

	newInstance, err := e.nfts.NextInstanceID(collection)
	if err != nil {
		return 0, err
	}
	if err := e.nfts.MintInto(pool.FinancialNFTAssetID, newInstance, who); err != nil {
		return 0, err
	}

	existingEscrow := e.nfts.AssetAccount(collection, instance)
	newEscrow := e.nfts.AssetAccount(collection, newInstance)

	if err := e.splitLock(existing.RewardPoolID, existingEscrow, newEscrow, existing.Amount, newAmount); err != nil {
		return 0, err
	}
	if err := e.splitLock(pool.ShareAssetID, existingEscrow, newEscrow, existing.Share, newShare); err != nil {
		return 0, err
	}

	if err := e.state.PutStake(collection, instance, existing); err != nil {
		return 0, err
	}
	if err := e.state.PutStake(collection, newInstance, newPosition); err != nil {
		return 0, err
	}

	e.state.AppendEvent(newSplitPositionEvent(collection, instance, newInstance, existing.Amount, newAmount))
	return newInstance, nil
}

// Claim pays out the position's accrued rewards. Claims are never penalized.
func (e *Engine) Claim(who crypto.Address, collection assets.AssetID, instance fnft.InstanceID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ensureStakeOwner(who, collection, instance); err != nil {
		return err
	}
	stake, err := e.state.GetStake(collection, instance)
	if err != nil {
		return err
	}
	if stake == nil {
		return errStakeNotFound
	}
	pool, err := e.state.GetRewardPool(stake.RewardPoolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}

	if err := e.collectRewards(stake.RewardPoolID, pool, instance, stake, who, false); err != nil {
		return err
	}
	if err := e.state.PutRewardPool(stake.RewardPoolID, pool); err != nil {
		return err
	}
	if err := e.state.PutStake(collection, instance, stake); err != nil {
		return err
	}

	e.state.AppendEvent(newClaimedEvent(stake.RewardPoolID, who, collection, instance))
	return nil
}

// TransferReward funds a pool's claimable balance with `amount` of a reward
// currency, seeding a zero-rate reward entry when the asset is new to the
// pool.
func (e *Engine) TransferReward(from crypto.Address, poolID, rewardAsset assets.AssetID, amount *big.Int, keepAlive bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.state.GetRewardPool(poolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}
	poolAccount := e.PoolAccountID(poolID)

	if _, ok := pool.Rewards[rewardAsset]; !ok {
		reward := newReward(RewardRate{Amount: big.NewInt(0), PeriodSeconds: 1}, e.clock.Now())
		reward.TotalRewards = new(big.Int).Set(amount)
		pool.Rewards[rewardAsset] = reward
	}
	if err := e.ledger.Transfer(rewardAsset, from, poolAccount, amount, keepAlive); err != nil {
		return err
	}
	if err := e.state.PutRewardPool(poolID, pool); err != nil {
		return err
	}

	e.state.AppendEvent(newRewardTransferredEvent(from, poolID, rewardAsset, amount))
	return nil
}

// AddToRewardsPot moves `amount` into the pool account and places it on
// hold; accumulation only ever releases from this hold. Refunding a paused
// pool past one period's emission resumes it.
func (e *Engine) AddToRewardsPot(who crypto.Address, poolID, asset assets.AssetID, amount *big.Int, keepAlive bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.state.GetRewardPool(poolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}
	reward, ok := pool.Rewards[asset]
	if !ok {
		return errRewardAssetNotFound
	}
	poolAccount := e.PoolAccountID(poolID)

	if err := e.ledger.Transfer(asset, who, poolAccount, amount, keepAlive); err != nil {
		return err
	}
	if err := e.ledger.Hold(asset, poolAccount, amount); err != nil {
		return err
	}

	e.state.AppendEvent(newPotIncreasedEvent(poolID, asset, amount))

	if e.state.PotIsEmpty(poolID, asset) &&
		e.ledger.BalanceOnHold(asset, poolAccount).Cmp(reward.Rate.Amount) >= 0 {
		reward.LastUpdatedTimestamp = e.clock.Now()
		e.state.ClearPotEmpty(poolID, asset)
		e.state.AppendEvent(newPoolResumedEvent(poolID, asset))
	}

	return e.state.PutRewardPool(poolID, pool)
}

// UpdateRewardsPool applies new reward rates, accumulating each touched
// reward up to now first so already-earned emissions are not re-priced.
func (e *Engine) UpdateRewardsPool(poolID assets.AssetID, updates map[assets.AssetID]RewardRate) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.state.GetRewardPool(poolID)
	if err != nil {
		return err
	}
	if pool == nil {
		return errPoolNotFound
	}
	now := e.clock.Now()

	ids := make([]assets.AssetID, 0, len(updates))
	for asset := range updates {
		ids = append(ids, asset)
	}
	sortAssetIDs(ids)

	for _, asset := range ids {
		reward, ok := pool.Rewards[asset]
		if !ok {
			return errRewardAssetNotFound
		}
		rate := updates[asset]
		if rate.Amount != nil && rate.Amount.Sign() > 0 && rate.PeriodSeconds == 0 {
			return errInvalidRewardRate
		}
		e.accumulateAndHandle(poolID, asset, reward, now)
		amount := big.NewInt(0)
		if rate.Amount != nil {
			amount = new(big.Int).Set(rate.Amount)
		}
		reward.Rate = RewardRate{Amount: amount, PeriodSeconds: rate.PeriodSeconds}
	}

	if err := e.state.PutRewardPool(poolID, pool); err != nil {
		return err
	}
	e.state.AppendEvent(newPoolUpdatedEvent(poolID))
	return nil
}

// collectRewards transfers the earned share of every reward asset to the
// owner, applying the early-unlock penalty when requested. Shared by Claim
// and Unstake.
func (e *Engine) collectRewards(poolID assets.AssetID, pool *RewardPool, instance fnft.InstanceID, stake *Stake, owner crypto.Address, penalize bool) error {
	poolAccount := e.PoolAccountID(poolID)
	totalShares := e.ledger.TotalIssuance(pool.ShareAssetID)

	for _, rewardAsset := range pool.rewardAssetIDs() {
		reward := pool.Rewards[rewardAsset]

		claim, err := e.claimOfStake(stake, totalShares, reward, rewardAsset)
		if err != nil {
			return err
		}

		payout := new(big.Int).Set(claim)
		if penalize {
			slashed := ratMulFloor(stake.Lock.UnlockPenalty, claim)
			if slashed.Sign() > 0 {
				e.state.AppendEvent(newRewardSlashedEvent(poolID, owner, instance, rewardAsset, slashed))
				if err := e.ledger.Transfer(rewardAsset, poolAccount, e.treasury, slashed, false); err != nil {
					return err
				}
			}
			payout.Sub(payout, slashed)
		}

		// Clamp to the unclaimed remainder so rounding can never overshoot
		// the ledger.
		unclaimed := new(big.Int).Sub(reward.TotalRewards, reward.ClaimedRewards)
		if unclaimed.Sign() < 0 {
			return errArithmetic
		}
		payout = minBig(payout, unclaimed)

		reward.ClaimedRewards = new(big.Int).Add(reward.ClaimedRewards, payout)

		// The reduction advances by the full pre-slash claim, making repeat
		// claims at the same instant pay zero.
		if previous, ok := stake.Reductions[rewardAsset]; ok {
			stake.Reductions[rewardAsset] = new(big.Int).Add(previous, claim)
		}

		if err := e.ledger.Transfer(rewardAsset, poolAccount, owner, payout, false); err != nil {
			return err
		}
	}
	return nil
}

// claimOfStake computes the accumulated-per-share claim for one reward
// asset: total_rewards * share / total_shares - reduction.
func (e *Engine) claimOfStake(stake *Stake, totalShares *big.Int, reward *Reward, rewardAsset assets.AssetID) (*big.Int, error) {
	if totalShares == nil || totalShares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	reduction := big.NewInt(0)
	if r, ok := stake.Reductions[rewardAsset]; ok {
		reduction = r
	} else {
		e.logger.Error("stake reductions missing reward asset",
			"pool", formatAsset(stake.RewardPoolID), "asset", formatAsset(rewardAsset))
	}
	claim := new(big.Int).Mul(reward.TotalRewards, stake.Share)
	claim.Quo(claim, totalShares)
	claim.Sub(claim, reduction)
	if claim.Sign() < 0 {
		return nil, errArithmetic
	}
	return claim, nil
}

// applyDilution grows every reward's total by the proportional inflation of
// the newly minted shares and returns the matching reductions for the new
// position.
func (e *Engine) applyDilution(pool *RewardPool, shares *big.Int) (map[assets.AssetID]*big.Int, error) {
	totalShares := e.ledger.TotalIssuance(pool.ShareAssetID)
	reductions := make(map[assets.AssetID]*big.Int, len(pool.Rewards))

	for _, rewardAsset := range pool.rewardAssetIDs() {
		reward := pool.Rewards[rewardAsset]
		inflation := big.NewInt(0)
		if totalShares.Sign() != 0 {
			inflation = new(big.Int).Mul(reward.TotalRewards, shares)
			inflation.Quo(inflation, totalShares)
		}
		reward.TotalRewards = new(big.Int).Add(reward.TotalRewards, inflation)
		reward.TotalDilutionAdjustment = new(big.Int).Add(reward.TotalDilutionAdjustment, inflation)
		reductions[rewardAsset] = inflation
	}
	return reductions, nil
}

// boostedAmount applies the duration multiplier to a staked amount,
// rounding down.
func boostedAmount(multiplier *big.Rat, amount *big.Int) *big.Int {
	return ratMulFloor(multiplier, amount)
}

func (e *Engine) ensureStakeOwner(who crypto.Address, collection assets.AssetID, instance fnft.InstanceID) error {
	owner, ok := e.nfts.Owner(collection, instance)
	if !ok {
		return errStakeNotFound
	}
	if !owner.Equal(who) {
		return errNotStakeOwner
	}
	return nil
}

func (e *Engine) transferStake(who crypto.Address, amount *big.Int, stakedAsset assets.AssetID, escrow crypto.Address, keepAlive bool) error {
	if err := e.ledger.Transfer(stakedAsset, who, escrow, amount, keepAlive); err != nil {
		return err
	}
	return e.ledger.SetLock(lockID, stakedAsset, escrow, e.ledger.Balance(stakedAsset, escrow))
}

func (e *Engine) mintShares(shareAsset assets.AssetID, shares *big.Int, escrow crypto.Address) error {
	if err := e.ledger.MintInto(shareAsset, escrow, shares); err != nil {
		return err
	}
	return e.ledger.SetLock(lockID, shareAsset, escrow, e.ledger.Balance(shareAsset, escrow))
}

// splitLock rebalances the escrow locks across the two positions resulting
// from a split, moving the new portion into the new escrow account.
func (e *Engine) splitLock(asset assets.AssetID, existingEscrow, newEscrow crypto.Address, existingAmount, newAmount *big.Int) error {
	if err := e.ledger.SetLock(lockID, asset, existingEscrow, existingAmount); err != nil {
		return err
	}
	if err := e.ledger.Transfer(asset, existingEscrow, newEscrow, newAmount, false); err != nil {
		return err
	}
	return e.ledger.SetLock(lockID, asset, newEscrow, newAmount)
}

func sortAssetIDs(ids []assets.AssetID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
