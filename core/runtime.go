// Package core wires the module engines to the world state and exposes the
// authorized entrypoints. Every entrypoint runs inside a state snapshot and
// rolls back on error.
package core

import (
	"errors"
	"log/slog"
	"math/big"
	"time"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/airdrop"
	"helixchain/native/assets"
	"helixchain/native/common"
	"helixchain/native/fnft"
	"helixchain/native/loans"
	"helixchain/native/staking"
	"helixchain/state"
)

var (
	errUnauthorized = errors.New("core: caller not authorized")
	errNotSigned    = errors.New("core: operation requires a signed caller")
)

// Clock abstracts wall time so tests can drive the runtime deterministically.
type Clock interface {
	Now() uint64
}

// SystemClock reads the host's wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Runtime owns the state manager and the module engines.
type Runtime struct {
	state    *state.Manager
	staking  *staking.Engine
	loans    *loans.Engine
	airdrops *airdrop.Engine
	clock    Clock
	logger   *slog.Logger

	// requestQuota rate-limits signed entrypoints per address. A zero
	// quota disables enforcement.
	requestQuota common.Quota
	quotaUsage   map[string]common.QuotaNow

	blockHeight uint64
	// lastPaymentDay tracks the last day-aligned timestamp the loan
	// schedules were checked, so the daily sweep runs once per day.
	lastPaymentDay uint64
}

// NewRuntime assembles the engines around a fresh state manager. The
// treasury account receives slashed funds.
func NewRuntime(clock Clock, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager()
	treasury := crypto.DeriveModuleAddress("treasury")

	stakingEngine := staking.NewEngine(manager.Ledger(), manager.NFTs(), clock, treasury)
	stakingEngine.SetState(manager)
	stakingEngine.SetPauses(manager)
	stakingEngine.SetLogger(logger)

	loanEngine := loans.NewEngine(manager.Ledger(), manager.Oracle(), manager.Vaults(), clock)
	loanEngine.SetState(manager)
	loanEngine.SetPauses(manager)
	loanEngine.SetLogger(logger)

	airdropEngine := airdrop.NewEngine(manager.Ledger(), clock)
	airdropEngine.SetState(manager)
	airdropEngine.SetPauses(manager)

	return &Runtime{
		state:      manager,
		staking:    stakingEngine,
		loans:      loanEngine,
		airdrops:   airdropEngine,
		clock:      clock,
		logger:     logger,
		quotaUsage: make(map[string]common.QuotaNow),
	}
}

// SetRequestQuota configures the per-address rate limit applied to signed
// entrypoints.
func (r *Runtime) SetRequestQuota(q common.Quota) { r.requestQuota = q }

// State exposes the world state, used by genesis seeding and tests.
func (r *Runtime) State() *state.Manager { return r.state }

// BlockHeight returns the current block height.
func (r *Runtime) BlockHeight() uint64 { return r.blockHeight }

// run executes op inside a snapshot, reverting all state on error.
func (r *Runtime) run(name string, op func() error) error {
	r.state.Snapshot()
	if err := op(); err != nil {
		if revertErr := r.state.RevertToSnapshot(); revertErr != nil {
			r.logger.Error("state revert failed", "op", name, "err", revertErr)
		}
		return err
	}
	r.state.DiscardSnapshot()
	return nil
}

// signedAccount resolves the caller's account and charges one request against
// its quota.
func (r *Runtime) signedAccount(caller types.Caller) (crypto.Address, error) {
	account, ok := caller.Account()
	if !ok {
		return crypto.Address{}, errNotSigned
	}
	if r.requestQuota.Enabled() {
		epoch := r.clock.Now() / uint64(r.requestQuota.EpochSeconds)
		key := account.Key()
		next, err := common.CheckQuota(r.requestQuota, epoch, r.quotaUsage[key], 1, 0)
		if err != nil {
			return crypto.Address{}, err
		}
		r.quotaUsage[key] = next
	}
	return account, nil
}

// OnInitialize runs the per-block hooks: reward accumulation every block,
// loan schedule collection and vault rebalancing once per day.
func (r *Runtime) OnInitialize(blockHeight uint64) error {
	r.blockHeight = blockHeight
	r.state.ClearEvents()
	now := r.clock.Now()

	return r.run("on_initialize", func() error {
		if err := r.staking.AccumulateHook(blockHeight); err != nil {
			return err
		}
		today := loans.AlignToDay(now)
		if today > r.lastPaymentDay {
			if err := r.loans.CheckPayments(now); err != nil {
				return err
			}
			if err := r.loans.TerminateExpiredLoans(now); err != nil {
				return err
			}
			if err := r.loans.TreatVaultsBalance(); err != nil {
				return err
			}
			r.lastPaymentDay = today
		}
		return nil
	})
}

// CreateRewardPool is a governance operation.
func (r *Runtime) CreateRewardPool(caller types.Caller, cfg staking.PoolConfig) (assets.AssetID, error) {
	if !caller.IsRoot() {
		return 0, errUnauthorized
	}
	var poolID assets.AssetID
	err := r.run("create_reward_pool", func() error {
		var err error
		poolID, err = r.staking.CreateRewardPool(cfg)
		return err
	})
	return poolID, err
}

// UpdateRewardsPool is a governance operation.
func (r *Runtime) UpdateRewardsPool(caller types.Caller, poolID assets.AssetID, updates map[assets.AssetID]staking.RewardRate) error {
	if !caller.IsRoot() {
		return errUnauthorized
	}
	return r.run("update_rewards_pool", func() error {
		return r.staking.UpdateRewardsPool(poolID, updates)
	})
}

func (r *Runtime) Stake(caller types.Caller, poolID assets.AssetID, amount *big.Int, duration uint64, keepAlive bool) (fnft.InstanceID, error) {
	who, err := r.signedAccount(caller)
	if err != nil {
		return 0, err
	}
	var instance fnft.InstanceID
	err = r.run("stake", func() error {
		var err error
		instance, err = r.staking.Stake(who, poolID, amount, duration, keepAlive)
		return err
	})
	return instance, err
}

func (r *Runtime) Extend(caller types.Caller, collection assets.AssetID, instance fnft.InstanceID, amount *big.Int, keepAlive bool) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("extend", func() error {
		return r.staking.Extend(who, collection, instance, amount, keepAlive)
	})
}

func (r *Runtime) Unstake(caller types.Caller, collection assets.AssetID, instance fnft.InstanceID) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("unstake", func() error {
		return r.staking.Unstake(who, collection, instance)
	})
}

func (r *Runtime) SplitPosition(caller types.Caller, collection assets.AssetID, instance fnft.InstanceID, ratio *big.Rat) (fnft.InstanceID, error) {
	who, err := r.signedAccount(caller)
	if err != nil {
		return 0, err
	}
	var created fnft.InstanceID
	err = r.run("split", func() error {
		var err error
		created, err = r.staking.Split(who, collection, instance, ratio)
		return err
	})
	return created, err
}

func (r *Runtime) Claim(caller types.Caller, collection assets.AssetID, instance fnft.InstanceID) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("claim", func() error {
		return r.staking.Claim(who, collection, instance)
	})
}

func (r *Runtime) TransferReward(caller types.Caller, poolID, rewardAsset assets.AssetID, amount *big.Int, keepAlive bool) error {
	from, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("transfer_reward", func() error {
		return r.staking.TransferReward(from, poolID, rewardAsset, amount, keepAlive)
	})
}

func (r *Runtime) AddToRewardsPot(caller types.Caller, poolID, asset assets.AssetID, amount *big.Int, keepAlive bool) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("add_to_rewards_pot", func() error {
		return r.staking.AddToRewardsPot(who, poolID, asset, amount, keepAlive)
	})
}

// CreateMarket requires the signed caller to be the market manager.
func (r *Runtime) CreateMarket(caller types.Caller, cfg loans.MarketConfig) (loans.MarketID, error) {
	who, err := r.signedAccount(caller)
	if err != nil {
		return 0, err
	}
	if !who.Equal(cfg.Manager) {
		return 0, errUnauthorized
	}
	var marketID loans.MarketID
	err = r.run("create_market", func() error {
		var err error
		marketID, err = r.loans.CreateMarket(cfg)
		return err
	})
	return marketID, err
}

func (r *Runtime) CreateLoan(caller types.Caller, cfg loans.LoanConfig) (loans.LoanID, error) {
	if _, err := r.signedAccount(caller); err != nil {
		return 0, err
	}
	var loanID loans.LoanID
	err := r.run("create_loan", func() error {
		var err error
		loanID, err = r.loans.CreateLoan(cfg)
		return err
	})
	return loanID, err
}

func (r *Runtime) Borrow(caller types.Caller, loanID loans.LoanID) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("borrow", func() error {
		return r.loans.Borrow(who, loanID)
	})
}

func (r *Runtime) RepayInstallment(caller types.Caller, loanID loans.LoanID, amount *big.Int) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("repay", func() error {
		return r.loans.RepayInstallment(who, loanID, amount)
	})
}

func (r *Runtime) CreateAirdrop(caller types.Caller, asset assets.AssetID, startAt, vestingWindowSeconds uint64) (airdrop.AirdropID, error) {
	who, err := r.signedAccount(caller)
	if err != nil {
		return 0, err
	}
	var id airdrop.AirdropID
	err = r.run("create_airdrop", func() error {
		var err error
		id, err = r.airdrops.CreateAirdrop(who, asset, startAt, vestingWindowSeconds)
		return err
	})
	return id, err
}

func (r *Runtime) AddAirdropRecipients(caller types.Caller, id airdrop.AirdropID, grants []airdrop.RecipientGrant) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("add_airdrop_recipients", func() error {
		return r.airdrops.AddRecipients(who, id, grants)
	})
}

func (r *Runtime) RemoveAirdropRecipient(caller types.Caller, id airdrop.AirdropID, who crypto.Address) error {
	creator, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("remove_airdrop_recipient", func() error {
		return r.airdrops.RemoveRecipient(creator, id, who)
	})
}

func (r *Runtime) EnableAirdrop(caller types.Caller, id airdrop.AirdropID) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("enable_airdrop", func() error {
		return r.airdrops.EnableAirdrop(who, id)
	})
}

func (r *Runtime) DisableAirdrop(caller types.Caller, id airdrop.AirdropID) error {
	who, err := r.signedAccount(caller)
	if err != nil {
		return err
	}
	return r.run("disable_airdrop", func() error {
		return r.airdrops.DisableAirdrop(who, id)
	})
}

func (r *Runtime) ClaimAirdrop(caller types.Caller, id airdrop.AirdropID) (*big.Int, error) {
	who, err := r.signedAccount(caller)
	if err != nil {
		return nil, err
	}
	var payout *big.Int
	err = r.run("claim_airdrop", func() error {
		var err error
		payout, err = r.airdrops.Claim(who, id)
		return err
	})
	return payout, err
}

// SetModulePaused is a governance switch halting a module's entrypoints.
func (r *Runtime) SetModulePaused(caller types.Caller, module string, paused bool) error {
	if !caller.IsRoot() {
		return errUnauthorized
	}
	r.state.SetPaused(module, paused)
	return nil
}
