package staking

import "errors"

var (
	errNilState                  = errors.New("staking engine: state not configured")
	errInvalidAssetID            = errors.New("staking engine: asset ids must be greater than zero")
	errPoolAlreadyExists         = errors.New("staking engine: rewards pool already exists")
	errPoolNotFound              = errors.New("staking engine: rewards pool not found")
	errPoolNotStarted            = errors.New("staking engine: rewards pool has not started")
	errStartBlockNotInFuture     = errors.New("staking engine: start block must be after the current block")
	errEndBeforeStart            = errors.New("staking engine: end block must be after the start block")
	errNoDurationPresets         = errors.New("staking engine: no duration presets provided")
	errInvalidMultiplier         = errors.New("staking engine: duration preset multiplier must be >= 1")
	errInvalidPenalty            = errors.New("staking engine: unlock penalty must be a fraction in [0, 1]")
	errInvalidRewardRate         = errors.New("staking engine: reward rate period must be positive")
	errSlashedRewardTooLow       = errors.New("staking engine: slashed reward below existential deposit")
	errSlashedMinimumStakeTooLow = errors.New("staking engine: slashed minimum stake below existential deposit")
	errDurationPresetNotFound    = errors.New("staking engine: duration preset not found")
	errStakeNotFound             = errors.New("staking engine: stake not found")
	errNotStakeOwner             = errors.New("staking engine: only the stake owner can interact with the stake")
	errStakedAmountTooLow        = errors.New("staking engine: staked amount below the pool minimum")
	errSplitAmountTooLow         = errors.New("staking engine: staked amount after split below the pool minimum")
	errInvalidSplitRatio         = errors.New("staking engine: split ratio must be strictly between 0 and 1")
	errNotEnoughAssets           = errors.New("staking engine: not enough withdrawable assets")
	errRewardAssetNotFound       = errors.New("staking engine: reward asset not found in pool")
	errArithmetic                = errors.New("staking engine: arithmetic overflow")
	errBackToTheFuture           = errors.New("staking engine: clock moved backwards")
)

// Exported sentinels for callers that classify failures.
var (
	ErrPoolNotFound   = errPoolNotFound
	ErrStakeNotFound  = errStakeNotFound
	ErrNotStakeOwner  = errNotStakeOwner
	ErrBackToTheFuture = errBackToTheFuture
)
