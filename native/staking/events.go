package staking

import (
	"math/big"
	"strconv"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	"helixchain/native/fnft"
)

const (
	EventTypePoolCreated       = "staking.pool.created"
	EventTypePoolStarted       = "staking.pool.started"
	EventTypePoolUpdated       = "staking.pool.updated"
	EventTypePoolPaused        = "staking.pool.paused"
	EventTypePoolResumed       = "staking.pool.resumed"
	EventTypeStaked            = "staking.staked"
	EventTypeStakeExtended     = "staking.stake.extended"
	EventTypeUnstaked          = "staking.unstaked"
	EventTypeSplitPosition     = "staking.position.split"
	EventTypeClaimed           = "staking.claimed"
	EventTypeRewardTransferred = "staking.reward.transferred"
	EventTypePotIncreased      = "staking.pot.increased"
	EventTypeRewardSlashed     = "staking.reward.slashed"
	EventTypeAccumulationError = "staking.accumulation.error"
)

func formatAsset(id assets.AssetID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func formatInstance(id fnft.InstanceID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newPoolCreatedEvent(poolID assets.AssetID, owner crypto.Address, endBlock uint64) *types.Event {
	return &types.Event{Type: EventTypePoolCreated, Attributes: map[string]string{
		"poolId":   formatAsset(poolID),
		"owner":    owner.String(),
		"endBlock": strconv.FormatUint(endBlock, 10),
	}}
}

func newPoolStartedEvent(poolID assets.AssetID) *types.Event {
	return &types.Event{Type: EventTypePoolStarted, Attributes: map[string]string{
		"poolId": formatAsset(poolID),
	}}
}

func newPoolUpdatedEvent(poolID assets.AssetID) *types.Event {
	return &types.Event{Type: EventTypePoolUpdated, Attributes: map[string]string{
		"poolId": formatAsset(poolID),
	}}
}

func newPoolPausedEvent(poolID, asset assets.AssetID) *types.Event {
	return &types.Event{Type: EventTypePoolPaused, Attributes: map[string]string{
		"poolId":  formatAsset(poolID),
		"assetId": formatAsset(asset),
	}}
}

func newPoolResumedEvent(poolID, asset assets.AssetID) *types.Event {
	return &types.Event{Type: EventTypePoolResumed, Attributes: map[string]string{
		"poolId":  formatAsset(poolID),
		"assetId": formatAsset(asset),
	}}
}

func newStakedEvent(poolID assets.AssetID, owner crypto.Address, amount *big.Int, duration uint64, collection assets.AssetID, instance fnft.InstanceID) *types.Event {
	return &types.Event{Type: EventTypeStaked, Attributes: map[string]string{
		"poolId":     formatAsset(poolID),
		"owner":      owner.String(),
		"amount":     formatAmount(amount),
		"duration":   strconv.FormatUint(duration, 10),
		"collection": formatAsset(collection),
		"instance":   formatInstance(instance),
	}}
}

func newStakeExtendedEvent(collection assets.AssetID, instance fnft.InstanceID, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeStakeExtended, Attributes: map[string]string{
		"collection": formatAsset(collection),
		"instance":   formatInstance(instance),
		"amount":     formatAmount(amount),
	}}
}

func newUnstakedEvent(poolID assets.AssetID, owner crypto.Address, collection assets.AssetID, instance fnft.InstanceID, slash *big.Int) *types.Event {
	attrs := map[string]string{
		"poolId":     formatAsset(poolID),
		"owner":      owner.String(),
		"collection": formatAsset(collection),
		"instance":   formatInstance(instance),
	}
	if slash != nil {
		attrs["slash"] = formatAmount(slash)
	}
	return &types.Event{Type: EventTypeUnstaked, Attributes: attrs}
}

func newSplitPositionEvent(collection assets.AssetID, existing, created fnft.InstanceID, existingAmount, createdAmount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSplitPosition, Attributes: map[string]string{
		"collection":  formatAsset(collection),
		"instance":    formatInstance(existing),
		"amount":      formatAmount(existingAmount),
		"newInstance": formatInstance(created),
		"newAmount":   formatAmount(createdAmount),
	}}
}

func newClaimedEvent(poolID assets.AssetID, owner crypto.Address, collection assets.AssetID, instance fnft.InstanceID) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"poolId":     formatAsset(poolID),
		"owner":      owner.String(),
		"collection": formatAsset(collection),
		"instance":   formatInstance(instance),
	}}
}

func newRewardTransferredEvent(from crypto.Address, poolID, rewardAsset assets.AssetID, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardTransferred, Attributes: map[string]string{
		"from":        from.String(),
		"poolId":      formatAsset(poolID),
		"rewardAsset": formatAsset(rewardAsset),
		"amount":      formatAmount(amount),
	}}
}

func newPotIncreasedEvent(poolID, asset assets.AssetID, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypePotIncreased, Attributes: map[string]string{
		"poolId":  formatAsset(poolID),
		"assetId": formatAsset(asset),
		"amount":  formatAmount(amount),
	}}
}

func newRewardSlashedEvent(poolID assets.AssetID, owner crypto.Address, instance fnft.InstanceID, rewardAsset assets.AssetID, slashed *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardSlashed, Attributes: map[string]string{
		"poolId":      formatAsset(poolID),
		"owner":       owner.String(),
		"instance":    formatInstance(instance),
		"rewardAsset": formatAsset(rewardAsset),
		"amount":      formatAmount(slashed),
	}}
}

func newAccumulationErrorEvent(poolID, asset assets.AssetID, reason string) *types.Event {
	return &types.Event{Type: EventTypeAccumulationError, Attributes: map[string]string{
		"poolId":  formatAsset(poolID),
		"assetId": formatAsset(asset),
		"error":   reason,
	}}
}
