// Package airdrop implements creator-funded token distributions with
// linear, window-stepped vesting.
package airdrop

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sort"
	"strconv"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	nativecommon "helixchain/native/common"
)

const moduleName = "airdrop"

var (
	errNilState           = errors.New("airdrop engine: state not configured")
	errAirdropNotFound    = errors.New("airdrop engine: airdrop not found")
	errNotAirdropCreator  = errors.New("airdrop engine: caller is not the creator")
	errRecipientNotFound  = errors.New("airdrop engine: recipient not found")
	errRecipientExists    = errors.New("airdrop engine: recipient already added")
	errRecipientClaimed   = errors.New("airdrop engine: recipient already started claiming")
	errAirdropNotStarted  = errors.New("airdrop engine: airdrop has not started")
	errInvalidWindow      = errors.New("airdrop engine: vesting window must be positive")
	errInvalidAmount      = errors.New("airdrop engine: amount must be positive")
	errNothingToClaim     = errors.New("airdrop engine: nothing to claim yet")
	ErrBackToTheFuture    = errors.New("airdrop engine: start must not be in the past")
	ErrAirdropNotFound    = errAirdropNotFound
	ErrRecipientNotFound  = errRecipientNotFound
)

// Event types emitted by the airdrop engine.
const (
	EventTypeCreated          = "airdrop.created"
	EventTypeStarted          = "airdrop.started"
	EventTypeRecipientsAdded  = "airdrop.recipients.added"
	EventTypeRecipientRemoved = "airdrop.recipient.removed"
	EventTypeDisabled         = "airdrop.disabled"
	EventTypeClaimed          = "airdrop.claimed"
)

// AirdropID identifies a distribution.
type AirdropID uint64

// Recipient tracks one beneficiary's grant and claim progress.
type Recipient struct {
	Total                *big.Int
	Claimed              *big.Int
	VestingPeriodSeconds uint64
}

func (r *Recipient) clone() *Recipient {
	return &Recipient{
		Total:                new(big.Int).Set(r.Total),
		Claimed:              new(big.Int).Set(r.Claimed),
		VestingPeriodSeconds: r.VestingPeriodSeconds,
	}
}

// Airdrop is a single distribution. StartAt of zero means not yet enabled.
type Airdrop struct {
	Creator              crypto.Address
	AssetID              assets.AssetID
	StartAt              uint64
	VestingWindowSeconds uint64
	Recipients           map[string]*Recipient
}

func (a *Airdrop) Clone() *Airdrop {
	recipients := make(map[string]*Recipient, len(a.Recipients))
	for key, recipient := range a.Recipients {
		recipients[key] = recipient.clone()
	}
	return &Airdrop{
		Creator:              a.Creator,
		AssetID:              a.AssetID,
		StartAt:              a.StartAt,
		VestingWindowSeconds: a.VestingWindowSeconds,
		Recipients:           recipients,
	}
}

// RecipientGrant is the AddRecipients input row.
type RecipientGrant struct {
	Who    crypto.Address
	Amount *big.Int
	// VestingPeriodSeconds of zero vests the grant immediately at start.
	VestingPeriodSeconds uint64
}

// engineState is the persistence surface the airdrop engine requires.
type engineState interface {
	GetAirdrop(id AirdropID) (*Airdrop, error)
	PutAirdrop(id AirdropID, airdrop *Airdrop) error
	RemoveAirdrop(id AirdropID) error
	NextAirdropID() AirdropID
	AppendEvent(evt *types.Event)
}

// AssetLedger is the fungible-asset collaborator.
type AssetLedger interface {
	Transfer(asset assets.AssetID, from, to crypto.Address, amount *big.Int, keepAlive bool) error
}

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() uint64
}

// Engine manages airdrop lifecycles and vested claims.
type Engine struct {
	state  engineState
	ledger AssetLedger
	clock  Clock
	pauses nativecommon.PauseView
}

func NewEngine(ledger AssetLedger, clock Clock) *Engine {
	return &Engine{ledger: ledger, clock: clock}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Account returns the airdrop's fund escrow account.
func Account(id AirdropID) crypto.Address {
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, uint64(id))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress(moduleName), seed)
}

// CreateAirdrop registers a distribution. A non-zero startAt schedules it;
// zero leaves it disabled until EnableAirdrop.
func (e *Engine) CreateAirdrop(creator crypto.Address, asset assets.AssetID, startAt, vestingWindowSeconds uint64) (AirdropID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if vestingWindowSeconds == 0 {
		return 0, errInvalidWindow
	}
	if startAt != 0 && startAt < e.clock.Now() {
		return 0, ErrBackToTheFuture
	}
	id := e.state.NextAirdropID()
	airdrop := &Airdrop{
		Creator:              creator,
		AssetID:              asset,
		StartAt:              startAt,
		VestingWindowSeconds: vestingWindowSeconds,
		Recipients:           make(map[string]*Recipient),
	}
	if err := e.state.PutAirdrop(id, airdrop); err != nil {
		return 0, err
	}
	e.state.AppendEvent(&types.Event{Type: EventTypeCreated, Attributes: map[string]string{
		"airdrop": formatID(id),
		"creator": creator.String(),
	}})
	return id, nil
}

// AddRecipients funds and registers grants. The creator pays the grand
// total into the airdrop escrow up front.
func (e *Engine) AddRecipients(creator crypto.Address, id AirdropID, grants []RecipientGrant) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	airdrop, err := e.creatorAirdrop(creator, id)
	if err != nil {
		return err
	}
	total := big.NewInt(0)
	for _, grant := range grants {
		if grant.Amount == nil || grant.Amount.Sign() <= 0 {
			return errInvalidAmount
		}
		if _, ok := airdrop.Recipients[grant.Who.Key()]; ok {
			return errRecipientExists
		}
		total.Add(total, grant.Amount)
	}
	if err := e.ledger.Transfer(airdrop.AssetID, creator, Account(id), total, false); err != nil {
		return err
	}
	for _, grant := range grants {
		airdrop.Recipients[grant.Who.Key()] = &Recipient{
			Total:                new(big.Int).Set(grant.Amount),
			Claimed:              big.NewInt(0),
			VestingPeriodSeconds: grant.VestingPeriodSeconds,
		}
	}
	if err := e.state.PutAirdrop(id, airdrop); err != nil {
		return err
	}
	e.state.AppendEvent(&types.Event{Type: EventTypeRecipientsAdded, Attributes: map[string]string{
		"airdrop": formatID(id),
		"funded":  total.String(),
	}})
	return nil
}

// RemoveRecipient cancels a grant, refunding its unclaimed remainder to the
// creator. Removing the last recipient prunes the whole airdrop.
func (e *Engine) RemoveRecipient(creator crypto.Address, id AirdropID, who crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	airdrop, err := e.creatorAirdrop(creator, id)
	if err != nil {
		return err
	}
	recipient, ok := airdrop.Recipients[who.Key()]
	if !ok {
		return errRecipientNotFound
	}
	if recipient.Claimed.Sign() > 0 {
		return errRecipientClaimed
	}
	unclaimed := new(big.Int).Sub(recipient.Total, recipient.Claimed)
	if unclaimed.Sign() > 0 {
		if err := e.ledger.Transfer(airdrop.AssetID, Account(id), creator, unclaimed, false); err != nil {
			return err
		}
	}
	delete(airdrop.Recipients, who.Key())

	e.state.AppendEvent(&types.Event{Type: EventTypeRecipientRemoved, Attributes: map[string]string{
		"airdrop":  formatID(id),
		"refunded": unclaimed.String(),
	}})
	if len(airdrop.Recipients) == 0 {
		return e.state.RemoveAirdrop(id)
	}
	return e.state.PutAirdrop(id, airdrop)
}

// EnableAirdrop starts a not-yet-scheduled airdrop immediately.
func (e *Engine) EnableAirdrop(creator crypto.Address, id AirdropID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	airdrop, err := e.creatorAirdrop(creator, id)
	if err != nil {
		return err
	}
	if airdrop.StartAt == 0 {
		airdrop.StartAt = e.clock.Now()
	}
	if err := e.state.PutAirdrop(id, airdrop); err != nil {
		return err
	}
	e.state.AppendEvent(&types.Event{Type: EventTypeStarted, Attributes: map[string]string{
		"airdrop": formatID(id),
		"startAt": strconv.FormatUint(airdrop.StartAt, 10),
	}})
	return nil
}

// DisableAirdrop tears a distribution down, refunding every unclaimed
// grant to the creator.
func (e *Engine) DisableAirdrop(creator crypto.Address, id AirdropID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	airdrop, err := e.creatorAirdrop(creator, id)
	if err != nil {
		return err
	}
	refund := big.NewInt(0)
	keys := make([]string, 0, len(airdrop.Recipients))
	for key := range airdrop.Recipients {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		recipient := airdrop.Recipients[key]
		refund.Add(refund, new(big.Int).Sub(recipient.Total, recipient.Claimed))
	}
	if refund.Sign() > 0 {
		if err := e.ledger.Transfer(airdrop.AssetID, Account(id), creator, refund, false); err != nil {
			return err
		}
	}
	if err := e.state.RemoveAirdrop(id); err != nil {
		return err
	}
	e.state.AppendEvent(&types.Event{Type: EventTypeDisabled, Attributes: map[string]string{
		"airdrop":  formatID(id),
		"refunded": refund.String(),
	}})
	return nil
}

// Claim pays the vested, unclaimed portion of the caller's grant. Vesting
// advances in whole windows: after the full vesting period the entire
// grant is claimable.
func (e *Engine) Claim(who crypto.Address, id AirdropID) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	airdrop, err := e.state.GetAirdrop(id)
	if err != nil {
		return nil, err
	}
	if airdrop == nil {
		return nil, errAirdropNotFound
	}
	now := e.clock.Now()
	if airdrop.StartAt == 0 || now < airdrop.StartAt {
		return nil, errAirdropNotStarted
	}
	recipient, ok := airdrop.Recipients[who.Key()]
	if !ok {
		return nil, errRecipientNotFound
	}

	vested := vestedAmount(recipient, airdrop.StartAt, airdrop.VestingWindowSeconds, now)
	payout := new(big.Int).Sub(vested, recipient.Claimed)
	if payout.Sign() <= 0 {
		return nil, errNothingToClaim
	}
	if err := e.ledger.Transfer(airdrop.AssetID, Account(id), who, payout, false); err != nil {
		return nil, err
	}
	recipient.Claimed = vested
	if err := e.state.PutAirdrop(id, airdrop); err != nil {
		return nil, err
	}
	e.state.AppendEvent(&types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"airdrop": formatID(id),
		"who":     who.String(),
		"amount":  payout.String(),
	}})
	return payout, nil
}

// vestedAmount computes the window-stepped linear vesting of a grant.
func vestedAmount(recipient *Recipient, startAt, window, now uint64) *big.Int {
	if recipient.VestingPeriodSeconds == 0 {
		return new(big.Int).Set(recipient.Total)
	}
	elapsed := now - startAt
	if elapsed >= recipient.VestingPeriodSeconds {
		return new(big.Int).Set(recipient.Total)
	}
	steps := elapsed / window
	vestedSeconds := steps * window
	vested := new(big.Int).Mul(recipient.Total, new(big.Int).SetUint64(vestedSeconds))
	return vested.Quo(vested, new(big.Int).SetUint64(recipient.VestingPeriodSeconds))
}

func (e *Engine) creatorAirdrop(creator crypto.Address, id AirdropID) (*Airdrop, error) {
	airdrop, err := e.state.GetAirdrop(id)
	if err != nil {
		return nil, err
	}
	if airdrop == nil {
		return nil, errAirdropNotFound
	}
	if !airdrop.Creator.Equal(creator) {
		return nil, errNotAirdropCreator
	}
	return airdrop, nil
}

func formatID(id AirdropID) string {
	return strconv.FormatUint(uint64(id), 10)
}
