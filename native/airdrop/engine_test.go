package airdrop

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	nativecommon "helixchain/native/common"
)

const testAsset assets.AssetID = 5

type mockState struct {
	airdrops map[AirdropID]*Airdrop
	nextID   AirdropID
	events   []*types.Event
}

func newMockState() *mockState {
	return &mockState{airdrops: make(map[AirdropID]*Airdrop), nextID: 1}
}

func (m *mockState) GetAirdrop(id AirdropID) (*Airdrop, error) {
	airdrop, ok := m.airdrops[id]
	if !ok {
		return nil, nil
	}
	return airdrop, nil
}

func (m *mockState) PutAirdrop(id AirdropID, airdrop *Airdrop) error {
	m.airdrops[id] = airdrop
	return nil
}

func (m *mockState) RemoveAirdrop(id AirdropID) error {
	delete(m.airdrops, id)
	return nil
}

func (m *mockState) NextAirdropID() AirdropID {
	id := m.nextID
	m.nextID++
	return id
}

func (m *mockState) AppendEvent(evt *types.Event) {
	m.events = append(m.events, evt)
}

type mockClock struct {
	now uint64
}

func (c *mockClock) Now() uint64 { return c.now }

type testEnv struct {
	engine  *Engine
	state   *mockState
	ledger  *assets.Ledger
	clock   *mockClock
	creator crypto.Address
	alice   crypto.Address
	bob     crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	state := newMockState()
	ledger := assets.NewLedger()
	clock := &mockClock{now: 1_000}
	engine := NewEngine(ledger, clock)
	engine.SetState(state)
	creator := crypto.DeriveModuleAddress("creator")
	require.NoError(t, ledger.MintInto(testAsset, creator, big.NewInt(10_000)))
	return &testEnv{
		engine:  engine,
		state:   state,
		ledger:  ledger,
		clock:   clock,
		creator: creator,
		alice:   crypto.DeriveModuleAddress("alice"),
		bob:     crypto.DeriveModuleAddress("bob"),
	}
}

type mockPauses struct {
	paused bool
}

func (p *mockPauses) IsPaused(string) bool { return p.paused }

func TestPausedModuleBlocksAdministration(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)

	pauses := &mockPauses{paused: true}
	env.engine.SetPauses(pauses)

	require.ErrorIs(t, env.engine.EnableAirdrop(env.creator, id), nativecommon.ErrModulePaused)
	require.ErrorIs(t, env.engine.DisableAirdrop(env.creator, id), nativecommon.ErrModulePaused)

	pauses.paused = false
	require.NoError(t, env.engine.EnableAirdrop(env.creator, id))
}

func TestCreateAirdropRejectsPastStart(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CreateAirdrop(env.creator, testAsset, 500, 60)
	require.ErrorIs(t, err, ErrBackToTheFuture)

	_, err = env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 0)
	require.ErrorIs(t, err, errInvalidWindow)

	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)
	require.Equal(t, AirdropID(1), id)
}

func TestAddRecipientsEscrowsFunds(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)

	grants := []RecipientGrant{
		{Who: env.alice, Amount: big.NewInt(600), VestingPeriodSeconds: 600},
		{Who: env.bob, Amount: big.NewInt(400)},
	}
	require.NoError(t, env.engine.AddRecipients(env.creator, id, grants))
	require.Equal(t, big.NewInt(1_000), env.ledger.Balance(testAsset, Account(id)))
	require.Equal(t, big.NewInt(9_000), env.ledger.Balance(testAsset, env.creator))

	require.ErrorIs(t, env.engine.AddRecipients(env.creator, id, grants), errRecipientExists)
	require.ErrorIs(t, env.engine.AddRecipients(env.alice, id, nil), errNotAirdropCreator)
}

func TestClaimFollowsVestingWindows(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)
	require.NoError(t, env.engine.AddRecipients(env.creator, id, []RecipientGrant{
		{Who: env.alice, Amount: big.NewInt(600), VestingPeriodSeconds: 600},
	}))

	// Not started yet.
	_, err = env.engine.Claim(env.alice, id)
	require.ErrorIs(t, err, errAirdropNotStarted)

	// 90s in: one full 60s window of a 600s vesting has passed, 10% vested.
	env.clock.now = 2_090
	payout, err := env.engine.Claim(env.alice, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(60), payout)

	// Same window, nothing new.
	_, err = env.engine.Claim(env.alice, id)
	require.ErrorIs(t, err, errNothingToClaim)

	// Past the full vesting period the remainder is claimable.
	env.clock.now = 2_000 + 600
	payout, err = env.engine.Claim(env.alice, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(540), payout)
	require.Equal(t, big.NewInt(600), env.ledger.Balance(testAsset, env.alice))
}

func TestImmediateVestingGrant(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 0, 60)
	require.NoError(t, err)
	require.NoError(t, env.engine.AddRecipients(env.creator, id, []RecipientGrant{
		{Who: env.bob, Amount: big.NewInt(250)},
	}))

	require.NoError(t, env.engine.EnableAirdrop(env.creator, id))

	payout, err := env.engine.Claim(env.bob, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(250), payout)
}

func TestRemoveRecipientRefundsAndPrunes(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)
	require.NoError(t, env.engine.AddRecipients(env.creator, id, []RecipientGrant{
		{Who: env.alice, Amount: big.NewInt(600), VestingPeriodSeconds: 600},
		{Who: env.bob, Amount: big.NewInt(400)},
	}))

	require.NoError(t, env.engine.RemoveRecipient(env.creator, id, env.bob))
	require.Equal(t, big.NewInt(9_400), env.ledger.Balance(testAsset, env.creator))
	_, ok := env.state.airdrops[id]
	require.True(t, ok)

	// Removing the last recipient prunes the airdrop entirely.
	require.NoError(t, env.engine.RemoveRecipient(env.creator, id, env.alice))
	_, ok = env.state.airdrops[id]
	require.False(t, ok)
	require.Equal(t, big.NewInt(10_000), env.ledger.Balance(testAsset, env.creator))
}

func TestRemoveRecipientRejectedAfterClaim(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)
	require.NoError(t, env.engine.AddRecipients(env.creator, id, []RecipientGrant{
		{Who: env.alice, Amount: big.NewInt(600), VestingPeriodSeconds: 600},
	}))

	env.clock.now = 2_090
	_, err = env.engine.Claim(env.alice, id)
	require.NoError(t, err)

	require.ErrorIs(t, env.engine.RemoveRecipient(env.creator, id, env.alice), errRecipientClaimed)
}

func TestDisableRefundsUnclaimed(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.engine.CreateAirdrop(env.creator, testAsset, 2_000, 60)
	require.NoError(t, err)
	require.NoError(t, env.engine.AddRecipients(env.creator, id, []RecipientGrant{
		{Who: env.alice, Amount: big.NewInt(600), VestingPeriodSeconds: 600},
	}))

	env.clock.now = 2_090
	payout, err := env.engine.Claim(env.alice, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(60), payout)

	require.NoError(t, env.engine.DisableAirdrop(env.creator, id))
	require.Equal(t, big.NewInt(9_940), env.ledger.Balance(testAsset, env.creator))
	_, ok := env.state.airdrops[id]
	require.False(t, ok)
}
