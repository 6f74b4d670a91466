// Package state owns the runtime's mutable books and provides deep-copy
// snapshots so entrypoints can apply all-or-nothing semantics.
package state

import (
	"errors"
	"sort"

	"helixchain/core/types"
	"helixchain/native/airdrop"
	"helixchain/native/assets"
	"helixchain/native/fnft"
	"helixchain/native/loans"
	"helixchain/native/oracle"
	"helixchain/native/staking"
	"helixchain/native/vault"
)

var errNoSnapshot = errors.New("state: no snapshot to revert to")

type stakeKey struct {
	collection assets.AssetID
	instance   fnft.InstanceID
}

type potKey struct {
	pool  assets.AssetID
	asset assets.AssetID
}

// Manager is the in-memory world state: the asset ledger, NFT registry,
// price oracle, vault book and every module's records plus the block's
// event log.
type Manager struct {
	ledger *assets.Ledger
	nfts   *fnft.Registry
	oracle *oracle.Oracle
	vaults *vault.Book

	rewardPools map[assets.AssetID]*staking.RewardPool
	stakes      map[stakeKey]*staking.Stake
	emptyPots   map[potKey]struct{}

	markets      map[loans.MarketID]*loans.Market
	loanRecords  map[loans.LoanID]*loans.Loan
	nextMarketID loans.MarketID
	nextLoanID   loans.LoanID

	airdrops      map[airdrop.AirdropID]*airdrop.Airdrop
	nextAirdropID airdrop.AirdropID

	pausedModules map[string]struct{}

	events   []*types.Event
	snapshot *Manager
}

func NewManager() *Manager {
	ledger := assets.NewLedger()
	return &Manager{
		ledger:        ledger,
		nfts:          fnft.NewRegistry(),
		oracle:        oracle.New(),
		vaults:        vault.NewBook(ledger),
		rewardPools:   make(map[assets.AssetID]*staking.RewardPool),
		stakes:        make(map[stakeKey]*staking.Stake),
		emptyPots:     make(map[potKey]struct{}),
		markets:       make(map[loans.MarketID]*loans.Market),
		loanRecords:   make(map[loans.LoanID]*loans.Loan),
		nextMarketID:  1,
		nextLoanID:    1,
		airdrops:      make(map[airdrop.AirdropID]*airdrop.Airdrop),
		nextAirdropID: 1,
		pausedModules: make(map[string]struct{}),
	}
}

// Ledger exposes the asset book.
func (m *Manager) Ledger() *assets.Ledger { return m.ledger }

// NFTs exposes the financial NFT registry.
func (m *Manager) NFTs() *fnft.Registry { return m.nfts }

// Oracle exposes the price oracle.
func (m *Manager) Oracle() *oracle.Oracle { return m.oracle }

// Vaults exposes the vault book.
func (m *Manager) Vaults() *vault.Book { return m.vaults }

// Snapshot captures a deep copy of the full state. A later
// RevertToSnapshot restores it; DiscardSnapshot commits.
func (m *Manager) Snapshot() {
	m.snapshot = m.deepCopy()
}

// RevertToSnapshot rolls the state back to the last Snapshot. The books are
// restored in place: engines hold references to the ledger and registry, so
// their pointer identity must survive the revert.
func (m *Manager) RevertToSnapshot() error {
	if m.snapshot == nil {
		return errNoSnapshot
	}
	s := m.snapshot
	*m.ledger = *s.ledger
	*m.nfts = *s.nfts
	*m.oracle = *s.oracle
	*m.vaults = *s.vaults.Clone(m.ledger)

	m.rewardPools = s.rewardPools
	m.stakes = s.stakes
	m.emptyPots = s.emptyPots
	m.markets = s.markets
	m.loanRecords = s.loanRecords
	m.nextMarketID = s.nextMarketID
	m.nextLoanID = s.nextLoanID
	m.airdrops = s.airdrops
	m.nextAirdropID = s.nextAirdropID
	m.pausedModules = s.pausedModules
	m.events = s.events
	m.snapshot = nil
	return nil
}

// DiscardSnapshot commits the work since the last Snapshot.
func (m *Manager) DiscardSnapshot() {
	m.snapshot = nil
}

func (m *Manager) deepCopy() *Manager {
	ledger := m.ledger.Clone()
	clone := &Manager{
		ledger:        ledger,
		nfts:          m.nfts.Clone(),
		oracle:        m.oracle.Clone(),
		vaults:        m.vaults.Clone(ledger),
		rewardPools:   make(map[assets.AssetID]*staking.RewardPool, len(m.rewardPools)),
		stakes:        make(map[stakeKey]*staking.Stake, len(m.stakes)),
		emptyPots:     make(map[potKey]struct{}, len(m.emptyPots)),
		markets:       make(map[loans.MarketID]*loans.Market, len(m.markets)),
		loanRecords:   make(map[loans.LoanID]*loans.Loan, len(m.loanRecords)),
		nextMarketID:  m.nextMarketID,
		nextLoanID:    m.nextLoanID,
		airdrops:      make(map[airdrop.AirdropID]*airdrop.Airdrop, len(m.airdrops)),
		nextAirdropID: m.nextAirdropID,
		pausedModules: make(map[string]struct{}, len(m.pausedModules)),
		events:        append([]*types.Event(nil), m.events...),
	}
	for id, pool := range m.rewardPools {
		clone.rewardPools[id] = pool.Clone()
	}
	for key, stake := range m.stakes {
		clone.stakes[key] = stake.Clone()
	}
	for key := range m.emptyPots {
		clone.emptyPots[key] = struct{}{}
	}
	for id, market := range m.markets {
		clone.markets[id] = market.Clone()
	}
	for id, loan := range m.loanRecords {
		clone.loanRecords[id] = loan.Clone()
	}
	for id, drop := range m.airdrops {
		clone.airdrops[id] = drop.Clone()
	}
	for module := range m.pausedModules {
		clone.pausedModules[module] = struct{}{}
	}
	return clone
}

// Events returns the block's event log.
func (m *Manager) Events() []*types.Event { return m.events }

// ClearEvents resets the event log, called at the start of each block.
func (m *Manager) ClearEvents() { m.events = nil }

// AppendEvent records an event in the block log.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// SetPaused flips the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) {
	if paused {
		m.pausedModules[module] = struct{}{}
		return
	}
	delete(m.pausedModules, module)
}

// IsPaused implements common.PauseView.
func (m *Manager) IsPaused(module string) bool {
	_, ok := m.pausedModules[module]
	return ok
}

// Staking state surface.

func (m *Manager) GetRewardPool(poolID assets.AssetID) (*staking.RewardPool, error) {
	pool, ok := m.rewardPools[poolID]
	if !ok {
		return nil, nil
	}
	return pool, nil
}

func (m *Manager) PutRewardPool(poolID assets.AssetID, pool *staking.RewardPool) error {
	m.rewardPools[poolID] = pool
	return nil
}

func (m *Manager) RewardPoolIDs() []assets.AssetID {
	ids := make([]assets.AssetID, 0, len(m.rewardPools))
	for id := range m.rewardPools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) GetStake(collection assets.AssetID, instance fnft.InstanceID) (*staking.Stake, error) {
	stake, ok := m.stakes[stakeKey{collection, instance}]
	if !ok {
		return nil, nil
	}
	return stake, nil
}

func (m *Manager) PutStake(collection assets.AssetID, instance fnft.InstanceID, stake *staking.Stake) error {
	m.stakes[stakeKey{collection, instance}] = stake
	return nil
}

func (m *Manager) RemoveStake(collection assets.AssetID, instance fnft.InstanceID) error {
	delete(m.stakes, stakeKey{collection, instance})
	return nil
}

func (m *Manager) PotIsEmpty(pool, asset assets.AssetID) bool {
	_, ok := m.emptyPots[potKey{pool, asset}]
	return ok
}

func (m *Manager) MarkPotEmpty(pool, asset assets.AssetID) {
	m.emptyPots[potKey{pool, asset}] = struct{}{}
}

func (m *Manager) ClearPotEmpty(pool, asset assets.AssetID) {
	delete(m.emptyPots, potKey{pool, asset})
}

// Loans state surface.

func (m *Manager) GetMarket(id loans.MarketID) (*loans.Market, error) {
	market, ok := m.markets[id]
	if !ok {
		return nil, nil
	}
	return market, nil
}

func (m *Manager) PutMarket(id loans.MarketID, market *loans.Market) error {
	m.markets[id] = market
	return nil
}

func (m *Manager) MarketIDs() []loans.MarketID {
	ids := make([]loans.MarketID, 0, len(m.markets))
	for id := range m.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) NextMarketID() loans.MarketID {
	id := m.nextMarketID
	m.nextMarketID++
	return id
}

func (m *Manager) GetLoan(id loans.LoanID) (*loans.Loan, error) {
	loan, ok := m.loanRecords[id]
	if !ok {
		return nil, nil
	}
	return loan, nil
}

func (m *Manager) PutLoan(id loans.LoanID, loan *loans.Loan) error {
	m.loanRecords[id] = loan
	return nil
}

func (m *Manager) RemoveLoan(id loans.LoanID) error {
	delete(m.loanRecords, id)
	return nil
}

func (m *Manager) LoanIDs() []loans.LoanID {
	ids := make([]loans.LoanID, 0, len(m.loanRecords))
	for id := range m.loanRecords {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) NextLoanID() loans.LoanID {
	id := m.nextLoanID
	m.nextLoanID++
	return id
}

// Airdrop state surface.

func (m *Manager) GetAirdrop(id airdrop.AirdropID) (*airdrop.Airdrop, error) {
	drop, ok := m.airdrops[id]
	if !ok {
		return nil, nil
	}
	return drop, nil
}

func (m *Manager) PutAirdrop(id airdrop.AirdropID, drop *airdrop.Airdrop) error {
	m.airdrops[id] = drop
	return nil
}

func (m *Manager) RemoveAirdrop(id airdrop.AirdropID) error {
	delete(m.airdrops, id)
	return nil
}

func (m *Manager) NextAirdropID() airdrop.AirdropID {
	id := m.nextAirdropID
	m.nextAirdropID++
	return id
}
