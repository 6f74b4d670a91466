// Package vault implements asset vaults with a reserve-ratio allocation
// strategy. A vault keeps a configured fraction of its capital liquid and
// makes the remainder available to a strategy account (a lending market).
package vault

import (
	"encoding/binary"
	"errors"
	"math/big"

	"helixchain/crypto"
	"helixchain/native/assets"
)

const moduleName = "vault"

var (
	errInvalidReserveRatio = errors.New("vault: reserve ratio must be a fraction")
	errUnknownStrategy     = errors.New("vault: account is not a registered strategy")
	ErrVaultNotFound       = errors.New("vault: vault not found")
)

// VaultID identifies a vault.
type VaultID uint64

// FundsAvailability tells a strategy what to do with its allocation.
type FundsAvailability int

const (
	// FundsWithdrawable: the vault has unallocated capital the strategy may take.
	FundsWithdrawable FundsAvailability = iota
	// FundsDepositable: the strategy holds more than its target allocation and
	// should return the surplus.
	FundsDepositable
	// FundsMustLiquidate: the vault is shutting down and the strategy must
	// return everything.
	FundsMustLiquidate
)

// Vault tracks a single-asset vault and the capital lent to its strategies.
type Vault struct {
	AssetID      assets.AssetID
	ReserveRatio *big.Rat
	// allocations maps strategy account keys to capital currently lent out.
	allocations map[string]*big.Int
	liquidating bool
}

func (v *Vault) clone() *Vault {
	allocations := make(map[string]*big.Int, len(v.allocations))
	for account, amount := range v.allocations {
		allocations[account] = new(big.Int).Set(amount)
	}
	return &Vault{
		AssetID:      v.AssetID,
		ReserveRatio: new(big.Rat).Set(v.ReserveRatio),
		allocations:  allocations,
		liquidating:  v.liquidating,
	}
}

// Book manages all vaults and their accounts.
type Book struct {
	vaults map[VaultID]*Vault
	nextID VaultID
	ledger Ledger
}

// Ledger is the fungible-asset surface the vault book needs.
type Ledger interface {
	Transfer(asset assets.AssetID, from, to crypto.Address, amount *big.Int, keepAlive bool) error
	Balance(asset assets.AssetID, who crypto.Address) *big.Int
}

func NewBook(ledger Ledger) *Book {
	return &Book{vaults: make(map[VaultID]*Vault), nextID: 1, ledger: ledger}
}

// Account returns the vault's deterministic fund account.
func Account(id VaultID) crypto.Address {
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, uint64(id))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress(moduleName), seed)
}

// Create registers a vault for `asset` retaining `reserveRatio` of capital
// liquid.
func (b *Book) Create(asset assets.AssetID, reserveRatio *big.Rat) (VaultID, error) {
	if reserveRatio == nil || reserveRatio.Sign() < 0 || reserveRatio.Cmp(big.NewRat(1, 1)) > 0 {
		return 0, errInvalidReserveRatio
	}
	id := b.nextID
	b.nextID++
	b.vaults[id] = &Vault{
		AssetID:      asset,
		ReserveRatio: new(big.Rat).Set(reserveRatio),
		allocations:  make(map[string]*big.Int),
	}
	return id, nil
}

func (b *Book) Get(id VaultID) (*Vault, error) {
	vault, ok := b.vaults[id]
	if !ok {
		return nil, ErrVaultNotFound
	}
	return vault, nil
}

// Deposit moves capital from `from` into the vault's fund account.
func (b *Book) Deposit(id VaultID, from crypto.Address, amount *big.Int) error {
	vault, err := b.Get(id)
	if err != nil {
		return err
	}
	return b.ledger.Transfer(vault.AssetID, from, Account(id), amount, false)
}

// RegisterStrategy allows `account` to draw on the vault's investable funds.
func (b *Book) RegisterStrategy(id VaultID, account crypto.Address) error {
	vault, err := b.Get(id)
	if err != nil {
		return err
	}
	if _, ok := vault.allocations[account.Key()]; !ok {
		vault.allocations[account.Key()] = big.NewInt(0)
	}
	return nil
}

// StartLiquidation flags the vault: every strategy must return its capital.
func (b *Book) StartLiquidation(id VaultID) error {
	vault, err := b.Get(id)
	if err != nil {
		return err
	}
	vault.liquidating = true
	return nil
}

// AvailableFunds reports what the strategy should do: withdraw more capital,
// return a surplus, or return everything because the vault is liquidating.
// The target allocation is (1 - reserveRatio) of the vault's total capital,
// where total counts both the liquid account and outstanding allocations.
func (b *Book) AvailableFunds(id VaultID, strategy crypto.Address) (FundsAvailability, *big.Int, error) {
	vault, err := b.Get(id)
	if err != nil {
		return FundsMustLiquidate, nil, err
	}
	allocated, ok := vault.allocations[strategy.Key()]
	if !ok {
		return FundsMustLiquidate, nil, errUnknownStrategy
	}
	if vault.liquidating {
		return FundsMustLiquidate, new(big.Int).Set(allocated), nil
	}

	liquid := b.ledger.Balance(vault.AssetID, Account(id))
	total := new(big.Int).Add(liquid, allocated)

	investable := new(big.Rat).Sub(big.NewRat(1, 1), vault.ReserveRatio)
	investable.Mul(investable, new(big.Rat).SetInt(total))
	target := new(big.Int).Quo(investable.Num(), investable.Denom())

	switch target.Cmp(allocated) {
	case 1:
		return FundsWithdrawable, new(big.Int).Sub(target, allocated), nil
	case -1:
		return FundsDepositable, new(big.Int).Sub(allocated, target), nil
	default:
		return FundsWithdrawable, big.NewInt(0), nil
	}
}

// WithdrawTo moves investable capital from the vault to the strategy and
// records the allocation.
func (b *Book) WithdrawTo(id VaultID, strategy crypto.Address, amount *big.Int) error {
	vault, err := b.Get(id)
	if err != nil {
		return err
	}
	allocated, ok := vault.allocations[strategy.Key()]
	if !ok {
		return errUnknownStrategy
	}
	if err := b.ledger.Transfer(vault.AssetID, Account(id), strategy, amount, false); err != nil {
		return err
	}
	vault.allocations[strategy.Key()] = new(big.Int).Add(allocated, amount)
	return nil
}

// DepositFrom returns capital from the strategy to the vault, shrinking the
// recorded allocation (floored at zero so repaid interest is kept as yield).
func (b *Book) DepositFrom(id VaultID, strategy crypto.Address, amount *big.Int) error {
	vault, err := b.Get(id)
	if err != nil {
		return err
	}
	allocated, ok := vault.allocations[strategy.Key()]
	if !ok {
		return errUnknownStrategy
	}
	if err := b.ledger.Transfer(vault.AssetID, strategy, Account(id), amount, false); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(allocated, amount)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	vault.allocations[strategy.Key()] = remaining
	return nil
}

// Clone deep-copies the book for state snapshots. The ledger reference is
// rebound by the caller.
func (b *Book) Clone(ledger Ledger) *Book {
	clone := &Book{vaults: make(map[VaultID]*Vault, len(b.vaults)), nextID: b.nextID, ledger: ledger}
	for id, vault := range b.vaults {
		clone.vaults[id] = vault.clone()
	}
	return clone
}
