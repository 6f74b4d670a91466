package assets

import (
	"errors"
	"math/big"

	"helixchain/crypto"
)

// AssetID identifies a fungible asset. Valid asset ids are strictly greater
// than zero; id zero is reserved as "unset".
type AssetID uint64

// WithdrawConsequence reports whether an account can part with an amount of
// an asset, distinguishing plain shortfall from lock-frozen funds.
type WithdrawConsequence int

const (
	WithdrawSuccess WithdrawConsequence = iota
	WithdrawInsufficient
	WithdrawFrozen
)

var (
	errInvalidAmount       = errors.New("asset ledger: amount must be positive")
	errInvalidAsset        = errors.New("asset ledger: asset id must be non-zero")
	errInsufficientBalance = errors.New("asset ledger: insufficient balance")
	errFrozenBalance       = errors.New("asset ledger: balance frozen by lock")
	errKeepAlive           = errors.New("asset ledger: transfer would kill source account")
	errInsufficientHold    = errors.New("asset ledger: insufficient held balance")
)

// Sentinel accessors so dependent modules can classify ledger failures
// without importing unexported vars.
var (
	ErrInsufficientBalance = errInsufficientBalance
	ErrFrozenBalance       = errFrozenBalance
	ErrKeepAlive           = errKeepAlive
)

// reservedAssetBase is the first id handed out by ReserveAssetID. Ids below
// it are assignable by governance/config.
const reservedAssetBase AssetID = 1 << 32

// Ledger is an in-memory multi-asset book: free balances, named locks,
// held (escrowed) balances and total issuance per asset. All mutations are
// value-checked; callers rely on the surrounding state snapshot for
// transactional rollback.
type Ledger struct {
	balances    map[AssetID]map[string]*big.Int
	holds       map[AssetID]map[string]*big.Int
	locks       map[AssetID]map[string]map[string]*big.Int
	issuance    map[AssetID]*big.Int
	existential map[AssetID]*big.Int
	nextAssetID AssetID
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:    make(map[AssetID]map[string]*big.Int),
		holds:       make(map[AssetID]map[string]*big.Int),
		locks:       make(map[AssetID]map[string]map[string]*big.Int),
		issuance:    make(map[AssetID]*big.Int),
		existential: make(map[AssetID]*big.Int),
		nextAssetID: reservedAssetBase,
	}
}

// SetExistentialDeposit configures the minimum balance an account must retain
// in an asset to stay alive for keep-alive transfers.
func (l *Ledger) SetExistentialDeposit(asset AssetID, amount *big.Int) {
	if l == nil || asset == 0 {
		return
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	l.existential[asset] = new(big.Int).Set(amount)
}

// ExistentialDeposit returns the configured minimum balance for the asset,
// zero when none was set.
func (l *Ledger) ExistentialDeposit(asset AssetID) *big.Int {
	if ed, ok := l.existential[asset]; ok {
		return new(big.Int).Set(ed)
	}
	return big.NewInt(0)
}

// ReserveAssetID hands out a fresh asset id from the factory range. Used for
// debt tokens and other runtime-created currencies.
func (l *Ledger) ReserveAssetID() AssetID {
	id := l.nextAssetID
	l.nextAssetID++
	return id
}

// Balance returns the free (unheld) balance of the account.
func (l *Ledger) Balance(asset AssetID, who crypto.Address) *big.Int {
	if book, ok := l.balances[asset]; ok {
		if bal, ok := book[who.Key()]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return big.NewInt(0)
}

// BalanceOnHold returns the held (escrowed, non-transferable) balance.
func (l *Ledger) BalanceOnHold(asset AssetID, who crypto.Address) *big.Int {
	if book, ok := l.holds[asset]; ok {
		if bal, ok := book[who.Key()]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return big.NewInt(0)
}

// TotalIssuance returns the total minted supply of the asset, including held
// balances.
func (l *Ledger) TotalIssuance(asset AssetID) *big.Int {
	if total, ok := l.issuance[asset]; ok {
		return new(big.Int).Set(total)
	}
	return big.NewInt(0)
}

// frozen returns the amount of free balance frozen by named locks. Locks
// overlap rather than stack: the largest lock wins.
func (l *Ledger) frozen(asset AssetID, who crypto.Address) *big.Int {
	max := big.NewInt(0)
	if book, ok := l.locks[asset]; ok {
		for _, amount := range book[who.Key()] {
			if amount.Cmp(max) > 0 {
				max = amount
			}
		}
	}
	return new(big.Int).Set(max)
}

// CanWithdraw reports whether `who` could part with `amount` of free balance,
// respecting locks.
func (l *Ledger) CanWithdraw(asset AssetID, who crypto.Address, amount *big.Int) WithdrawConsequence {
	if amount == nil || amount.Sign() <= 0 {
		return WithdrawSuccess
	}
	free := l.Balance(asset, who)
	if free.Cmp(amount) < 0 {
		return WithdrawInsufficient
	}
	spendable := new(big.Int).Sub(free, l.frozen(asset, who))
	if spendable.Cmp(amount) < 0 {
		return WithdrawFrozen
	}
	return WithdrawSuccess
}

// Transfer moves free balance between accounts. With keepAlive set the source
// must retain at least the asset's existential deposit (or be fully drained
// to zero is disallowed).
func (l *Ledger) Transfer(asset AssetID, from, to crypto.Address, amount *big.Int, keepAlive bool) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	switch l.CanWithdraw(asset, from, amount) {
	case WithdrawInsufficient:
		return errInsufficientBalance
	case WithdrawFrozen:
		return errFrozenBalance
	}
	if keepAlive {
		remaining := new(big.Int).Sub(l.Balance(asset, from), amount)
		if remaining.Cmp(l.ExistentialDeposit(asset)) < 0 {
			return errKeepAlive
		}
	}
	l.credit(asset, from, new(big.Int).Neg(amount))
	l.credit(asset, to, amount)
	return nil
}

// MintInto creates new units of the asset in the target account.
func (l *Ledger) MintInto(asset AssetID, to crypto.Address, amount *big.Int) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.credit(asset, to, amount)
	l.addIssuance(asset, amount)
	return nil
}

// BurnFrom destroys units held as free balance by the account. Locks must be
// removed before burning.
func (l *Ledger) BurnFrom(asset AssetID, from crypto.Address, amount *big.Int) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	switch l.CanWithdraw(asset, from, amount) {
	case WithdrawInsufficient:
		return errInsufficientBalance
	case WithdrawFrozen:
		return errFrozenBalance
	}
	l.credit(asset, from, new(big.Int).Neg(amount))
	l.addIssuance(asset, new(big.Int).Neg(amount))
	return nil
}

// Hold moves free balance into escrow where it no longer counts as
// transferable. Reward pots are funded through holds.
func (l *Ledger) Hold(asset AssetID, who crypto.Address, amount *big.Int) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	switch l.CanWithdraw(asset, who, amount) {
	case WithdrawInsufficient:
		return errInsufficientBalance
	case WithdrawFrozen:
		return errFrozenBalance
	}
	l.credit(asset, who, new(big.Int).Neg(amount))
	l.creditHold(asset, who, amount)
	return nil
}

// Release moves held balance back to free balance. The entire amount must be
// available on hold; partial release of a larger request is an error.
func (l *Ledger) Release(asset AssetID, who crypto.Address, amount *big.Int) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if l.BalanceOnHold(asset, who).Cmp(amount) < 0 {
		return errInsufficientHold
	}
	l.creditHold(asset, who, new(big.Int).Neg(amount))
	l.credit(asset, who, amount)
	return nil
}

// SetLock installs or replaces a named lock freezing `amount` of the
// account's free balance.
func (l *Ledger) SetLock(lockID string, asset AssetID, who crypto.Address, amount *big.Int) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	book, ok := l.locks[asset]
	if !ok {
		book = make(map[string]map[string]*big.Int)
		l.locks[asset] = book
	}
	accountLocks, ok := book[who.Key()]
	if !ok {
		accountLocks = make(map[string]*big.Int)
		book[who.Key()] = accountLocks
	}
	accountLocks[lockID] = new(big.Int).Set(amount)
	return nil
}

// RemoveLock drops a named lock. Removing an absent lock is a no-op.
func (l *Ledger) RemoveLock(lockID string, asset AssetID, who crypto.Address) error {
	if asset == 0 {
		return errInvalidAsset
	}
	if book, ok := l.locks[asset]; ok {
		delete(book[who.Key()], lockID)
	}
	return nil
}

// Clone produces a deep copy used by the state snapshot machinery.
func (l *Ledger) Clone() *Ledger {
	clone := NewLedger()
	clone.nextAssetID = l.nextAssetID
	for asset, book := range l.balances {
		cloneBook := make(map[string]*big.Int, len(book))
		for key, bal := range book {
			cloneBook[key] = new(big.Int).Set(bal)
		}
		clone.balances[asset] = cloneBook
	}
	for asset, book := range l.holds {
		cloneBook := make(map[string]*big.Int, len(book))
		for key, bal := range book {
			cloneBook[key] = new(big.Int).Set(bal)
		}
		clone.holds[asset] = cloneBook
	}
	for asset, book := range l.locks {
		cloneBook := make(map[string]map[string]*big.Int, len(book))
		for key, accountLocks := range book {
			cloneLocks := make(map[string]*big.Int, len(accountLocks))
			for id, amount := range accountLocks {
				cloneLocks[id] = new(big.Int).Set(amount)
			}
			cloneBook[key] = cloneLocks
		}
		clone.locks[asset] = cloneBook
	}
	for asset, total := range l.issuance {
		clone.issuance[asset] = new(big.Int).Set(total)
	}
	for asset, ed := range l.existential {
		clone.existential[asset] = new(big.Int).Set(ed)
	}
	return clone
}

func (l *Ledger) credit(asset AssetID, who crypto.Address, delta *big.Int) {
	book, ok := l.balances[asset]
	if !ok {
		book = make(map[string]*big.Int)
		l.balances[asset] = book
	}
	current, ok := book[who.Key()]
	if !ok {
		current = big.NewInt(0)
	}
	book[who.Key()] = new(big.Int).Add(current, delta)
}

func (l *Ledger) addIssuance(asset AssetID, delta *big.Int) {
	current, ok := l.issuance[asset]
	if !ok {
		current = big.NewInt(0)
	}
	l.issuance[asset] = new(big.Int).Add(current, delta)
}

func (l *Ledger) creditHold(asset AssetID, who crypto.Address, delta *big.Int) {
	book, ok := l.holds[asset]
	if !ok {
		book = make(map[string]*big.Int)
		l.holds[asset] = book
	}
	current, ok := book[who.Key()]
	if !ok {
		current = big.NewInt(0)
	}
	book[who.Key()] = new(big.Int).Add(current, delta)
}
