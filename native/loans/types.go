package loans

import (
	"math/big"
	"sort"

	"helixchain/crypto"
	"helixchain/native/assets"
	"helixchain/native/vault"
)

// SecondsPerDay aligns schedule timestamps to day boundaries.
const SecondsPerDay uint64 = 86_400

// MarketID identifies a lending market.
type MarketID uint64

// LoanID identifies a loan inside its market's counter space.
type LoanID uint64

// Market is an undercollateralized lending market backed by a vault. The
// manager seeds borrowable capital; the vault keeps topping it up per its
// reserve strategy.
type Market struct {
	Manager           crypto.Address
	BorrowAssetID     assets.AssetID
	CollateralAssetID assets.AssetID
	DebtAssetID       assets.AssetID
	VaultID           vault.VaultID
	// WhitelistedBorrowers limits who may take loans in this market.
	WhitelistedBorrowers map[string]struct{}
}

func (m *Market) Clone() *Market {
	whitelist := make(map[string]struct{}, len(m.WhitelistedBorrowers))
	for key := range m.WhitelistedBorrowers {
		whitelist[key] = struct{}{}
	}
	return &Market{
		Manager:              m.Manager,
		BorrowAssetID:        m.BorrowAssetID,
		CollateralAssetID:    m.CollateralAssetID,
		DebtAssetID:          m.DebtAssetID,
		VaultID:              m.VaultID,
		WhitelistedBorrowers: whitelist,
	}
}

// Loan is a fixed-schedule loan. Payments maps day-aligned timestamps to
// installment amounts in the borrow asset. A loan is inert until the
// borrower activates it via Borrow.
type Loan struct {
	MarketID         MarketID
	Borrower         crypto.Address
	Principal        *big.Int
	CollateralAmount *big.Int
	Payments         map[uint64]*big.Int
	Activated        bool
}

func (l *Loan) Clone() *Loan {
	payments := make(map[uint64]*big.Int, len(l.Payments))
	for date, amount := range l.Payments {
		payments[date] = new(big.Int).Set(amount)
	}
	return &Loan{
		MarketID:         l.MarketID,
		Borrower:         l.Borrower,
		Principal:        new(big.Int).Set(l.Principal),
		CollateralAmount: new(big.Int).Set(l.CollateralAmount),
		Payments:         payments,
		Activated:        l.Activated,
	}
}

// paymentDates returns the schedule dates in ascending order.
func (l *Loan) paymentDates() []uint64 {
	dates := make([]uint64, 0, len(l.Payments))
	for date := range l.Payments {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}

func (l *Loan) firstPaymentDate() uint64 {
	dates := l.paymentDates()
	if len(dates) == 0 {
		return 0
	}
	return dates[0]
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// MarketConfig is the creation input for a market.
type MarketConfig struct {
	Manager           crypto.Address
	BorrowAssetID     assets.AssetID
	CollateralAssetID assets.AssetID
	ReserveRatio      *big.Rat
	// ManagerStake is the reference-unit value the manager commits; the
	// oracle converts it into the market's initial borrowable capital.
	ManagerStake *big.Int
	Borrowers    []crypto.Address
}

// LoanConfig is the creation input for a loan.
type LoanConfig struct {
	MarketID         MarketID
	Borrower         crypto.Address
	Principal        *big.Int
	CollateralAmount *big.Int
	Payments         map[uint64]*big.Int
}

// AlignToDay truncates a timestamp to its day boundary.
func AlignToDay(ts uint64) uint64 {
	return ts - ts%SecondsPerDay
}
