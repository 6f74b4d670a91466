package loans

import (
	"encoding/binary"
	"log/slog"
	"math/big"
	"sort"

	"helixchain/core/types"
	"helixchain/crypto"
	"helixchain/native/assets"
	nativecommon "helixchain/native/common"
	"helixchain/native/vault"
)

const moduleName = "loans"

// engineState is the persistence surface the loans engine requires.
type engineState interface {
	GetMarket(id MarketID) (*Market, error)
	PutMarket(id MarketID, market *Market) error
	MarketIDs() []MarketID
	NextMarketID() MarketID
	GetLoan(id LoanID) (*Loan, error)
	PutLoan(id LoanID, loan *Loan) error
	RemoveLoan(id LoanID) error
	LoanIDs() []LoanID
	NextLoanID() LoanID
	AppendEvent(evt *types.Event)
}

// AssetLedger is the fungible-asset collaborator.
type AssetLedger interface {
	Transfer(asset assets.AssetID, from, to crypto.Address, amount *big.Int, keepAlive bool) error
	MintInto(asset assets.AssetID, to crypto.Address, amount *big.Int) error
	BurnFrom(asset assets.AssetID, from crypto.Address, amount *big.Int) error
	Balance(asset assets.AssetID, who crypto.Address) *big.Int
	ExistentialDeposit(asset assets.AssetID) *big.Int
	ReserveAssetID() assets.AssetID
}

// PriceOracle converts reference-unit values into asset amounts.
type PriceOracle interface {
	GetPriceInverse(asset assets.AssetID, value *big.Int) (*big.Int, error)
}

// VaultBook is the capital-allocation collaborator.
type VaultBook interface {
	Create(asset assets.AssetID, reserveRatio *big.Rat) (vault.VaultID, error)
	RegisterStrategy(id vault.VaultID, account crypto.Address) error
	AvailableFunds(id vault.VaultID, strategy crypto.Address) (vault.FundsAvailability, *big.Int, error)
	WithdrawTo(id vault.VaultID, strategy crypto.Address, amount *big.Int) error
	DepositFrom(id vault.VaultID, strategy crypto.Address, amount *big.Int) error
}

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() uint64
}

// Engine manages undercollateralized lending markets, loan schedules and
// the vault balancing that keeps markets funded.
type Engine struct {
	state  engineState
	ledger AssetLedger
	oracle PriceOracle
	vaults VaultBook
	clock  Clock
	pauses nativecommon.PauseView
	logger *slog.Logger
}

func NewEngine(ledger AssetLedger, oracle PriceOracle, vaults VaultBook, clock Clock) *Engine {
	return &Engine{
		ledger: ledger,
		oracle: oracle,
		vaults: vaults,
		clock:  clock,
		logger: slog.Default(),
	}
}

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

// MarketAccount returns the deterministic account holding a market's
// borrowable capital.
func MarketAccount(id MarketID) crypto.Address {
	seed := make([]byte, 9)
	seed[0] = 'm'
	binary.BigEndian.PutUint64(seed[1:], uint64(id))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress(moduleName), seed)
}

// LoanAccount returns the deterministic escrow account of a loan.
func LoanAccount(id LoanID) crypto.Address {
	seed := make([]byte, 9)
	seed[0] = 'l'
	binary.BigEndian.PutUint64(seed[1:], uint64(id))
	return crypto.DeriveSubAccount(crypto.DeriveModuleAddress(moduleName), seed)
}

// CreateMarket opens a lending market. The manager's stake is converted by
// the oracle into the market's initial borrowable capital and transferred
// in; a vault with the configured reserve ratio backs further funding. A
// fresh debt asset id tracks outstanding obligations.
func (e *Engine) CreateMarket(cfg MarketConfig) (MarketID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if cfg.BorrowAssetID == 0 || cfg.CollateralAssetID == 0 {
		return 0, errAssetNotSet
	}
	if cfg.BorrowAssetID == cfg.CollateralAssetID {
		return 0, errAssetPairNotDistinct
	}
	if cfg.ManagerStake == nil || cfg.ManagerStake.Sign() <= 0 {
		return 0, errInvalidAmount
	}

	initialPool, err := e.oracle.GetPriceInverse(cfg.BorrowAssetID, cfg.ManagerStake)
	if err != nil {
		return 0, err
	}
	if initialPool.Sign() == 0 {
		return 0, errZeroInitialPool
	}

	id := e.state.NextMarketID()
	account := MarketAccount(id)

	vaultID, err := e.vaults.Create(cfg.BorrowAssetID, cfg.ReserveRatio)
	if err != nil {
		return 0, err
	}
	if err := e.vaults.RegisterStrategy(vaultID, account); err != nil {
		return 0, err
	}
	if err := e.ledger.Transfer(cfg.BorrowAssetID, cfg.Manager, account, initialPool, false); err != nil {
		return 0, err
	}

	whitelist := make(map[string]struct{}, len(cfg.Borrowers))
	for _, borrower := range cfg.Borrowers {
		whitelist[borrower.Key()] = struct{}{}
	}
	market := &Market{
		Manager:              cfg.Manager,
		BorrowAssetID:        cfg.BorrowAssetID,
		CollateralAssetID:    cfg.CollateralAssetID,
		DebtAssetID:          e.ledger.ReserveAssetID(),
		VaultID:              vaultID,
		WhitelistedBorrowers: whitelist,
	}
	if err := e.state.PutMarket(id, market); err != nil {
		return 0, err
	}

	e.state.AppendEvent(newMarketCreatedEvent(id, cfg.Manager, initialPool))
	return id, nil
}

// CreateLoan registers a loan offer. It stays inert until the borrower
// activates it with Borrow; an offer whose first payment date passes
// unactivated is swept by TerminateExpiredLoans.
func (e *Engine) CreateLoan(cfg LoanConfig) (LoanID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	market, err := e.state.GetMarket(cfg.MarketID)
	if err != nil {
		return 0, err
	}
	if market == nil {
		return 0, errMarketNotFound
	}
	if _, ok := market.WhitelistedBorrowers[cfg.Borrower.Key()]; !ok {
		return 0, errNotWhitelisted
	}
	if cfg.Principal == nil || cfg.Principal.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if cfg.CollateralAmount == nil || cfg.CollateralAmount.Sign() < 0 {
		return 0, errInvalidAmount
	}
	if len(cfg.Payments) == 0 {
		return 0, errEmptySchedule
	}
	today := AlignToDay(e.clock.Now())
	payments := make(map[uint64]*big.Int, len(cfg.Payments))
	for date, amount := range cfg.Payments {
		if amount == nil || amount.Sign() <= 0 {
			return 0, errInvalidAmount
		}
		// Collection runs on day boundaries, so every timestamp is
		// aligned down; amounts landing on the same day merge.
		aligned := AlignToDay(date)
		if aligned <= today {
			return 0, errScheduleDateInPast
		}
		if existing, ok := payments[aligned]; ok {
			payments[aligned] = new(big.Int).Add(existing, amount)
		} else {
			payments[aligned] = new(big.Int).Set(amount)
		}
	}

	id := e.state.NextLoanID()
	loan := &Loan{
		MarketID:         cfg.MarketID,
		Borrower:         cfg.Borrower,
		Principal:        new(big.Int).Set(cfg.Principal),
		CollateralAmount: new(big.Int).Set(cfg.CollateralAmount),
		Payments:         payments,
	}
	if err := e.state.PutLoan(id, loan); err != nil {
		return 0, err
	}

	e.state.AppendEvent(newLoanCreatedEvent(cfg.MarketID, id, cfg.Borrower))
	return id, nil
}

// Borrow activates a loan: the borrower seeds the escrow with the borrow
// asset's existential minimum, collateral moves into the loan escrow, the
// principal is paid out of the market, and debt tokens equal to the
// principal are minted into the escrow. Offers past their first payment
// date are purged instead.
func (e *Engine) Borrow(borrower crypto.Address, loanID LoanID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return errLoanNotFound
	}
	if loan.Activated {
		return errLoanAlreadyActive
	}
	if !loan.Borrower.Equal(borrower) {
		return errNotLoanBorrower
	}
	market, err := e.state.GetMarket(loan.MarketID)
	if err != nil {
		return err
	}
	if market == nil {
		return errMarketNotFound
	}

	if AlignToDay(e.clock.Now()) >= loan.firstPaymentDate() {
		if err := e.state.RemoveLoan(loanID); err != nil {
			return err
		}
		e.state.AppendEvent(newLoanExpiredEvent(loanID))
		return errLoanExpired
	}

	escrow := LoanAccount(loanID)
	minimum := e.ledger.ExistentialDeposit(market.BorrowAssetID)
	if minimum.Sign() > 0 {
		if err := e.ledger.Transfer(market.BorrowAssetID, borrower, escrow, minimum, false); err != nil {
			return err
		}
	}
	if loan.CollateralAmount.Sign() > 0 {
		if err := e.ledger.Transfer(market.CollateralAssetID, borrower, escrow, loan.CollateralAmount, false); err != nil {
			return err
		}
	}
	if err := e.ledger.Transfer(market.BorrowAssetID, MarketAccount(loan.MarketID), borrower, loan.Principal, false); err != nil {
		return err
	}
	if err := e.ledger.MintInto(market.DebtAssetID, escrow, loan.Principal); err != nil {
		return err
	}

	loan.Activated = true
	if err := e.state.PutLoan(loanID, loan); err != nil {
		return err
	}

	e.state.AppendEvent(newLoanActivatedEvent(loan.MarketID, loanID, loan.Principal))
	return nil
}

// RepayInstallment moves funds from the borrower into the loan escrow ahead
// of the next scheduled collection.
func (e *Engine) RepayInstallment(borrower crypto.Address, loanID LoanID, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return errLoanNotFound
	}
	if !loan.Borrower.Equal(borrower) {
		return errNotLoanBorrower
	}
	market, err := e.state.GetMarket(loan.MarketID)
	if err != nil {
		return err
	}
	if market == nil {
		return errMarketNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return e.ledger.Transfer(market.BorrowAssetID, borrower, LoanAccount(loanID), amount, false)
}

// CheckPayments collects every installment due today. A funded escrow pays
// on time; paying the last installment closes the loan and returns the
// collateral; an unfunded escrow is liquidated, forfeiting the collateral
// to the market.
func (e *Engine) CheckPayments(now uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	today := AlignToDay(now)

	for _, loanID := range e.sortedLoanIDs() {
		loan, err := e.state.GetLoan(loanID)
		if err != nil {
			return err
		}
		if loan == nil || !loan.Activated {
			continue
		}
		due, ok := loan.Payments[today]
		if !ok {
			continue
		}
		market, err := e.state.GetMarket(loan.MarketID)
		if err != nil {
			return err
		}
		if market == nil {
			return errMarketNotFound
		}
		escrow := LoanAccount(loanID)
		marketAccount := MarketAccount(loan.MarketID)

		if err := e.ledger.Transfer(market.BorrowAssetID, escrow, marketAccount, due, false); err != nil {
			if err := e.liquidate(loanID, loan, market, today); err != nil {
				return err
			}
			continue
		}

		// Debt tracks the unrefunded principal, so installments above
		// the remaining debt burn only what is left.
		burn := minBig(due, e.ledger.Balance(market.DebtAssetID, escrow))
		if burn.Sign() > 0 {
			if err := e.ledger.BurnFrom(market.DebtAssetID, escrow, burn); err != nil {
				return err
			}
		}
		delete(loan.Payments, today)

		if len(loan.Payments) == 0 {
			if err := e.close(loanID, loan, market); err != nil {
				return err
			}
			continue
		}
		if err := e.state.PutLoan(loanID, loan); err != nil {
			return err
		}
		e.state.AppendEvent(newPaymentOnTimeEvent(loan.MarketID, loanID, today, due))
	}
	return nil
}

// close settles a fully paid loan: collateral and any escrow surplus go
// back to the borrower and the loan record is removed.
func (e *Engine) close(loanID LoanID, loan *Loan, market *Market) error {
	escrow := LoanAccount(loanID)
	if loan.CollateralAmount.Sign() > 0 {
		if err := e.ledger.Transfer(market.CollateralAssetID, escrow, loan.Borrower, loan.CollateralAmount, false); err != nil {
			return err
		}
	}
	leftover := e.ledger.Balance(market.BorrowAssetID, escrow)
	if leftover.Sign() > 0 {
		if err := e.ledger.Transfer(market.BorrowAssetID, escrow, loan.Borrower, leftover, false); err != nil {
			return err
		}
	}
	remainingDebt := e.ledger.Balance(market.DebtAssetID, escrow)
	if remainingDebt.Sign() > 0 {
		if err := e.ledger.BurnFrom(market.DebtAssetID, escrow, remainingDebt); err != nil {
			return err
		}
	}
	if err := e.state.RemoveLoan(loanID); err != nil {
		return err
	}
	e.state.AppendEvent(newLoanClosedEvent(loanID, loan.Borrower))
	return nil
}

// liquidate forfeits the collateral to the market and tears the loan down.
func (e *Engine) liquidate(loanID LoanID, loan *Loan, market *Market, today uint64) error {
	escrow := LoanAccount(loanID)
	if loan.CollateralAmount.Sign() > 0 {
		if err := e.ledger.Transfer(market.CollateralAssetID, escrow, MarketAccount(loan.MarketID), loan.CollateralAmount, false); err != nil {
			return err
		}
	}
	outstanding := e.ledger.Balance(market.DebtAssetID, escrow)
	if outstanding.Sign() > 0 {
		if err := e.ledger.BurnFrom(market.DebtAssetID, escrow, outstanding); err != nil {
			return err
		}
	}
	if err := e.state.RemoveLoan(loanID); err != nil {
		return err
	}
	e.state.AppendEvent(newLoanLiquidatedEvent(loan.MarketID, loanID, today))
	return nil
}

// TerminateExpiredLoans sweeps offers that were never activated and whose
// first payment date has arrived.
func (e *Engine) TerminateExpiredLoans(now uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	today := AlignToDay(now)

	for _, loanID := range e.sortedLoanIDs() {
		loan, err := e.state.GetLoan(loanID)
		if err != nil {
			return err
		}
		if loan == nil || loan.Activated {
			continue
		}
		if loan.firstPaymentDate() > today {
			continue
		}
		if err := e.state.RemoveLoan(loanID); err != nil {
			return err
		}
		e.state.AppendEvent(newLoanExpiredEvent(loanID))
	}
	return nil
}

// TreatVaultsBalance rebalances every market against its backing vault.
// The pass is all-or-nothing: any failure surfaces to the caller, whose
// state snapshot rolls the partial work back.
func (e *Engine) TreatVaultsBalance() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	marketIDs := e.state.MarketIDs()
	sort.Slice(marketIDs, func(i, j int) bool { return marketIDs[i] < marketIDs[j] })

	for _, marketID := range marketIDs {
		market, err := e.state.GetMarket(marketID)
		if err != nil {
			return err
		}
		if market == nil {
			continue
		}
		account := MarketAccount(marketID)

		availability, amount, err := e.vaults.AvailableFunds(market.VaultID, account)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			continue
		}
		switch availability {
		case vault.FundsWithdrawable:
			if err := e.vaults.WithdrawTo(market.VaultID, account, amount); err != nil {
				return err
			}
			e.state.AppendEvent(newVaultRebalancedEvent(marketID, "withdraw", amount))
		case vault.FundsDepositable:
			// Never hand back more than the market actually holds; loans in
			// flight keep part of the allocation.
			balance := e.ledger.Balance(market.BorrowAssetID, account)
			if balance.Cmp(amount) < 0 {
				amount = balance
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := e.vaults.DepositFrom(market.VaultID, account, amount); err != nil {
				return err
			}
			e.state.AppendEvent(newVaultRebalancedEvent(marketID, "deposit", amount))
		case vault.FundsMustLiquidate:
			balance := e.ledger.Balance(market.BorrowAssetID, account)
			if balance.Cmp(amount) < 0 {
				amount = balance
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := e.vaults.DepositFrom(market.VaultID, account, amount); err != nil {
				return err
			}
			e.state.AppendEvent(newVaultRebalancedEvent(marketID, "liquidate", amount))
		}
	}
	return nil
}

func (e *Engine) sortedLoanIDs() []LoanID {
	ids := e.state.LoanIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
