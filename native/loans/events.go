package loans

import (
	"fmt"
	"math/big"

	"helixchain/core/types"
	"helixchain/crypto"
)

// Event types emitted by the loans engine.
const (
	EventTypeMarketCreated   = "loans.market.created"
	EventTypeLoanCreated     = "loans.loan.created"
	EventTypeLoanActivated   = "loans.loan.activated"
	EventTypePaymentOnTime   = "loans.payment.on_time"
	EventTypeLoanClosed      = "loans.loan.closed"
	EventTypeLoanLiquidated  = "loans.loan.liquidated"
	EventTypeLoanExpired     = "loans.loan.expired"
	EventTypeVaultRebalanced = "loans.vault.rebalanced"
)

func formatMarket(id MarketID) string { return fmt.Sprintf("%d", id) }

func formatLoan(id LoanID) string { return fmt.Sprintf("%d", id) }

func newMarketCreatedEvent(id MarketID, manager crypto.Address, initialPool *big.Int) *types.Event {
	return &types.Event{Type: EventTypeMarketCreated, Attributes: map[string]string{
		"market":      formatMarket(id),
		"manager":     manager.String(),
		"initialPool": initialPool.String(),
	}}
}

func newLoanCreatedEvent(market MarketID, loan LoanID, borrower crypto.Address) *types.Event {
	return &types.Event{Type: EventTypeLoanCreated, Attributes: map[string]string{
		"market":   formatMarket(market),
		"loan":     formatLoan(loan),
		"borrower": borrower.String(),
	}}
}

func newLoanActivatedEvent(market MarketID, loan LoanID, principal *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLoanActivated, Attributes: map[string]string{
		"market":    formatMarket(market),
		"loan":      formatLoan(loan),
		"principal": principal.String(),
	}}
}

func newPaymentOnTimeEvent(market MarketID, loan LoanID, date uint64, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypePaymentOnTime, Attributes: map[string]string{
		"market": formatMarket(market),
		"loan":   formatLoan(loan),
		"date":   fmt.Sprintf("%d", date),
		"amount": amount.String(),
	}}
}

func newLoanClosedEvent(loan LoanID, borrower crypto.Address) *types.Event {
	return &types.Event{Type: EventTypeLoanClosed, Attributes: map[string]string{
		"loan":     formatLoan(loan),
		"borrower": borrower.String(),
	}}
}

func newLoanLiquidatedEvent(market MarketID, loan LoanID, date uint64) *types.Event {
	return &types.Event{Type: EventTypeLoanLiquidated, Attributes: map[string]string{
		"market": formatMarket(market),
		"loan":   formatLoan(loan),
		"date":   fmt.Sprintf("%d", date),
	}}
}

func newLoanExpiredEvent(loan LoanID) *types.Event {
	return &types.Event{Type: EventTypeLoanExpired, Attributes: map[string]string{
		"loan": formatLoan(loan),
	}}
}

func newVaultRebalancedEvent(market MarketID, direction string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeVaultRebalanced, Attributes: map[string]string{
		"market":    formatMarket(market),
		"direction": direction,
		"amount":    amount.String(),
	}}
}
