package loans

import "errors"

var (
	errNilState             = errors.New("loans engine: state not configured")
	errMarketNotFound       = errors.New("loans engine: market not found")
	errLoanNotFound         = errors.New("loans engine: loan not found")
	errNotLoanBorrower      = errors.New("loans engine: caller is not the borrower")
	errNotWhitelisted       = errors.New("loans engine: borrower not whitelisted")
	errLoanAlreadyActive    = errors.New("loans engine: loan already activated")
	errLoanExpired          = errors.New("loans engine: loan offer expired")
	errEmptySchedule        = errors.New("loans engine: payment schedule is empty")
	errScheduleDateInPast   = errors.New("loans engine: schedule date not in the future")
	errInvalidAmount        = errors.New("loans engine: amount must be positive")
	errZeroInitialPool      = errors.New("loans engine: initial pool size is zero")
	errAssetNotSet          = errors.New("loans engine: borrow and collateral assets must be set")
	errAssetPairNotDistinct = errors.New("loans engine: borrow and collateral assets must be distinct")
)

// Exported sentinels for callers outside the package.
var (
	ErrMarketNotFound = errMarketNotFound
	ErrLoanNotFound   = errLoanNotFound
	ErrLoanExpired    = errLoanExpired
)
